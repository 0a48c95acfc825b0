package chat

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/snowflake"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

// Pipeline validates, persists and fans out new messages.
type Pipeline struct {
	log      *slog.Logger
	messages store.MessageStore
	users    UserFinder
	notifier Notifier
	ids      *snowflake.Node
	validate *validator.Validate
}

func NewPipeline(log *slog.Logger, messages store.MessageStore, users UserFinder, notifier Notifier, ids *snowflake.Node) *Pipeline {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		return name
	})
	return &Pipeline{
		log:      log,
		messages: messages,
		users:    users,
		notifier: notifier,
		ids:      ids,
		validate: validate,
	}
}

// Send persists a message from sender and notifies both parties. The
// returned error is a ValidationError or a storage error; notification
// failures are logged only, the message being durable at that point.
func (p *Pipeline) Send(ctx context.Context, sender string, request model.SendRequest) (model.Message, error) {
	request.ReceiverID = strings.TrimSpace(request.ReceiverID)
	request.Content = strings.TrimSpace(request.Content)
	if err := p.validate.Struct(request); err != nil {
		return model.Message{}, toValidationError(err)
	}

	if _, err := p.users.FindByID(ctx, request.ReceiverID); err != nil {
		if errors.IsNotFound(err) {
			return model.Message{}, errors.NewValidationError("receiverId", "unknown receiver")
		}
		return model.Message{}, err
	}

	id := p.ids.Generate()
	message, err := p.messages.Create(ctx, model.Message{
		ID:        id,
		Sender:    sender,
		Receiver:  request.ReceiverID,
		Content:   request.Content,
		CreatedAt: snowflake.Time(id),
	})
	if err != nil {
		p.log.Error("Failed to save message", "sender", sender, "receiver", request.ReceiverID, "error", err)
		return model.Message{}, err
	}

	if err := p.notifier.SendToIdentity(ctx, sender, model.EventMessageSent, message); err != nil {
		p.log.Warn("Failed to confirm message to sender", "id", message.ID, "sender", sender, "error", err)
	}
	if err := p.notifier.SendToIdentity(ctx, message.Receiver, model.EventMessageNew, message); err != nil {
		p.log.Warn("Failed to push message to receiver", "id", message.ID, "receiver", message.Receiver, "error", err)
	}
	return message, nil
}

func toValidationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !stderrors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return errors.NewValidationError("", err.Error())
	}
	fe := fieldErrors[0]
	switch fe.Tag() {
	case "required":
		return errors.NewValidationError(fe.Field(), "must not be empty")
	case "max":
		return errors.NewValidationError(fe.Field(), fmt.Sprintf("must be at most %s characters", fe.Param()))
	default:
		return errors.NewValidationError(fe.Field(), "is invalid")
	}
}
