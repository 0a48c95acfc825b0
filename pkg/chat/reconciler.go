package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

// Reconciler applies "reader has seen everything counterpart sent" signals.
type Reconciler struct {
	log      *slog.Logger
	messages store.MessageStore
	notifier Notifier
}

func NewReconciler(log *slog.Logger, messages store.MessageStore, notifier Notifier) *Reconciler {
	return &Reconciler{log: log, messages: messages, notifier: notifier}
}

// MarkRead flips every unread message from counterpart to reader and tells
// counterpart. It returns the number of messages that changed, zero when
// called again with nothing new.
func (r *Reconciler) MarkRead(ctx context.Context, reader, counterpart string) (int, error) {
	counterpart = strings.TrimSpace(counterpart)
	if counterpart == "" {
		return 0, errors.NewValidationError("senderId", "must not be empty")
	}

	changed, err := r.messages.MarkRead(ctx, counterpart, reader)
	if err != nil {
		r.log.Error("Error marking messages as read", "reader", reader, "sender", counterpart, "error", err)
		return 0, err
	}

	if err := r.notifier.SendToIdentity(ctx, counterpart, model.EventMessageRead, model.ReadPayload{ReaderID: reader}); err != nil {
		r.log.Warn("Failed to send read receipt", "reader", reader, "sender", counterpart, "error", err)
	}
	return changed, nil
}
