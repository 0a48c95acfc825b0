// Package conversation serves persisted conversation history and the
// contact list built on top of it.
package conversation

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/mahaj/dupahar-dm/pkg/errors"
	"github.com/mahaj/dupahar-dm/pkg/model"
	"github.com/mahaj/dupahar-dm/pkg/store"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
)

type Pager struct {
	log      *slog.Logger
	messages store.MessageStore
	maxLimit int
}

func NewPager(log *slog.Logger, messages store.MessageStore, maxLimit int) *Pager {
	return &Pager{log: log, messages: messages, maxLimit: maxLimit}
}

// Page returns one page of the conversation between requester and
// counterpart, oldest first. Page 1 holds the most recent limit messages.
// Fetching page 1 also marks everything counterpart sent to requester as
// delivered; that is how messages pushed while requester was offline get
// their delivery resolved. A full page means older ones may exist.
func (p *Pager) Page(ctx context.Context, requester, counterpart string, page, limit int) ([]model.Message, error) {
	counterpart = strings.TrimSpace(counterpart)
	switch {
	case counterpart == "":
		return nil, errors.NewValidationError("counterpartId", "must not be empty")
	case page < 1:
		return nil, errors.NewValidationError("page", "must be at least 1")
	case limit < 1 || limit > p.maxLimit:
		return nil, errors.NewValidationError("limit", "out of range")
	}

	messages, err := p.messages.Conversation(ctx, requester, counterpart, (page-1)*limit, limit)
	if err != nil {
		p.log.Error("Failed to retrieve history", "user", requester, "counterpart", counterpart, "error", err)
		return nil, err
	}
	slices.Reverse(messages)

	if page == 1 {
		changed, err := p.messages.MarkDelivered(ctx, counterpart, requester)
		if err != nil {
			p.log.Error("Failed to mark messages delivered", "user", requester, "counterpart", counterpart, "error", err)
			return nil, err
		}
		// The page was read before the update; reflect it in the response.
		if changed > 0 {
			for i := range messages {
				if messages[i].Sender == counterpart {
					messages[i].Delivered = true
				}
			}
		}
	}
	return messages, nil
}
