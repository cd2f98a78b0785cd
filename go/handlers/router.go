package handlers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/fspswitch/transfers/go/transfer"
)

// RouterHandler forwards terminal action-status events of the shared
// transfer topic to notification. It is stateless.
type RouterHandler struct{}

var _ Handler = (*RouterHandler)(nil)

var routedActions = map[string]bool{
	transfer.ActionPrepare:         true,
	transfer.ActionCommit:          true,
	transfer.ActionReject:          true,
	transfer.ActionAbort:           true,
	transfer.ActionTimeoutReserved: true,
}

// Handle implements Handler.
func (h *RouterHandler) Handle(ctx context.Context, env *transfer.Envelope) Outcome {
	var event = env.Metadata.Event

	if event.State.Status != transfer.StatusSuccess || !routedActions[event.Action] {
		log.WithFields(log.Fields{
			"id":     env.ID,
			"action": event.Action,
			"status": event.State.Status,
		}).Warn("ignoring unroutable transfer event")
		return Outcome{Kind: KindOk}
	}

	var out = env.Forward(transfer.TypeNotification, event.Action, event.State)
	return Outcome{Kind: KindOk, Events: []Event{NotificationEvent(out)}}
}
