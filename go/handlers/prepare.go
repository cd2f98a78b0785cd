package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/fspswitch/transfers/go/dedup"
	"github.com/fspswitch/transfers/go/store"
	"github.com/fspswitch/transfers/go/transfer"
	"github.com/fspswitch/transfers/go/validator"
)

// PrepareStore is the slice of the store gateway the prepare pipeline uses.
type PrepareStore interface {
	Prepare(ctx context.Context, p *transfer.Prepare, reason string, valid bool) error
	GetByID(ctx context.Context, transferID string) (*transfer.Transfer, error)
	LogTransferError(ctx context.Context, transferID string, code int, description string) error
}

// PrepareHandler drives the prepare phase of a transfer: duplicate
// resolution, validation, persistence, and fan-out to the payer's
// position topic or to notification.
type PrepareHandler struct {
	Store     PrepareStore
	Validator *validator.Validator
	Resolver  *dedup.Resolver
}

var _ Handler = (*PrepareHandler)(nil)

// Handle implements Handler.
func (h *PrepareHandler) Handle(ctx context.Context, env *transfer.Envelope) Outcome {
	var p transfer.Prepare
	if err := json.Unmarshal(env.Content.Payload, &p); err != nil || p.TransferID == "" {
		return failure(env, transfer.ActionPrepare, transfer.CodeValidation,
			"malformed prepare payload", nil)
	}

	var class, err = h.Resolver.Resolve(ctx, &p)
	if err != nil {
		log.WithField("transferId", p.TransferID).WithError(err).Error("duplicate resolution failed")
		return failure(env, transfer.ActionPrepare, transfer.CodeInternal, "", p.ExtensionList)
	}

	switch class {
	case dedup.InFlight:
		// Exact replay of a transfer still being processed. No-op.
		return Outcome{Kind: KindOk}
	case dedup.Anomaly:
		return failure(env, transfer.ActionPrepare, transfer.CodeValidation,
			"duplicate transfer has no recorded state", p.ExtensionList)
	case dedup.Modified:
		return failure(env, transfer.ActionPrepare, transfer.CodeModifiedRequest, "", p.ExtensionList)
	case dedup.FinalizedReplay:
		return h.finalizedReplay(ctx, env, &p)
	}

	// New transfer: validate, persist, fan out.
	pass, reasons, err := h.Validator.ValidateByName(ctx, &p)
	if err != nil {
		return failure(env, transfer.ActionPrepare, transfer.CodeInternal, "", p.ExtensionList)
	}
	var reason = strings.Join(reasons, "; ")

	if err = h.Store.Prepare(ctx, &p, reason, pass); err != nil {
		log.WithField("transferId", p.TransferID).WithError(err).Error("persisting prepare failed")
		return failure(env, transfer.ActionPrepare, transfer.CodeInternal, "", p.ExtensionList)
	}

	if pass {
		var pos = env.Forward(transfer.TypePosition, transfer.ActionPrepare,
			transfer.EventState{Status: transfer.StatusSuccess})
		return Outcome{
			Kind:   KindOk,
			Events: []Event{PositionEvent(p.PayerFSP, transfer.ActionPrepare, pos)},
		}
	}

	if err = h.Store.LogTransferError(ctx, p.TransferID, transfer.CodeValidation, reason); err != nil {
		return failure(env, transfer.ActionPrepare, transfer.CodeInternal, "", p.ExtensionList)
	}
	return failure(env, transfer.ActionPrepare, transfer.CodeValidation, reason, p.ExtensionList)
}

// finalizedReplay answers an exact replay of a finalized transfer with a
// success notification carrying the current transfer snapshot.
func (h *PrepareHandler) finalizedReplay(ctx context.Context, env *transfer.Envelope, p *transfer.Prepare) Outcome {
	var snapshot, err = h.Store.GetByID(ctx, p.TransferID)
	if errors.Is(err, store.ErrNotFound) {
		return failure(env, transfer.ActionPrepare, transfer.CodeValidation,
			"duplicate transfer has no recorded state", p.ExtensionList)
	} else if err != nil {
		return failure(env, transfer.ActionPrepare, transfer.CodeInternal, "", p.ExtensionList)
	}

	out, err := transfer.NewEnvelope(env.ID, transfer.SwitchName, env.From,
		transfer.TypeNotification, transfer.ActionPrepareDuplicate, snapshot)
	if err != nil {
		return failure(env, transfer.ActionPrepare, transfer.CodeInternal, "", p.ExtensionList)
	}
	return Outcome{Kind: KindOk, Events: []Event{NotificationEvent(out)}}
}
