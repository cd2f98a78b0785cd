package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fspswitch/transfers/go/store"
	"github.com/fspswitch/transfers/go/transfer"
	"github.com/fspswitch/transfers/go/validator"
)

// FulfilStore is the slice of the store gateway the fulfil pipeline uses.
type FulfilStore interface {
	GetByID(ctx context.Context, transferID string) (*transfer.Transfer, error)
	Fulfil(ctx context.Context, transferID, fulfilment string, completed time.Time) error
	Reject(ctx context.Context, transferID string, info transfer.ErrorInformation) error
}

// FulfilHandler drives the commit/reject phase of a transfer. Its checks
// are strictly ordered: fulfilment cryptography before state, state before
// expiry. A forged fulfilment against an expired transfer must still
// report a modified request, not expiry, to avoid leaking state.
type FulfilHandler struct {
	Store FulfilStore
	// Now is the expiry clock; defaults to time.Now.
	Now func() time.Time
}

var _ Handler = (*FulfilHandler)(nil)

type fulfilPayload struct {
	transfer.Fulfil
	ErrorInformation *transfer.ErrorInformation `json:"errorInformation,omitempty"`
}

// Handle implements Handler.
func (h *FulfilHandler) Handle(ctx context.Context, env *transfer.Envelope) Outcome {
	var event = env.Metadata.Event
	var action = event.Action

	if event.Type != transfer.TypeFulfil ||
		(action != transfer.ActionCommit && action != transfer.ActionReject) {
		// Unknown type/action combination is a protocol violation.
		return failure(env, transfer.ActionCommit, transfer.CodeInternal, "", nil)
	}

	var payload fulfilPayload
	if err := json.Unmarshal(env.Content.Payload, &payload); err != nil {
		return failure(env, action, transfer.CodeInternal, "", nil)
	}
	var transferID = env.ID

	var existing, err = h.Store.GetByID(ctx, transferID)
	if errors.Is(err, store.ErrNotFound) {
		return failure(env, action, transfer.CodeInternal, "", payload.ExtensionList)
	} else if err != nil {
		log.WithField("transferId", transferID).WithError(err).Error("reading transfer failed")
		return failure(env, action, transfer.CodeInternal, "", payload.ExtensionList)
	}

	// A commit must present a valid preimage of the stored condition.
	// A reject presenting a fulfilment is held to the same check.
	if action == transfer.ActionCommit || payload.Fulfilment != "" {
		if !validator.VerifyFulfilment(payload.Fulfilment, existing.Condition) {
			return failure(env, action, transfer.CodeModifiedRequest, "", payload.ExtensionList)
		}
	}
	if existing.TransferState != transfer.StateReserved {
		return failure(env, action, transfer.CodeInternal, "", payload.ExtensionList)
	}
	if !existing.ExpirationDate.After(h.now()) {
		return failure(env, action, transfer.CodeExpired, "", payload.ExtensionList)
	}

	switch action {
	case transfer.ActionCommit:
		if err = h.Store.Fulfil(ctx, transferID, payload.Fulfilment, payload.CompletedTimestamp); err != nil {
			log.WithField("transferId", transferID).WithError(err).Error("committing transfer failed")
			return failure(env, action, transfer.CodeInternal, "", payload.ExtensionList)
		}
		var pos = env.Forward(transfer.TypePosition, transfer.ActionCommit,
			transfer.EventState{Status: transfer.StatusSuccess})
		return Outcome{
			Kind:   KindOk,
			Events: []Event{PositionEvent(existing.PayeeFSP, transfer.ActionCommit, pos)},
		}

	default: // transfer.ActionReject
		var info transfer.ErrorInformation
		if payload.ErrorInformation != nil {
			info = *payload.ErrorInformation
		} else {
			info = transfer.NewErrorInformation(transfer.CodeValidation,
				"transfer rejected by payee", payload.ExtensionList)
		}
		if err = h.Store.Reject(ctx, transferID, info); err != nil {
			log.WithField("transferId", transferID).WithError(err).Error("rejecting transfer failed")
			return failure(env, action, transfer.CodeInternal, "", payload.ExtensionList)
		}
		var pos = env.Forward(transfer.TypePosition, transfer.ActionReject,
			transfer.EventState{Status: transfer.StatusSuccess})
		return Outcome{
			Kind:   KindOk,
			Events: []Event{PositionEvent(existing.PayerFSP, transfer.ActionReject, pos)},
		}
	}
}

func (h *FulfilHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
