// Package store is the transactional gateway to transfer persistence.
// Every operation is atomic from the caller's perspective: partial
// failures surface as a single wrapped error. The store is the
// serialization point for all lifecycle transitions.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fspswitch/transfers/go/transfer"
)

// ErrNotFound is returned when a keyed read matches nothing.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a lifecycle write finds the
// transfer in a state that forbids it.
var ErrInvalidTransition = errors.New("invalid state transition")

// DuplicateCheck is the outcome of the atomic insert-if-absent of a
// (transferId, fingerprint) pair.
type DuplicateCheck struct {
	// ExistsMatching: the same transferId was seen before with an
	// identical fingerprint.
	ExistsMatching bool
	// ExistsNotMatching: the same transferId was seen before with a
	// different fingerprint.
	ExistsNotMatching bool
}

// Store is the persistence contract consumed by the transfer core.
type Store interface {
	// ValidateDuplicateHash atomically records (transferID, fingerprint)
	// if absent, and classifies the pair against what was already stored.
	ValidateDuplicateHash(ctx context.Context, transferID string, fingerprint []byte) (DuplicateCheck, error)
	// TransferStateChange returns the latest recorded state of the
	// transfer, or ErrNotFound.
	TransferStateChange(ctx context.Context, transferID string) (transfer.State, error)
	// GetByID returns the persisted transfer snapshot, or ErrNotFound.
	GetByID(ctx context.Context, transferID string) (*transfer.Transfer, error)
	// Prepare persists the transfer in state RECEIVED. An invalid prepare
	// (valid=false) is persisted regardless, flagged with |reason|, as
	// required for audit.
	Prepare(ctx context.Context, p *transfer.Prepare, reason string, valid bool) error
	// Reserve transitions RECEIVED to RESERVED. It is invoked by the
	// position subsystem once funds are reserved, not by this core.
	Reserve(ctx context.Context, transferID string) error
	// Fulfil transitions RESERVED to COMMITTED, recording the fulfilment.
	Fulfil(ctx context.Context, transferID, fulfilment string, completed time.Time) error
	// Reject transitions RESERVED to ABORTED, recording the error.
	Reject(ctx context.Context, transferID string, info transfer.ErrorInformation) error
	// LogTransferError appends to the transfer error log.
	LogTransferError(ctx context.Context, transferID string, code int, description string) error

	// Participant resolves a participant by name; (nil, nil) if unknown.
	Participant(ctx context.Context, name string) (*transfer.Participant, error)
	// Participants lists the names of all active participants.
	Participants(ctx context.Context) ([]string, error)

	// TopicOffset returns the committed consumption offset of |topic|,
	// or zero if none has been committed.
	TopicOffset(ctx context.Context, topic string) (int64, error)
	// CommitTopicOffset durably records the consumption offset of |topic|.
	CommitTopicOffset(ctx context.Context, topic string, offset int64) error
}
