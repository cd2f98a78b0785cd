// Package dedup classifies incoming prepare payloads against the store's
// duplicate-detection record. The Resolver is the single authority for
// what a replayed request means; coordinators act on its classification
// and never re-inspect the underlying booleans.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/fspswitch/transfers/go/store"
	"github.com/fspswitch/transfers/go/transfer"
	"github.com/fspswitch/transfers/go/validator"
)

// Classification of an incoming prepare payload.
type Classification int

const (
	// New: first sighting; proceed to validation.
	New Classification = iota
	// Anomaly: a duplicate hash exists but no transfer state does.
	Anomaly
	// FinalizedReplay: an exact replay of a transfer already COMMITTED or
	// ABORTED; answer with the current snapshot.
	FinalizedReplay
	// InFlight: an exact replay of a transfer still being processed;
	// silently a no-op.
	InFlight
	// Modified: same transferId, different payload. Protocol violation.
	Modified
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Anomaly:
		return "anomaly"
	case FinalizedReplay:
		return "finalized-replay"
	case InFlight:
		return "in-flight"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// Store is the slice of the store gateway the Resolver requires.
type Store interface {
	ValidateDuplicateHash(ctx context.Context, transferID string, fingerprint []byte) (store.DuplicateCheck, error)
	TransferStateChange(ctx context.Context, transferID string) (transfer.State, error)
}

// Resolver classifies prepare payloads.
type Resolver struct {
	store Store
}

// NewResolver returns a Resolver over |s|.
func NewResolver(s Store) *Resolver { return &Resolver{store: s} }

// Resolve fingerprints |p| and classifies it against the store.
func (r *Resolver) Resolve(ctx context.Context, p *transfer.Prepare) (Classification, error) {
	var check, err = r.store.ValidateDuplicateHash(ctx, p.TransferID, validator.Fingerprint(p))
	if err != nil {
		return New, fmt.Errorf("checking duplicate hash: %w", err)
	}

	switch {
	case check.ExistsNotMatching:
		return Modified, nil
	case !check.ExistsMatching:
		return New, nil
	}

	state, err := r.store.TransferStateChange(ctx, p.TransferID)
	if errors.Is(err, store.ErrNotFound) {
		return Anomaly, nil
	} else if err != nil {
		return New, fmt.Errorf("reading replayed transfer state: %w", err)
	}

	if state.Terminal() {
		return FinalizedReplay, nil
	}
	return InFlight, nil
}
