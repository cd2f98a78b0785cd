// Package validator implements the cryptographic and business validation
// of transfer requests: payload fingerprints for duplicate detection,
// constant-time fulfilment verification, and the named-rule checks run
// by the prepare pipeline.
package validator

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/fspswitch/transfers/go/transfer"
)

// ParticipantReader resolves a participant by name.
// A nil Participant with nil error means the participant is unknown.
type ParticipantReader interface {
	Participant(ctx context.Context, name string) (*transfer.Participant, error)
}

// Validator runs the named business-rule checks of the prepare pipeline.
type Validator struct {
	participants ParticipantReader
	currencies   map[string]struct{}
	now          func() time.Time
}

// New returns a Validator over |participants|, accepting |currencies|.
func New(participants ParticipantReader, currencies []string) *Validator {
	var set = make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		set[c] = struct{}{}
	}
	return &Validator{
		participants: participants,
		currencies:   set,
		now:          time.Now,
	}
}

var amountPattern = regexp.MustCompile(`^(0|[1-9][0-9]{0,17})(\.[0-9]{1,4})?$`)
var zeroAmountPattern = regexp.MustCompile(`^0(\.0+)?$`)

// ValidateByName checks |p| against the switch's business rules. Reasons
// are human-readable; an empty set means the payload passed. Failed checks
// are not errors: only participant-lookup faults surface as |err|.
func (v *Validator) ValidateByName(ctx context.Context, p *transfer.Prepare) (bool, []string, error) {
	var reasons []string

	for _, side := range []struct{ role, name string }{
		{"payer", p.PayerFSP},
		{"payee", p.PayeeFSP},
	} {
		if side.name == "" {
			reasons = append(reasons, fmt.Sprintf("%s FSP is required", side.role))
			continue
		}
		var part, err = v.participants.Participant(ctx, side.name)
		if err != nil {
			return false, nil, fmt.Errorf("looking up %s %q: %w", side.role, side.name, err)
		} else if part == nil {
			reasons = append(reasons, fmt.Sprintf("%s FSP %q does not exist", side.role, side.name))
		} else if !part.IsActive {
			reasons = append(reasons, fmt.Sprintf("%s FSP %q is not active", side.role, side.name))
		}
	}

	if _, ok := v.currencies[p.Amount.Currency]; !ok {
		reasons = append(reasons, fmt.Sprintf("currency %q is not supported", p.Amount.Currency))
	}
	if !amountPattern.MatchString(p.Amount.Amount) {
		reasons = append(reasons, fmt.Sprintf("amount %q is malformed", p.Amount.Amount))
	} else if zeroAmountPattern.MatchString(p.Amount.Amount) {
		reasons = append(reasons, "amount must be positive")
	}

	if _, err := decodeOpaque(p.ILPPacket); err != nil || p.ILPPacket == "" {
		reasons = append(reasons, "ilpPacket does not parse")
	}
	if _, err := decodeCondition(p.Condition); err != nil {
		reasons = append(reasons, fmt.Sprintf("condition is invalid: %v", err))
	}
	if !p.ExpirationDate.After(v.now()) {
		reasons = append(reasons, fmt.Sprintf("expiration date %s is not in the future",
			p.ExpirationDate.UTC().Format(time.RFC3339)))
	}
	return len(reasons) == 0, reasons, nil
}
