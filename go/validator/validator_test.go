package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fspswitch/transfers/go/transfer"
)

type fakeParticipants struct {
	active   map[string]bool
	failWith error
}

func (f *fakeParticipants) Participant(_ context.Context, name string) (*transfer.Participant, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var isActive, ok = f.active[name]
	if !ok {
		return nil, nil
	}
	return &transfer.Participant{Name: name, IsActive: isActive}, nil
}

func newTestValidator(failWith error) *Validator {
	var v = New(&fakeParticipants{
		active:   map[string]bool{"dfspA": true, "dfspB": true, "dfspC": false},
		failWith: failWith,
	}, []string{"USD", "EUR"})
	v.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return v
}

func TestValidateByNamePasses(t *testing.T) {
	var pass, reasons, err = newTestValidator(nil).ValidateByName(context.Background(), fixturePrepare())
	require.NoError(t, err)
	require.True(t, pass)
	require.Empty(t, reasons)
}

func TestValidateByNameReasons(t *testing.T) {
	var cases = []struct {
		name   string
		mutate func(*transfer.Prepare)
		expect string
	}{
		{"unknown payer", func(p *transfer.Prepare) { p.PayerFSP = "dfspZ" },
			`payer FSP "dfspZ" does not exist`},
		{"missing payer", func(p *transfer.Prepare) { p.PayerFSP = "" },
			"payer FSP is required"},
		{"inactive payee", func(p *transfer.Prepare) { p.PayeeFSP = "dfspC" },
			`payee FSP "dfspC" is not active`},
		{"unsupported currency", func(p *transfer.Prepare) { p.Amount.Currency = "XXX" },
			`currency "XXX" is not supported`},
		{"malformed amount", func(p *transfer.Prepare) { p.Amount.Amount = "1,00" },
			`amount "1,00" is malformed`},
		{"too many decimals", func(p *transfer.Prepare) { p.Amount.Amount = "1.00000" },
			`amount "1.00000" is malformed`},
		{"leading zero", func(p *transfer.Prepare) { p.Amount.Amount = "01.00" },
			`amount "01.00" is malformed`},
		{"zero amount", func(p *transfer.Prepare) { p.Amount.Amount = "0.00" },
			"amount must be positive"},
		{"bad ilp packet", func(p *transfer.Prepare) { p.ILPPacket = "%%%" },
			"ilpPacket does not parse"},
		{"empty ilp packet", func(p *transfer.Prepare) { p.ILPPacket = "" },
			"ilpPacket does not parse"},
		{"expired", func(p *transfer.Prepare) {
			p.ExpirationDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		},
			"expiration date 2020-01-01T00:00:00Z is not in the future"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p = fixturePrepare()
			tc.mutate(p)

			var pass, reasons, err = newTestValidator(nil).ValidateByName(context.Background(), p)
			require.NoError(t, err)
			require.False(t, pass)
			require.Contains(t, reasons, tc.expect)
		})
	}
}

func TestValidateByNameBadCondition(t *testing.T) {
	var p = fixturePrepare()
	p.Condition = "tooshort"

	var pass, reasons, err = newTestValidator(nil).ValidateByName(context.Background(), p)
	require.NoError(t, err)
	require.False(t, pass)
	require.Len(t, reasons, 1)
	require.Contains(t, reasons[0], "condition is invalid")
}

func TestValidateByNameAccumulatesReasons(t *testing.T) {
	var p = fixturePrepare()
	p.PayerFSP = "dfspZ"
	p.Amount = transfer.Amount{Currency: "XXX", Amount: "nope"}

	var pass, reasons, err = newTestValidator(nil).ValidateByName(context.Background(), p)
	require.NoError(t, err)
	require.False(t, pass)
	require.Len(t, reasons, 3)
}

func TestValidateByNameLookupFault(t *testing.T) {
	var boom = errors.New("store is down")
	var _, _, err = newTestValidator(boom).ValidateByName(context.Background(), fixturePrepare())
	require.ErrorIs(t, err, boom)
}
