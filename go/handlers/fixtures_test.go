package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fspswitch/transfers/go/dedup"
	"github.com/fspswitch/transfers/go/store"
	"github.com/fspswitch/transfers/go/transfer"
	"github.com/fspswitch/transfers/go/validator"
)

// recordingProducer captures produced events, and optionally appends to a
// shared operation sequence to assert commit/produce ordering.
type recordingProducer struct {
	seq      *[]string
	failWith error
	events   []producedEvent
}

type producedEvent struct {
	participant string
	action      string
	env         *transfer.Envelope
}

func (p *recordingProducer) ProduceGeneral(_ context.Context, action string, env *transfer.Envelope) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.record("produce:" + action)
	p.events = append(p.events, producedEvent{action: action, env: env})
	return nil
}

func (p *recordingProducer) ProduceParticipant(_ context.Context, participant, action string, env *transfer.Envelope) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.record("produce:" + participant + ":" + action)
	p.events = append(p.events, producedEvent{participant: participant, action: action, env: env})
	return nil
}

func (p *recordingProducer) record(op string) {
	if p.seq != nil {
		*p.seq = append(*p.seq, op)
	}
}

var noCommit = func() error { return nil }

var testPreimage = []byte("0123456789abcdef0123456789abcdef")

func testFulfilment() string {
	return base64.RawURLEncoding.EncodeToString(testPreimage)
}

func testCondition() string {
	var digest = sha256.Sum256(testPreimage)
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

func newTestStore(t *testing.T) *store.SQLite {
	var st, err = store.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	for _, name := range []string{"dfspA", "dfspB"} {
		require.NoError(t, st.EnsureParticipant(context.Background(), name))
	}
	return st
}

func newPrepareHandler(st *store.SQLite) *PrepareHandler {
	return &PrepareHandler{
		Store:     st,
		Validator: validator.New(st, []string{"USD"}),
		Resolver:  dedup.NewResolver(st),
	}
}

func fixturePrepare(id string) *transfer.Prepare {
	return &transfer.Prepare{
		TransferID:     id,
		PayerFSP:       "dfspA",
		PayeeFSP:       "dfspB",
		Amount:         transfer.Amount{Currency: "USD", Amount: "100.00"},
		ILPPacket:      base64.StdEncoding.EncodeToString([]byte("ilp-packet-fixture")),
		Condition:      testCondition(),
		ExpirationDate: time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
		ExtensionList:  transfer.ExtensionList{},
	}
}

func prepareEnvelope(t *testing.T, p *transfer.Prepare) *transfer.Envelope {
	var env, err = transfer.NewEnvelope(p.TransferID, p.PayerFSP, p.PayeeFSP,
		transfer.TypeTransfer, transfer.ActionPrepare, p)
	require.NoError(t, err)
	return env
}

func fulfilEnvelope(t *testing.T, transferID, action string, payload interface{}) *transfer.Envelope {
	var env, err = transfer.NewEnvelope(transferID, "dfspB", transfer.SwitchName,
		transfer.TypeFulfil, action, payload)
	require.NoError(t, err)
	return env
}

// reservedTransfer seeds the store with a prepared and reserved transfer.
func reservedTransfer(t *testing.T, st *store.SQLite, p *transfer.Prepare) {
	var ctx = context.Background()
	require.NoError(t, st.Prepare(ctx, p, "", true))
	require.NoError(t, st.Reserve(ctx, p.TransferID))
}

func errorInfoOf(t *testing.T, env *transfer.Envelope) transfer.ErrorInformation {
	var payload struct {
		ErrorInformation transfer.ErrorInformation `json:"errorInformation"`
	}
	require.NoError(t, json.Unmarshal(env.Content.Payload, &payload))
	return payload.ErrorInformation
}
