package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fspswitch/transfers/go/transfer"
)

func TestPrepareHappyPath(t *testing.T) {
	var ctx = context.Background()
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)
	var env = prepareEnvelope(t, fixturePrepare("t1"))

	var out = handler.Handle(ctx, env)
	require.Equal(t, KindOk, out.Kind)
	require.Len(t, out.Events, 1)

	// The single event targets the payer's position topic, action prepare.
	require.Equal(t, "dfspA", out.Events[0].Participant)
	require.Equal(t, transfer.ActionPrepare, out.Events[0].TopicAction)
	require.Equal(t, transfer.TypePosition, out.Events[0].Envelope.Metadata.Event.Type)
	require.Equal(t, transfer.StatusSuccess, out.Events[0].Envelope.Metadata.Event.State.Status)

	// The store reflects the accepted prepare in state RECEIVED.
	var got, err = st.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, transfer.StateReceived, got.TransferState)
}

func TestPrepareReplayInFlightIsSilent(t *testing.T) {
	var ctx = context.Background()
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)
	var env = prepareEnvelope(t, fixturePrepare("t1"))

	require.Equal(t, KindOk, handler.Handle(ctx, env).Kind)

	// An exact redelivery while the transfer is in flight is a no-op:
	// no events, no error, no second store row.
	var out = handler.Handle(ctx, env)
	require.Equal(t, KindOk, out.Kind)
	require.Empty(t, out.Events)
}

func TestPrepareReplayOfFinalizedTransfer(t *testing.T) {
	var ctx = context.Background()
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)
	var env = prepareEnvelope(t, fixturePrepare("t1"))

	require.Equal(t, KindOk, handler.Handle(ctx, env).Kind)
	require.NoError(t, st.Reserve(ctx, "t1"))
	require.NoError(t, st.Fulfil(ctx, "t1", testFulfilment(), time.Now().UTC()))

	var out = handler.Handle(ctx, env)
	require.Equal(t, KindOk, out.Kind)
	require.Len(t, out.Events, 1)

	// The replay is answered on notification with the current snapshot.
	var ev = out.Events[0]
	require.Empty(t, ev.Participant)
	require.Equal(t, "notification", ev.TopicAction)
	require.Equal(t, transfer.ActionPrepareDuplicate, ev.Envelope.Metadata.Event.Action)
	require.Equal(t, transfer.StatusSuccess, ev.Envelope.Metadata.Event.State.Status)
	require.Equal(t, env.From, ev.Envelope.To)

	var snapshot transfer.Transfer
	require.NoError(t, json.Unmarshal(ev.Envelope.Content.Payload, &snapshot))
	require.Equal(t, "t1", snapshot.TransferID)
	require.Equal(t, transfer.StateCommitted, snapshot.TransferState)
	require.Equal(t, testFulfilment(), snapshot.Fulfilment)
}

func TestPrepareModifiedReplay(t *testing.T) {
	var ctx = context.Background()
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)

	require.Equal(t, KindOk, handler.Handle(ctx, prepareEnvelope(t, fixturePrepare("t1"))).Kind)

	// Redeliver with a modified amount: same transferId, different payload.
	var modified = fixturePrepare("t1")
	modified.Amount.Amount = "100.01"

	var out = handler.Handle(ctx, prepareEnvelope(t, modified))
	require.Equal(t, KindProtocolFailure, out.Kind)
	require.Equal(t, transfer.CodeModifiedRequest, out.Code)
	require.Len(t, out.Events, 1)
	require.Equal(t, "notification", out.Events[0].TopicAction)
	require.Equal(t, transfer.CodeModifiedRequest, errorInfoOf(t, out.Events[0].Envelope).ErrorCode)
}

func TestPrepareValidationFailure(t *testing.T) {
	var ctx = context.Background()
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)

	var p = fixturePrepare("t1")
	p.PayeeFSP = "dfspZ"
	p.ExtensionList = transfer.ExtensionList{{Key: "k", Value: "v"}}

	var out = handler.Handle(ctx, prepareEnvelope(t, p))
	require.Equal(t, KindProtocolFailure, out.Kind)
	require.Equal(t, transfer.CodeValidation, out.Code)
	require.Len(t, out.Events, 1)

	var info = errorInfoOf(t, out.Events[0].Envelope)
	require.Equal(t, transfer.CodeValidation, info.ErrorCode)
	require.Contains(t, info.ErrorDescription, `payee FSP "dfspZ" does not exist`)
	require.Equal(t, p.ExtensionList, info.ExtensionList)

	// The invalid prepare is persisted regardless, for audit.
	var got, err = st.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, transfer.StateReceived, got.TransferState)
}

func TestPrepareMalformedPayload(t *testing.T) {
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)

	var env, err = transfer.NewEnvelope("t1", "dfspA", "dfspB",
		transfer.TypeTransfer, transfer.ActionPrepare, "not an object")
	require.NoError(t, err)

	var out = handler.Handle(context.Background(), env)
	require.Equal(t, KindProtocolFailure, out.Kind)
	require.Equal(t, transfer.CodeValidation, out.Code)
	require.Len(t, out.Events, 1)
}

func TestPrepareStoreFaultIsInternal(t *testing.T) {
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)
	require.NoError(t, st.Close())

	var out = handler.Handle(context.Background(), prepareEnvelope(t, fixturePrepare("t1")))
	require.Equal(t, KindInternal, out.Kind)
	require.Equal(t, transfer.CodeInternal, out.Code)
	require.Len(t, out.Events, 1)
	require.Equal(t, transfer.CodeInternal, errorInfoOf(t, out.Events[0].Envelope).ErrorCode)
}

func TestPrepareCommitsBeforeProduce(t *testing.T) {
	var ctx = context.Background()
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)

	var seq []string
	var producer = &recordingProducer{seq: &seq}
	var commit = func() error {
		seq = append(seq, "commit")
		return nil
	}

	var out = handler.Handle(ctx, prepareEnvelope(t, fixturePrepare("t1")))
	require.NoError(t, Dispatch(ctx, "prepare", out, commit, producer))
	require.Equal(t, []string{"commit", "produce:dfspA:prepare"}, seq)
}

func TestPrepareRedeliveryAfterProduceFault(t *testing.T) {
	var ctx = context.Background()
	var st = newTestStore(t)
	var handler = newPrepareHandler(st)
	var env = prepareEnvelope(t, fixturePrepare("t1"))

	// An injected produce fault surfaces after the offset commit.
	var seq []string
	var boom = errors.New("broker unavailable")
	var commit = func() error {
		seq = append(seq, "commit")
		return nil
	}
	var out = handler.Handle(ctx, env)
	require.ErrorIs(t, Dispatch(ctx, "prepare", out, commit, &recordingProducer{failWith: boom}), boom)
	require.Equal(t, []string{"commit"}, seq)

	// Redelivery is idempotent: the replay classifies in flight, a no-op.
	out = handler.Handle(ctx, env)
	require.Equal(t, KindOk, out.Kind)
	require.Empty(t, out.Events)
}
