package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fspswitch/transfers/go/transfer"
)

func transferEvent(t *testing.T, action, status string) *transfer.Envelope {
	var env, err = transfer.NewEnvelope("t1", "dfspA", "dfspB",
		transfer.TypeTransfer, action, map[string]string{"transferId": "t1", "extra": "preserved"})
	require.NoError(t, err)
	env.Metadata.Event.State.Status = status
	return env
}

func TestRouterForwardsTerminalSuccessEvents(t *testing.T) {
	var handler = new(RouterHandler)

	for _, action := range []string{
		transfer.ActionPrepare,
		transfer.ActionCommit,
		transfer.ActionReject,
		transfer.ActionAbort,
		transfer.ActionTimeoutReserved,
	} {
		t.Run(action, func(t *testing.T) {
			var env = transferEvent(t, action, transfer.StatusSuccess)
			var out = handler.Handle(context.Background(), env)

			require.Equal(t, KindOk, out.Kind)
			require.Len(t, out.Events, 1)

			var ev = out.Events[0]
			require.Empty(t, ev.Participant)
			require.Equal(t, "notification", ev.TopicAction)
			require.Equal(t, transfer.TypeNotification, ev.Envelope.Metadata.Event.Type)
			require.Equal(t, action, ev.Envelope.Metadata.Event.Action)
			// The payload passes through untouched.
			require.Equal(t, env.Content, ev.Envelope.Content)
		})
	}
}

func TestRouterIgnoresUnroutableEvents(t *testing.T) {
	var handler = new(RouterHandler)

	var cases = []struct {
		name string
		env  *transfer.Envelope
	}{
		{"failure status", transferEvent(t, transfer.ActionCommit, transfer.StatusFailure)},
		{"unknown action", transferEvent(t, "settle", transfer.StatusSuccess)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out = handler.Handle(context.Background(), tc.env)
			require.Equal(t, KindOk, out.Kind)
			require.Empty(t, out.Events)
		})
	}
}
