// Package bus is the gateway to the event bus. Topics are gazette
// journals named deterministically from participant and action; messages
// are JSON-framed Envelopes; consumption offsets are committed manually
// through a checkpoint store, never implicitly.
package bus

import (
	"fmt"

	pb "go.gazette.dev/core/broker/protocol"
)

// Actions with a shared, non-participant topic.
const (
	GeneralFulfil       = "fulfil"
	GeneralTransfer     = "transfer"
	GeneralNotification = "notification"
)

// PrepareTopic names the per-participant transfer-prepare topic.
func PrepareTopic(participant string) pb.Journal {
	return pb.Journal(fmt.Sprintf("topic-%s-transfer-prepare", participant))
}

// GeneralTopic names a shared transfer topic for |action|.
func GeneralTopic(action string) pb.Journal {
	return pb.Journal(fmt.Sprintf("topic-transfer-%s", action))
}

// PositionTopic names the per-participant position topic for |action|.
func PositionTopic(participant, action string) pb.Journal {
	return pb.Journal(fmt.Sprintf("topic-%s-position-%s", participant, action))
}

// FulfilTopic is the shared input topic of fulfil messages.
func FulfilTopic() pb.Journal { return GeneralTopic(GeneralFulfil) }

// TransferTopic is the shared fan-in topic of transfer action events.
func TransferTopic() pb.Journal { return GeneralTopic(GeneralTransfer) }

// NotificationTopic is the shared output topic of notifications.
func NotificationTopic() pb.Journal { return GeneralTopic(GeneralNotification) }
