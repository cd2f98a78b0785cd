package bus

import (
	"context"
	"fmt"
	"time"

	"go.gazette.dev/core/broker/client"
	pb "go.gazette.dev/core/broker/protocol"
	"go.gazette.dev/core/labels"
)

// EnsureTopic upserts the journal backing |topic|, with JSON framing.
func EnsureTopic(ctx context.Context, jc pb.JournalClient, topic pb.Journal) error {
	var spec = pb.JournalSpec{
		Name:        topic,
		Replication: 1,
		Fragment: pb.JournalSpec_Fragment{
			Length:           1 << 27, // 128MB.
			CompressionCodec: pb.CompressionCodec_SNAPPY,
			RefreshInterval:  5 * time.Minute,
		},
	}
	spec.LabelSet.SetValue(labels.ContentType, labels.ContentType_JSONLines)

	var resp, err = client.ApplyJournals(ctx, jc, &pb.ApplyRequest{
		Changes: []pb.ApplyRequest_Change{
			{Upsert: &spec, ExpectModRevision: 0},
		},
	})
	if resp != nil && resp.Status == pb.Status_ETCD_TRANSACTION_FAILED {
		// Lost a race to create the topic, or it already exists. Ignore.
		return nil
	} else if err != nil {
		return fmt.Errorf("creating topic %s: %w", topic, err)
	}
	return nil
}
