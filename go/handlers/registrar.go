package handlers

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	pb "go.gazette.dev/core/broker/protocol"
	"go.gazette.dev/core/task"

	"github.com/fspswitch/transfers/go/bus"
	"github.com/fspswitch/transfers/go/dedup"
	"github.com/fspswitch/transfers/go/store"
	"github.com/fspswitch/transfers/go/transfer"
	"github.com/fspswitch/transfers/go/validator"
)

// Registrar binds the coordinators to their topics: one consumer per
// participant prepare topic, one on the shared fulfil topic, and one on
// the shared transfer topic. Each consumer's client ID equals its topic.
// Registration failures propagate; partial registration is left to the
// operator to recover.
type Registrar struct {
	Store     store.Store
	RJC       pb.RoutedJournalClient
	Producer  bus.Producer
	Configs   bus.ConfigGroup
	Validator *validator.Validator
	// ProvisionTopics upserts topic journals during registration.
	ProvisionTopics bool
}

// RegisterAllHandlers registers the prepare, fulfil and transfer handlers,
// returning the number of consumers registered. Zero participants is not
// an error: prepare registration reports no work and the shared handlers
// still register.
func (r *Registrar) RegisterAllHandlers(ctx context.Context, tasks *task.Group) (int, error) {
	var n, err = r.RegisterPrepareHandlers(ctx, tasks, nil)
	if err != nil {
		return n, fmt.Errorf("registering prepare handlers: %w", err)
	}
	if err = r.RegisterFulfilHandler(ctx, tasks); err != nil {
		return n, fmt.Errorf("registering fulfil handler: %w", err)
	}
	n++
	if err = r.RegisterTransferHandler(ctx, tasks); err != nil {
		return n, fmt.Errorf("registering transfer handler: %w", err)
	}
	n++
	return n, nil
}

// RegisterPrepareHandlers registers one prepare consumer per participant.
// A nil |participants| fetches all active participants from the store.
func (r *Registrar) RegisterPrepareHandlers(ctx context.Context, tasks *task.Group, participants []string) (int, error) {
	var err error
	if participants == nil {
		if participants, err = r.Store.Participants(ctx); err != nil {
			return 0, fmt.Errorf("listing participants: %w", err)
		}
	}
	if len(participants) == 0 {
		log.Info("no participants: no prepare handlers to register")
		return 0, nil
	}

	var handler = &PrepareHandler{
		Store:     r.Store,
		Validator: r.Validator,
		Resolver:  dedup.NewResolver(r.Store),
	}
	for _, participant := range participants {
		var topic = bus.PrepareTopic(participant)
		if err = r.provision(ctx,
			topic,
			bus.PositionTopic(participant, "prepare"),
			bus.PositionTopic(participant, "commit"),
			bus.PositionTopic(participant, "reject"),
		); err != nil {
			return 0, err
		}
		r.register(tasks, topic, r.Configs.For("prepare"), "prepare", handler)
	}
	return len(participants), nil
}

// RegisterFulfilHandler registers the single fulfil consumer.
func (r *Registrar) RegisterFulfilHandler(ctx context.Context, tasks *task.Group) error {
	if err := r.provision(ctx, bus.FulfilTopic(), bus.NotificationTopic()); err != nil {
		return err
	}
	r.register(tasks, bus.FulfilTopic(), r.Configs.For("fulfil"), "fulfil",
		&FulfilHandler{Store: r.Store})
	return nil
}

// RegisterTransferHandler registers the single transfer-event router.
func (r *Registrar) RegisterTransferHandler(ctx context.Context, tasks *task.Group) error {
	if err := r.provision(ctx, bus.TransferTopic(), bus.NotificationTopic()); err != nil {
		return err
	}
	r.register(tasks, bus.TransferTopic(), r.Configs.For("transfer"), "transfer",
		&RouterHandler{})
	return nil
}

func (r *Registrar) register(tasks *task.Group, topic pb.Journal, cfg bus.ConsumerConfig, name string, h Handler) {
	var consumer = &bus.Consumer{
		Topic:    topic,
		ClientID: topic.String(),
		Config:   cfg,
		RJC:      r.RJC,
		Offsets:  r.Store,
		Handle:   r.dispatch(name, h),
	}
	consumer.QueueTasks(tasks)

	log.WithFields(log.Fields{
		"clientID": consumer.ClientID,
		"handler":  name,
	}).Info("registered handler")
}

// dispatch adapts a Handler into the consumer callback, closing the loop
// between pipeline outcomes and the commit-then-produce discipline.
func (r *Registrar) dispatch(name string, h Handler) bus.MessageFunc {
	return func(ctx context.Context, env *transfer.Envelope, commit func() error) error {
		return Dispatch(ctx, name, h.Handle(ctx, env), commit, r.Producer)
	}
}

func (r *Registrar) provision(ctx context.Context, topics ...pb.Journal) error {
	if !r.ProvisionTopics {
		return nil
	}
	for _, topic := range topics {
		if err := bus.EnsureTopic(ctx, r.RJC, topic); err != nil {
			return err
		}
	}
	return nil
}
