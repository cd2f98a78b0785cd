package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	pb "go.gazette.dev/core/broker/protocol"
	mbp "go.gazette.dev/core/mainboilerplate"
	"go.gazette.dev/core/task"

	"github.com/fspswitch/transfers/go/bus"
	"github.com/fspswitch/transfers/go/handlers"
	"github.com/fspswitch/transfers/go/store"
	"github.com/fspswitch/transfers/go/validator"
)

type storeConfig struct {
	Path string `long:"path" env:"PATH" default:"transfers.db" description:"Path of the transfer store database"`
}

type cmdServeConsumer struct {
	Broker     mbp.ClientConfig `group:"Broker" namespace:"broker" env-namespace:"BROKER"`
	Store      storeConfig      `group:"Store" namespace:"store" env-namespace:"STORE"`
	Consumer   bus.ConfigGroup  `group:"Consumer" namespace:"consumer" env-namespace:"CONSUMER"`
	Currencies []string         `long:"currency" env:"CURRENCIES" env-delim:"," default:"USD" description:"Currency code accepted by the switch; may be repeated"`

	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
}

func (cmd cmdServeConsumer) Execute(_ []string) error {
	defer mbp.InitDiagnosticsAndRecover(cmd.Diagnostics)()
	mbp.InitLog(cmd.Log)

	log.WithFields(log.Fields{
		"config":    cmd,
		"version":   mbp.Version,
		"buildDate": mbp.BuildDate,
	}).Info("switch-transfers configuration")

	var ctx = pb.WithDispatchDefault(context.Background())
	var tasks = task.NewGroup(ctx)

	var st, err = store.OpenSQLite(ctx, cmd.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	var rjc = cmd.Broker.MustRoutedJournalClient(ctx)
	var registrar = &handlers.Registrar{
		Store:           st,
		RJC:             rjc,
		Producer:        bus.NewJournalProducer(tasks.Context(), rjc),
		Configs:         cmd.Consumer,
		Validator:       validator.New(st, cmd.Currencies),
		ProvisionTopics: true,
	}

	registered, err := registrar.RegisterAllHandlers(ctx, tasks)
	if err != nil {
		return fmt.Errorf("registering handlers: %w", err)
	}
	log.WithField("consumers", registered).Info("starting switch-transfers consumer")

	// Install signal handler & start consumer tasks.
	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)

	tasks.Queue("watch signalCh", func() error {
		select {
		case sig := <-signalCh:
			log.WithField("signal", sig).Info("caught signal")
			tasks.Cancel()
			return nil
		case <-tasks.Context().Done():
			return nil
		}
	})
	tasks.GoRun()

	// Block until all consumers complete.
	if err = tasks.Wait(); err != nil {
		return fmt.Errorf("consumer task failed: %w", err)
	}
	log.Info("goodbye")
	return nil
}
