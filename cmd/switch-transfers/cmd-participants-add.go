package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	mbp "go.gazette.dev/core/mainboilerplate"

	"github.com/fspswitch/transfers/go/store"
)

type cmdParticipantsAdd struct {
	Store storeConfig   `group:"Store" namespace:"store" env-namespace:"STORE"`
	Log   mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`

	Args struct {
		Names []string `positional-arg-name:"NAME" required:"1" description:"Participant name"`
	} `positional-args:"yes"`
}

func (cmd cmdParticipantsAdd) Execute(_ []string) error {
	mbp.InitLog(cmd.Log)

	var ctx = context.Background()
	var st, err = store.OpenSQLite(ctx, cmd.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	for _, name := range cmd.Args.Names {
		if err = st.EnsureParticipant(ctx, name); err != nil {
			return err
		}
		log.WithField("participant", name).Info("registered participant")
	}
	return nil
}
