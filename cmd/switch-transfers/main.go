package main

import (
	"github.com/jessevdk/go-flags"
	mbp "go.gazette.dev/core/mainboilerplate"
)

const iniFilename = "switch-transfers.ini"

func main() {
	var parser = flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	serve, err := parser.Command.AddCommand("serve", "Serve a component of the switch", "", &struct{}{})
	mbp.Must(err, "failed to add command")

	_, _ = serve.AddCommand("consumer", "Serve the transfer consumer", `
Serve the transfer-orchestration consumer with the provided configuration,
until signaled to exit (via SIGTERM). One consumer is bound per participant
prepare topic, plus the shared fulfil and transfer topics.
`, new(cmdServeConsumer))

	participants, err := parser.Command.AddCommand("participants", "Manage switch participants", "", &struct{}{})
	mbp.Must(err, "failed to add command")

	_, _ = participants.AddCommand("add", "Register participants", `
Register one or more participants with the switch. Registration is
idempotent: already-known participants are left unchanged.
`, new(cmdParticipantsAdd))

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
