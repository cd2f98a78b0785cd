package bus

import "time"

// ConsumerConfig configures one consumer binding. It is keyed per
// transfer action: the process carries a distinct configuration for
// PREPARE, FULFIL and TRANSFER consumers.
type ConsumerConfig struct {
	Group          string        `long:"group" env:"GROUP" default:"cl-group" description:"Consumer group identity"`
	SessionTimeout time.Duration `long:"session-timeout" env:"SESSION_TIMEOUT" default:"30s" description:"Consumer session timeout"`
	AutoCommit     bool          `long:"auto-commit" env:"AUTO_COMMIT" description:"Commit offsets implicitly after each handled message"`
}

// ConfigGroup is the full (CONSUMER, TRANSFER, <ACTION>) configuration
// tree, bound to flags and environment in the usual go-flags manner.
type ConfigGroup struct {
	Prepare  ConsumerConfig `group:"prepare" namespace:"transfer-prepare" env-namespace:"TRANSFER_PREPARE"`
	Fulfil   ConsumerConfig `group:"fulfil" namespace:"transfer-fulfil" env-namespace:"TRANSFER_FULFIL"`
	Transfer ConsumerConfig `group:"transfer" namespace:"transfer-get" env-namespace:"TRANSFER_GET"`
}

// For returns the consumer configuration keyed by transfer |action|.
func (g ConfigGroup) For(action string) ConsumerConfig {
	switch action {
	case "fulfil":
		return g.Fulfil
	case "transfer":
		return g.Transfer
	default:
		return g.Prepare
	}
}
