package handlers

import "github.com/prometheus/client_golang/prometheus"

var messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "switch_transfer_messages_total",
	Help: "Envelopes consumed by the transfer core, by handler and outcome.",
}, []string{"handler", "outcome", "code"})

var eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "switch_transfer_events_produced_total",
	Help: "Downstream events produced by the transfer core, by handler and topic action.",
}, []string{"handler", "action"})

func init() {
	prometheus.MustRegister(messagesTotal, eventsTotal)
}
