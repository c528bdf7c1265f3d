// Package metrics defines the Prometheus collectors exported by the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery results for fan-out messages.
const (
	DeliverySent      = "sent"
	DeliveryEdited    = "edited"
	DeliveryUnchanged = "unchanged"
	DeliveryFailed    = "failed"
)

// Scheduler actions.
const (
	ActionReminder   = "reminder"
	ActionUnanswered = "unanswered"
	ActionExpired    = "expired"
	ActionCollected  = "collected"
)

// Metrics groups the collectors used by the service layer.
type Metrics struct {
	Deliveries       *prometheus.CounterVec
	ProposalsCreated prometheus.Counter
	Votes            *prometheus.CounterVec
	SchedulerActions *prometheus.CounterVec
	SchedulerTick    prometheus.Histogram
	SchedulerErrors  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walkbot",
			Name:      "fanout_deliveries_total",
			Help:      "Proposal messages pushed to recipients, by result.",
		}, []string{"result"}),
		ProposalsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walkbot",
			Name:      "proposals_created_total",
			Help:      "Walk proposals created.",
		}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walkbot",
			Name:      "votes_total",
			Help:      "Votes recorded, by kind.",
		}, []string{"kind"}),
		SchedulerActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walkbot",
			Name:      "scheduler_actions_total",
			Help:      "Proposals acted on by the scheduler, by action.",
		}, []string{"action"}),
		SchedulerTick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "walkbot",
			Name:      "scheduler_tick_seconds",
			Help:      "Duration of one scheduler tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		SchedulerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walkbot",
			Name:      "scheduler_errors_total",
			Help:      "Errors raised while running scheduler passes.",
		}),
	}

	reg.MustRegister(
		m.Deliveries,
		m.ProposalsCreated,
		m.Votes,
		m.SchedulerActions,
		m.SchedulerTick,
		m.SchedulerErrors,
	)
	return m
}
