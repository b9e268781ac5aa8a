package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the worker's Prometheus counters.
type Metrics struct {
	registry *prometheus.Registry

	EmailsIngested   prometheus.Counter
	EmailsProcessed  prometheus.Counter
	EmailsRelevant   prometheus.Counter
	EmailsIgnored    prometheus.Counter
	EmailsFailed     prometheus.Counter
	PushesDelivered  prometheus.Counter
	DraftsCreated    prometheus.Counter
	AccountsPolled   prometheus.Counter
	AccountPollError prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		EmailsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_emails_ingested_total",
			Help: "Emails inserted from Gmail.",
		}),
		EmailsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_emails_processed_total",
			Help: "Emails that reached a terminal pipeline status.",
		}),
		EmailsRelevant: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_emails_relevant_total",
			Help: "Emails classified as business-relevant.",
		}),
		EmailsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_emails_ignored_total",
			Help: "Emails routed to an ignore bucket.",
		}),
		EmailsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_emails_failed_total",
			Help: "Emails whose pipeline run failed.",
		}),
		PushesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_pushes_delivered_total",
			Help: "Web push notifications delivered.",
		}),
		DraftsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_drafts_created_total",
			Help: "Reply draft versions created.",
		}),
		AccountsPolled: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_accounts_polled_total",
			Help: "Gmail accounts polled.",
		}),
		AccountPollError: factory.NewCounter(prometheus.CounterOpts{
			Name: "triage_account_poll_errors_total",
			Help: "Gmail account polls that errored.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
