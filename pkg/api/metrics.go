package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// clientMetrics instruments one Client. Nil when WithMetrics was not given.
type clientMetrics struct {
	requests *prometheus.CounterVec
	logins   *prometheus.CounterVec
	retries  prometheus.Counter
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	factory := promauto.With(reg)
	return &clientMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "apiclient_requests_total",
			Help: "JSON-RPC requests issued, by method and outcome.",
		}, []string{"method", "outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "apiclient_logins_total",
			Help: "Login RPCs issued, by outcome.",
		}, []string{"outcome"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "apiclient_auth_retries_total",
			Help: "Requests retried after the server rejected the access token.",
		}),
	}
}

func (c *Client) countRequest(method, outcome string) {
	if c.metrics != nil {
		c.metrics.requests.WithLabelValues(method, outcome).Inc()
	}
}

func (c *Client) countLogin(outcome string) {
	if c.metrics != nil {
		c.metrics.logins.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) countRetry() {
	if c.metrics != nil {
		c.metrics.retries.Inc()
	}
}
