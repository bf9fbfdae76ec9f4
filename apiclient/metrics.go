package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the client's request pipeline.
type Metrics struct {
	requests  *prometheus.CounterVec
	retries   prometheus.Counter
	refreshes prometheus.Counter
}

// NewMetrics registers the client's collectors with the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authkit",
			Name:      "api_requests_total",
			Help:      "Outbound API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "authkit",
			Name:      "api_retries_total",
			Help:      "Server-error retries issued by the client.",
		}),
		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "authkit",
			Name:      "token_refreshes_total",
			Help:      "Token refreshes triggered by credential rejection.",
		}),
	}
}

// count records a completed request; an empty kind means success
func (c *Client) count(method string, kind Kind) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	c.metrics.requests.WithLabelValues(method, outcome).Inc()
}

func (c *Client) countRetry() {
	if c.metrics == nil {
		return
	}
	c.metrics.retries.Inc()
}

func (c *Client) countRefresh() {
	if c.metrics == nil {
		return
	}
	c.metrics.refreshes.Inc()
}
