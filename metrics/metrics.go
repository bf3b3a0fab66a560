// Package metrics exposes Prometheus counters for the session layer: login and
// registration outcomes, route guard decisions, request authorization and
// identity handoff outcomes.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation labels.
const (
	OpLogin    = "login"
	OpRegister = "register"
)

// Outcome labels for authentication attempts.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeMalformed   = "malformed"
	OutcomeStoreFailed = "store_failed"
)

// Guard decision labels.
const (
	GuardAllowed      = "allowed"
	GuardNoSession    = "no_session"
	GuardCorrupted    = "corrupted"
	GuardForbidden    = "forbidden"
	GuardServerRender = "server_render"
)

// Injection labels.
const (
	InjectAuthorized = "authorized"
	InjectAnonymous  = "anonymous"
	InjectBypassed   = "bypassed"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "tuniway").
	Namespace string

	// Subsystem is the metrics subsystem (default: "session").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// Metrics holds the session layer collectors.
type Metrics struct {
	authAttempts   *prometheus.CounterVec
	guardDecisions *prometheus.CounterVec
	injections     *prometheus.CounterVec
	handoffs       *prometheus.CounterVec
	gatherer       prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New(opts ...Option) *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg, opts...)
}

// NewWithRegistry registers the collectors on reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer, opts ...Option) *Metrics {
	config := Config{
		Namespace: "tuniway",
		Subsystem: "session",
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(reg)

	return &Metrics{
		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "auth_attempts_total",
			Help:        "Login and registration attempts by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"op", "outcome"}),

		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "guard_decisions_total",
			Help:        "Route guard evaluations by decision",
			ConstLabels: config.ConstLabels,
		}, []string{"decision"}),

		injections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "outgoing_requests_total",
			Help:        "Outgoing backend requests by authorization treatment",
			ConstLabels: config.ConstLabels,
		}, []string{"treatment"}),

		handoffs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "identity_handoffs_total",
			Help:        "Identity provider handoff completions by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		gatherer: g,
	}
}

func (m *Metrics) AuthAttempt(op, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) GuardDecision(decision string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) Injection(treatment string) {
	if m == nil {
		return
	}
	m.injections.WithLabelValues(treatment).Inc()
}

func (m *Metrics) Handoff(outcome string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(outcome).Inc()
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
