package gateway

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type gatewayMetrics struct {
	refreshTotal        *prometheus.CounterVec
	retryTotal          prometheus.Counter
	sessionExpiredTotal prometheus.Counter
}

func newGatewayMetrics(reg prometheus.Registerer) (*gatewayMetrics, error) {
	m := &gatewayMetrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantdash",
			Subsystem: "gateway",
			Name:      "refresh_total",
			Help:      "Number of access token refreshes by outcome.",
		}, []string{"outcome"}),
		retryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plantdash",
			Subsystem: "gateway",
			Name:      "retry_total",
			Help:      "Number of requests retried after a token refresh.",
		}),
		sessionExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plantdash",
			Subsystem: "gateway",
			Name:      "session_expired_total",
			Help:      "Number of sessions that could not be recovered.",
		}),
	}
	var err error
	m.refreshTotal, err = register(reg, m.refreshTotal)
	if err != nil {
		return nil, err
	}
	m.retryTotal, err = register(reg, m.retryTotal)
	if err != nil {
		return nil, err
	}
	m.sessionExpiredTotal, err = register(reg, m.sessionExpiredTotal)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// register reuses an identical collector when it is already registered
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		existing, ok := are.ExistingCollector.(T)
		if ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *gatewayMetrics) refreshed(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *gatewayMetrics) retried() {
	if m == nil {
		return
	}
	m.retryTotal.Inc()
}

func (m *gatewayMetrics) sessionExpired() {
	if m == nil {
		return
	}
	m.sessionExpiredTotal.Inc()
}
