// Package metrics объявляет метрики Prometheus клиентского ядра.
// Метрики регистрируются в реестре по умолчанию и отдаются через /metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/camballey/tucan/internal/gateway"
)

var (
	// GatewayCalls количество вызовов удалённого шлюза по адаптеру, операции и результату.
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tucan",
		Subsystem: "gateway",
		Name:      "calls_total",
		Help:      "Number of remote gateway calls.",
	}, []string{"adapter", "op", "result"})

	// GatewayDuration длительность вызовов удалённого шлюза.
	GatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tucan",
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Remote gateway call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"adapter", "op"})

	// HTTPRequests запросы к локальному мосту.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tucan",
		Subsystem: "bridge",
		Name:      "requests_total",
		Help:      "Number of bridge HTTP requests.",
	}, []string{"method", "route", "status"})

	// CardOps операции менеджера карт.
	CardOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tucan",
		Subsystem: "cards",
		Name:      "operations_total",
		Help:      "Card collection mutations by outcome.",
	}, []string{"op", "result"})
)

// ObserveGateway фиксирует вызов шлюза, начатый в start.
func ObserveGateway(adapter, op string, start time.Time, err error) {
	GatewayCalls.WithLabelValues(adapter, op, Result(err)).Inc()
	GatewayDuration.WithLabelValues(adapter, op).Observe(time.Since(start).Seconds())
}

// ObserveHTTP фиксирует ответ моста.
func ObserveHTTP(method, route string, status int) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Result сводит ошибку к метке результата.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gateway.ErrNotFound):
		return "not_found"
	case errors.Is(err, gateway.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, gateway.ErrNoSession), errors.Is(err, gateway.ErrSessionExpired):
		return "unauthenticated"
	default:
		return "error"
	}
}
