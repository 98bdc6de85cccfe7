package panel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Refreshes: исход каждого Refresh по панелям
	Refreshes *prometheus.CounterVec

	// StaleResults: ответы, пришедшие после более нового запроса или после Close
	StaleResults *prometheus.CounterVec

	// Rollbacks: откаты оптимистичных изменений
	Rollbacks *prometheus.CounterVec

	// PollTicks: сколько раз поллер запускал обновление
	PollTicks *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Refreshes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_panel_refreshes_total",
			Help: "Panel refreshes by panel and outcome.",
		}, []string{"panel", "outcome"}),

		StaleResults: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_panel_stale_results_total",
			Help: "Fetch results discarded because a newer fetch superseded them.",
		}, []string{"panel"}),

		Rollbacks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_panel_rollbacks_total",
			Help: "Optimistic updates reverted after a failed mutation.",
		}, []string{"panel"}),

		PollTicks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "console_panel_poll_ticks_total",
			Help: "Poller runs by panel.",
		}, []string{"panel"}),
	}
}
