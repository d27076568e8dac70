package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"arguard/internal/model"
)

// Collectors are the Prometheus series exported by the detector.
type Collectors struct {
	Registry   *prometheus.Registry
	verdicts   *prometheus.CounterVec
	sessions   prometheus.Gauge
	modelRules prometheus.Gauge
}

// NewCollectors registers the series on reg, or on a fresh registry when reg
// is nil.
func NewCollectors(reg *prometheus.Registry) *Collectors {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Collectors{
		Registry: reg,
		verdicts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "arguard_verdicts_total",
				Help: "Verdicts emitted by live sessions",
			},
			[]string{"status", "reason"},
		),
		sessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "arguard_sessions",
				Help: "Live sessions currently tracked",
			},
		),
		modelRules: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "arguard_model_rules",
				Help: "Association rules in the loaded model",
			},
		),
	}
}

func (c *Collectors) ObserveVerdict(v model.Verdict) {
	if c == nil {
		return
	}
	c.verdicts.WithLabelValues(v.Status.String(), string(v.Reason)).Inc()
}

func (c *Collectors) SetSessions(n int) {
	if c == nil {
		return
	}
	c.sessions.Set(float64(n))
}

func (c *Collectors) SetModelRules(n int) {
	if c == nil {
		return
	}
	c.modelRules.Set(float64(n))
}
