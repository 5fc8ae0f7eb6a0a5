package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cascadeStages = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taskboard",
	Subsystem: "cascade",
	Name:      "stages_total",
	Help:      "Cascade stages executed, by operation, stage and result.",
}, []string{"operation", "stage", "result"})

func recordStage(operation, stage string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	cascadeStages.With(prometheus.Labels{
		"operation": operation,
		"stage":     stage,
		"result":    result,
	}).Inc()
}
