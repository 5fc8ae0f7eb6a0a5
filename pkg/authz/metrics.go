package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "taskboard",
	Subsystem: "authz",
	Name:      "decisions_total",
	Help:      "Capability table decisions broken down by action and result.",
}, []string{"action", "result"})

func recordDecision(action Action, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	decisions.With(prometheus.Labels{
		"action": string(action),
		"result": result,
	}).Inc()
}
