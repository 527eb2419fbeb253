package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginMetric = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "planning_logins_total", Help: "Login attempts by outcome"},
		[]string{"outcome"},
	)

	projectsRegisteredMetric = promauto.NewCounter(
		prometheus.CounterOpts{Name: "planning_projects_registered_total", Help: "Help request registrations stored"},
	)

	requestTransitionMetric = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "planning_request_transitions_total", Help: "Request lifecycle events by outcome"},
		[]string{"event", "outcome"},
	)
)

func recordTransition(event string, err error) {
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	requestTransitionMetric.WithLabelValues(event, outcome).Inc()
}
