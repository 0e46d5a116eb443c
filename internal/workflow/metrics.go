package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queryd_workflow_requests_total",
		Help: "Requests processed, labeled by routing decision.",
	}, []string{"decision"})

	questionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queryd_workflow_questions_total",
		Help: "Questions answered, labeled by outcome.",
	}, []string{"result"})
)
