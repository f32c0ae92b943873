package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionauth_sessions_started_total",
		Help: "Token pairs issued, by how the session started.",
	}, []string{"method"})

	sessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionauth_sessions_ended_total",
		Help: "Refresh tokens revoked by logout.",
	})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionauth_auth_failures_total",
		Help: "Rejected credentials, by operation and reason.",
	}, []string{"operation", "reason"})
)
