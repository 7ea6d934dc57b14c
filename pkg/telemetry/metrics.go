// Package telemetry exposes prometheus metrics for the engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TasksCreated counts task submissions accepted by the manager.
var TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "effect",
	Name:      "tasks_created_total",
	Help:      "Total tasks submitted to the manager.",
})

// TasksAssigned counts assign events, including re-assignments after expiry.
var TasksAssigned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "effect",
	Name:      "tasks_assigned_total",
	Help:      "Total task assignments sent to workers.",
})

// TasksCompleted counts tasks that reached the completed state.
var TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "effect",
	Name:      "tasks_completed_total",
	Help:      "Total tasks completed by workers.",
})

// TasksRejected counts tasks that reached the rejected state.
var TasksRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "effect",
	Name:      "tasks_rejected_total",
	Help:      "Total tasks rejected by workers.",
})

// TasksExpired counts assignments rolled back because the time limit passed.
var TasksExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "effect",
	Name:      "tasks_expired_total",
	Help:      "Total task assignments expired and requeued.",
})

// PaymentsMinted counts payments generated by the ledger.
var PaymentsMinted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "effect",
	Name:      "payments_minted_total",
	Help:      "Total payments minted.",
})

// PaymentAmount accumulates the total amount across minted payments.
var PaymentAmount = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "effect",
	Name:      "payment_amount_total",
	Help:      "Total amount across minted payments.",
})

// WorkerQueueDepth tracks the number of workers eligible for assignment.
var WorkerQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "effect",
	Name:      "worker_queue_depth",
	Help:      "Number of workers currently eligible for task assignment.",
})

// MessagesDropped counts inbound envelopes dropped by the router, by reason.
var MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "effect",
	Name:      "messages_dropped_total",
	Help:      "Total inbound messages dropped before reaching a handler.",
}, []string{"reason"})
