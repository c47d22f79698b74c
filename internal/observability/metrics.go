package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octotalk_messages_total",
		Help: "Inbound chat activities by transport and type",
	}, []string{"transport", "type"})

	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octotalk_intents_total",
		Help: "Dispatched turns by resolved intent",
	}, []string{"intent"})

	ClassifierErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "octotalk_classifier_errors_total",
		Help: "Classifier calls that failed and fell back to None",
	})

	SlotPromptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octotalk_slot_prompts_total",
		Help: "Slot-filling prompts by outcome",
	}, []string{"flow", "outcome"})

	DeviceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "octotalk_device_requests_total",
		Help: "Printer API calls by command and outcome",
	}, []string{"command", "outcome"})

	DeviceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "octotalk_device_latency_seconds",
		Help:    "Printer API call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})
)
