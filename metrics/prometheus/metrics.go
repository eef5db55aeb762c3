// Package prometheus provides Prometheus metrics for live sessions.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geminilive"

var (
	// connectionsActive is a gauge of connections whose handshake is complete.
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections with a completed handshake",
		},
	)

	// handshakesTotal is a counter of handshake transitions.
	handshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Total number of handshake state changes",
		},
		[]string{"state"}, // state: complete, lost
	)

	// eventsTotal is a counter of events by type.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of live events by type",
		},
		[]string{"type"},
	)

	// audioBytesReceived is a counter of decoded PCM bytes received from the model.
	audioBytesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_received_bytes_total",
			Help:      "Total PCM bytes of model audio received",
		},
	)

	// generationAudioSeconds is a histogram of audio length per generation.
	generationAudioSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_audio_seconds",
			Help:      "Length of model audio per generation in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"persisted"}, // persisted: true, false
	)

	// toolCallsTotal is a counter of tool calls.
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "status"}, // status: success, error, unhandled
	)

	// tokensTotal is a counter of tokens reported by usage metadata.
	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Total tokens reported by the server",
		},
		[]string{"type"}, // type: prompt, response
	)

	// transportErrorsTotal is a counter of unexpected connection losses.
	transportErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Total number of unexpected transport failures",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		connectionsActive,
		handshakesTotal,
		eventsTotal,
		audioBytesReceived,
		generationAudioSeconds,
		toolCallsTotal,
		tokensTotal,
		transportErrorsTotal,
	}
)

// RecordHandshake records a handshake transition.
func RecordHandshake(complete bool) {
	if complete {
		connectionsActive.Inc()
		handshakesTotal.WithLabelValues("complete").Inc()
		return
	}
	connectionsActive.Dec()
	handshakesTotal.WithLabelValues("lost").Inc()
}

// RecordEvent counts one event of the given type.
func RecordEvent(eventType string) {
	eventsTotal.WithLabelValues(eventType).Inc()
}

// RecordAudioReceived records received PCM bytes.
func RecordAudioReceived(n int) {
	if n > 0 {
		audioBytesReceived.Add(float64(n))
	}
}

// RecordGeneration records the audio length of a completed generation.
func RecordGeneration(audioSeconds float64, persisted bool) {
	label := "false"
	if persisted {
		label = "true"
	}
	generationAudioSeconds.WithLabelValues(label).Observe(audioSeconds)
}

// RecordToolCall records a tool call.
func RecordToolCall(toolName, status string) {
	toolCallsTotal.WithLabelValues(toolName, status).Inc()
}

// RecordTokens records token usage.
func RecordTokens(promptTokens, responseTokens int) {
	if promptTokens > 0 {
		tokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if responseTokens > 0 {
		tokensTotal.WithLabelValues("response").Add(float64(responseTokens))
	}
}

// RecordTransportError records an unexpected transport failure.
func RecordTransportError() {
	transportErrorsTotal.Inc()
}
