package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	pushSuccess = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task",
			Subsystem: "registry",
			Name:      "push_success_total",
			Help:      "Total number of image tags pushed successfully.",
		},
		[]string{"image"},
	)

	pushError = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task",
			Subsystem: "registry",
			Name:      "push_error_total",
			Help:      "Total number of failed image pushes.",
		},
		[]string{"image"},
	)

	authError = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "task",
			Subsystem: "registry",
			Name:      "auth_error_total",
			Help:      "Total number of failed registry authentications.",
		},
		[]string{"registry"},
	)
)

func init() {
	registry.MustRegister(pushSuccess, pushError, authError)
}

// RecordPushSuccess increments the push success counter for the given image.
func RecordPushSuccess(image string) {
	if image == "" {
		return
	}
	pushSuccess.WithLabelValues(image).Inc()
}

// RecordPushError increments the push error counter for the given image.
func RecordPushError(image string) {
	if image == "" {
		return
	}
	pushError.WithLabelValues(image).Inc()
}

// RecordAuthError increments the authentication error counter for the given registry host.
func RecordAuthError(registryHost string) {
	if registryHost == "" {
		return
	}
	authError.WithLabelValues(registryHost).Inc()
}

// WriteFile dumps the collected counters to path in the Prometheus text
// exposition format so CI can pick them up as a job artifact.
func WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}

// Reset clears internal metrics state. It is intended for use in tests only.
func Reset() {
	pushSuccess.Reset()
	pushError.Reset()
	authError.Reset()
}

// PushSuccessCounter returns the underlying prometheus counter for push successes.
// It is exposed for tests and advanced integrations that need direct access to the metric.
func PushSuccessCounter() *prometheus.CounterVec {
	return pushSuccess
}

// PushErrorCounter returns the underlying prometheus counter for push errors.
func PushErrorCounter() *prometheus.CounterVec {
	return pushError
}

// AuthErrorCounter returns the underlying prometheus counter for authentication errors.
func AuthErrorCounter() *prometheus.CounterVec {
	return authError
}
