package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceguard",
		Name:      "frames_processed_total",
		Help:      "Total number of frames written to the output",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceguard",
		Name:      "faces_detected_total",
		Help:      "Total number of face regions produced by the detector",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceguard",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	AudioStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceguard",
		Name:      "audio_stage_duration_seconds",
		Help:      "Duration of audio pass stages",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"stage"})

	ModelDownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceguard",
		Name:      "model_download_bytes_total",
		Help:      "Total bytes downloaded by the model resolver",
	})
)
