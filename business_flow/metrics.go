package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_generated_total",
			Help: "Documents produced by the generation pipeline",
		},
		[]string{"type", "status"},
	)
	documentStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "document_generation_duration_seconds",
			Help:    "Duration of each document generation stage",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"type", "stage"},
	)
)
