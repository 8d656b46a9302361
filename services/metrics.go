package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	articlesGeneratedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_generated_total",
			Help: "Total number of articles generated and persisted.",
		},
	)
	stageFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "article_generation_stage_failures_total",
			Help: "Failures per generation stage, fatal or degraded.",
		},
		[]string{"stage"},
	)
	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "article_generation_duration_seconds",
			Help:    "Wall time of the generation pipeline.",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120, 180, 300},
		},
		[]string{"outcome"},
	)
	mediaURLsRefreshedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "media_urls_refreshed_total",
			Help: "Total number of articles whose signed media URLs were re-issued.",
		},
	)
)

func init() {
	prometheus.MustRegister(articlesGeneratedCounter, stageFailuresCounter, generationDuration, mediaURLsRefreshedCounter)
}
