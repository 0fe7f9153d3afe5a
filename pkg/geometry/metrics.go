package geometry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// buildsTotal counts geometry builds.
	// Labels: result (success, error)
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calzone",
		Subsystem: "geometry",
		Name:      "builds_total",
		Help:      "Total geometry builds by result",
	}, []string{"result"})

	// liveGeometries tracks geometries with at least one reference.
	liveGeometries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "calzone",
		Subsystem: "geometry",
		Name:      "live",
		Help:      "Number of geometries not yet released",
	})

	// buildSeconds measures the duration of successful and failed builds.
	buildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "calzone",
		Subsystem: "geometry",
		Name:      "build_seconds",
		Help:      "Geometry build duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	// meshTriangles counts the facets loaded into shared meshes.
	meshTriangles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "calzone",
		Subsystem: "mesh",
		Name:      "triangles_total",
		Help:      "Total triangles loaded into shared meshes",
	})
)
