package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wadjakorntonsri/collection-sorter/pkg/ports"
)

// Options configures the Prometheus recorder.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// Recorder holds the sorter collectors and implements ports.Metrics.
type Recorder struct {
	TokenRefreshes *prometheus.CounterVec
	StaleResponses prometheus.Counter
	Saves          *prometheus.CounterVec
	Requests       *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
}

// New builds the collectors and registers them. Collectors that are already registered
// (a second recorder in the same process) are reused.
func New(opts Options) (*Recorder, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "sorter"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	var err error
	r := &Recorder{}

	r.TokenRefreshes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_total",
		Help:      "Access token refreshes partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	r.StaleResponses, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_responses_total",
		Help:      "Page responses discarded because a newer fetch had started.",
	}))
	if err != nil {
		return nil, err
	}

	r.Saves, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "saves_total",
		Help:      "Order saves partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	r.Requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	r.Duration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Histogram of HTTP request latencies in seconds partitioned by method, route, and status code.",
		Buckets:   buckets,
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	return r, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (r *Recorder) TokenRefreshed(outcome string) {
	r.TokenRefreshes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) StaleResponseDropped() {
	r.StaleResponses.Inc()
}

func (r *Recorder) SaveSubmitted(outcome string) {
	r.Saves.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	r.Requests.With(labels).Inc()
	r.Duration.With(labels).Observe(elapsed.Seconds())
}

var _ ports.Metrics = (*Recorder)(nil)
