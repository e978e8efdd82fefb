package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "minitweet"

var (
	// RequestDuration observes request latency by method, mux pattern and status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// LoginSuccess counts logins that issued a token.
	LoginSuccess = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_success_total",
		Help:      "Total successful login attempts.",
	})

	// LoginFailure counts rejected logins by reason.
	LoginFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_failure_total",
		Help:      "Total failed login attempts.",
	}, []string{"reason"})

	// SignUps counts created accounts.
	SignUps = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signup_total",
		Help:      "Total accounts created.",
	})

	// TweetsPosted counts stored tweets.
	TweetsPosted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tweets_posted_total",
		Help:      "Total tweets successfully posted.",
	})

	// FollowChanges counts follow and unfollow requests by action.
	FollowChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "follow_changes_total",
		Help:      "Total follow and unfollow operations.",
	}, []string{"action"})

	// ArchiveExports counts finished archive jobs by outcome.
	ArchiveExports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "archive_exports_total",
		Help:      "Timeline archive jobs by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(LoginSuccess)
	prometheus.MustRegister(LoginFailure)
	prometheus.MustRegister(SignUps)
	prometheus.MustRegister(TweetsPosted)
	prometheus.MustRegister(FollowChanges)
	prometheus.MustRegister(ArchiveExports)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler observes request latency labelled by the matched mux pattern.
// Requests that matched no pattern share the "unmatched" route label.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Observe(time.Since(start).Seconds())
	})
}
