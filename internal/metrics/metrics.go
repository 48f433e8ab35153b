package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var gamesPlayedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fc_games_played_total",
	Help: "Number of game rounds settled, by game type and outcome.",
}, []string{"game_type", "outcome"})

var payoutCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fc_payouts_total",
	Help: "Number of payout requests reaching a terminal state, by status.",
}, []string{"status"})

var payoutAmount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fc_payout_amount_total",
	Help: "Total amount paid out, by status.",
}, []string{"status"})

var poolBalanceGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "fc_pool_balance",
	Help: "Current pool balance.",
})

var breakerStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "fc_breaker_open",
	Help: "1 when the named circuit breaker is open.",
}, []string{"name"})

var sessionsSweptCounter = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fc_sessions_swept_total",
	Help: "Number of expired game sessions removed by the sweeper.",
})

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "fc_http_request_duration_seconds",
	Help:    "HTTP request latency by route and status code.",
	Buckets: prometheus.DefBuckets,
}, []string{"route", "code"})

func RecordGamePlayed(gameType string, win bool) {
	outcome := "loss"
	if win {
		outcome = "win"
	}
	gamesPlayedCounter.WithLabelValues(gameType, outcome).Inc()
}

func RecordPayout(status string, amount float64) {
	payoutCounter.WithLabelValues(status).Inc()
	payoutAmount.WithLabelValues(status).Add(amount)
}

func RecordPoolBalance(balance float64) {
	poolBalanceGauge.Set(balance)
}

func RecordBreakerState(name string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	breakerStateGauge.WithLabelValues(name).Set(v)
}

func RecordSessionsSwept(n int) {
	sessionsSweptCounter.Add(float64(n))
}

func ObserveHTTP(route, code string, elapsed time.Duration) {
	httpDuration.WithLabelValues(route, code).Observe(elapsed.Seconds())
}

// StartPromServer serves the prometheus registry on its own listener so the
// scrape endpoint stays up even when the API port is saturated.
func StartPromServer(ctx context.Context, logger *zap.Logger, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: port, Handler: mux}

	go func() {
		logger.Info("prometheus server listening", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("prometheus server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
