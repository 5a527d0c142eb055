package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/psantana5/kdfcal/internal/calibrate"
	"github.com/psantana5/kdfcal/internal/report"
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"github.com/psantana5/kdfcal/pkg/logging"
	"github.com/psantana5/kdfcal/pkg/metrics"
	"github.com/psantana5/kdfcal/pkg/ratelimit"
	"github.com/psantana5/kdfcal/pkg/shutdown"
	"github.com/psantana5/kdfcal/pkg/tracing"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const maxPrecision = 1_000_000

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve estimations and metrics over HTTP",
	Long: `Starts an HTTP server exposing:

  GET  /metrics      Prometheus metrics
  GET  /healthz      liveness and the last successful run
  GET  /v1/clock     the clock in use
  GET  /v1/history   recent runs, newest first (?limit=N)
  POST /v1/estimate  run one estimation (?precision=K)

Estimations run one at a time and are rate limited per client address.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("listen", ":9464", "address to listen on")
	f.Float64("rate", 6, "estimations per minute allowed per client")
	f.Int("burst", 2, "estimations a client may make back to back")
	f.Int("history", 50, "runs kept for /v1/history")
	f.Bool("log-file", false, "also write logs to <log-dir>/serve.log")
	f.String("log-dir", "", "log directory (default $HOME/.kdfcal/logs)")

	bindFlags(f, "serve.", "listen", "rate", "burst", "history", "log-file", "log-dir")
}

type server struct {
	runner  *calibrate.Runner
	metrics *metrics.Collector
	history *report.History
	logger  *logging.Logger

	mu sync.Mutex // one estimation at a time
}

func newRouter(s *server, limiter *ratelimit.Limiter, provider *tracing.Provider) *mux.Router {
	r := mux.NewRouter()
	r.Use(tracing.HTTPMiddleware(provider, routeTemplate))

	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/clock", s.handleClock).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.Handle("/estimate",
		limiter.Middleware(ratelimit.RemoteHost)(http.HandlerFunc(s.handleEstimate)),
	).Methods(http.MethodPost)

	return r
}

// routeTemplate names spans by mux path template so /v1/history?limit=5
// and /v1/history share one span name.
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tmpl
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	var fileLogger *logging.Logger
	if viper.GetBool("serve.log_file") {
		var err error
		fileLogger, err = logging.NewFileLogger(
			viper.GetString("serve.log_dir"),
			"serve",
			logging.ParseLevel(viper.GetString("log_level")),
			viper.GetBool("log_json"),
		)
		if err != nil {
			return err
		}
		logger = fileLogger
	}

	// steps run newest first, so the log file registered here closes last
	mgr := shutdown.New(15*time.Second, logger)
	defer mgr.Shutdown()
	if fileLogger != nil {
		mgr.Register("log file", shutdown.CloseResource(fileLogger))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	provider, err := startTracing(ctx, logger)
	if err != nil {
		return err
	}
	mgr.Register("tracing", provider.Shutdown)

	runner, err := calibrate.NewRunner(calibrationConfig(), logger)
	if err != nil {
		return err
	}
	collector := metrics.NewCollector(runner.Name)
	collector.SetClock(runner.ClockInfo)
	runner.Metrics = collector
	runner.Tracer = provider

	s := &server{
		runner:  runner,
		metrics: collector,
		history: report.NewHistory(viper.GetInt("serve.history")),
		logger:  logger.WithField("component", "server"),
	}
	limiter := ratelimit.NewLimiter(viper.GetFloat64("serve.rate"), viper.GetInt("serve.burst"))

	httpServer := &http.Server{
		Addr:              viper.GetString("serve.listen"),
		Handler:           newRouter(s, limiter, provider),
		ReadHeaderTimeout: 5 * time.Second,
	}

	mgr.Register("http", shutdown.StopHTTPServer(httpServer))

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-mgr.Done():
				return
			case <-ticker.C:
				if n := limiter.Cleanup(10 * time.Minute); n > 0 {
					logger.Debug("dropped idle rate limit entries", logging.Fields{"count": n})
				}
			}
		}
	}()

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.Fields{"addr": httpServer.Addr, "clock": runner.ClockInfo.Source})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
			cancel()
		}
	}()

	err = mgr.Wait(ctx)
	select {
	case lerr := <-listenErr:
		return errors.Join(fmt.Errorf("server failed: %w", lerr), err)
	default:
		return err
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status": "ok",
		"clock":  s.runner.ClockInfo.Source,
	}
	if last := s.history.Latest(); last != nil {
		body["last_success"] = last.StartedAt
		body["ops_per_second"] = last.Measurement.OpsPerSecond
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *server) handleClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.ClockInfo)
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.history.Recent(limit))
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	run := *s.runner
	if v := r.URL.Query().Get("precision"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 1 || k > maxPrecision {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("precision must be between 1 and %d", maxPrecision))
			return
		}
		run.Config.Precision = k
	}

	s.mu.Lock()
	res, err := run.Run(r.Context())
	s.mu.Unlock()

	s.history.Record(res)
	res.LogSummary(s.logger)

	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// client went away; the status is for the access log only
		status = 499
	case errors.Is(err, cpuperf.ErrClockUnavailable), cpuperf.IsTransient(err):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
