package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bridgewatch/internal/application"
	"bridgewatch/internal/domain"
	"bridgewatch/internal/ingest"
	"bridgewatch/internal/normalize"
	"bridgewatch/internal/reconcile"
	"bridgewatch/internal/stake"

	"golang.org/x/time/rate"
)

const maxSnapshotBytes = 8 << 20

type Pinger interface {
	Ping(ctx context.Context) error
}

type ReportReader interface {
	Latest(ctx context.Context, bridge string) (domain.Report, bool, error)
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type ServerConfig struct {
	Options    reconcile.Options
	Calculator stake.Calculator
	// RateLimit is the sustained POST /reconcile rate per second. Zero disables the limit.
	RateLimit float64
	Burst     int
}

type Server struct {
	store     Pinger
	reports   ReportReader
	engine    *reconcile.Engine
	calc      stake.Calculator
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    *slog.Logger
	buildInfo BuildInfo
}

func NewServer(store Pinger, reports ReportReader, metrics *Metrics, logger *slog.Logger, cfg ServerConfig, buildInfo BuildInfo) (*Server, error) {
	if store == nil || reports == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Server{
		store:     store,
		reports:   reports,
		engine:    reconcile.NewEngine(cfg.Options, logger),
		calc:      cfg.Calculator,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
		buildInfo: buildInfo,
	}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/reconcile", s.handleReconcile)
	mux.HandleFunc("/reports/latest", s.handleLatestReport)
	mux.HandleFunc("/stake/quote", s.handleStakeQuote)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type reconcileResponse struct {
	Bridge string `json:"bridge,omitempty"`
	domain.AggregateResult
	ConversionErrors []conversionError `json:"conversion_errors,omitempty"`
}

type conversionError struct {
	Record string `json:"record"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Error  string `json:"error"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.limiter.Allow() {
		s.metrics.incHTTPReconcile(true)
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	s.metrics.incHTTPReconcile(false)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSnapshotBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "snapshot too large")
		return
	}
	snapshot, err := ingest.ParseSnapshot(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	decoded := ingest.DecodeSnapshot(snapshot)
	result, _ := s.engine.Run(decoded.Claims, decoded.Transfers)

	response := reconcileResponse{Bridge: decoded.Bridge, AggregateResult: result}
	for _, convErr := range decoded.Errors {
		response.ConversionErrors = append(response.ConversionErrors, conversionError{
			Record: convErr.Record,
			Field:  convErr.Field,
			Value:  convErr.Value,
			Error:  convErr.Error(),
		})
	}
	if result.FraudDetected {
		s.logger.Warn("fraud detected in submitted snapshot",
			"bridge", decoded.Bridge,
			"suspicious", result.Stats.Suspicious,
		)
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	bridge := strings.TrimSpace(r.URL.Query().Get("bridge"))
	if bridge == "" {
		respondError(w, http.StatusBadRequest, "bridge is required")
		return
	}
	report, ok, err := s.reports.Latest(r.Context(), bridge)
	if err != nil {
		s.logger.Error("latest report lookup failed", "bridge", bridge, "err", err)
		respondError(w, http.StatusInternalServerError, "report lookup failed")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "no report for bridge")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStakeQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	leading, err := normalize.ParseAmount(query.Get("stake"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid stake")
		return
	}
	decimals, err := parseDecimals(query.Get("decimals"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	multiplier, err := stake.ParseMultiplier(query.Get("multiplier"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := s.calc.Quote(leading, decimals, multiplier)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"stake":          leading.String(),
		"required_stake": quote.Required.String(),
		"display":        quote.Display,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	snap := s.metrics.Snapshot()

	fmt.Fprintf(w, "bridgewatch_uptime_seconds %.0f\n", time.Since(snap.StartTime).Seconds())
	for _, b := range snap.Bridges {
		label := fmt.Sprintf("{bridge=%q}", b.Bridge)
		fmt.Fprintf(w, "bridgewatch_reconcile_runs_total%s %d\n", label, b.Runs)
		fmt.Fprintf(w, "bridgewatch_reconcile_errors_total%s %d\n", label, b.Errors)
		fmt.Fprintf(w, "bridgewatch_reconcile_duration_seconds%s %.3f\n", label, b.LastElapsed.Seconds())
		fmt.Fprintf(w, "bridgewatch_last_run_timestamp%s %d\n", label, unixOrZero(b.LastRun))
		fmt.Fprintf(w, "bridgewatch_completed%s %d\n", label, b.Completed)
		fmt.Fprintf(w, "bridgewatch_suspicious%s %d\n", label, b.Suspicious)
		fmt.Fprintf(w, "bridgewatch_pending%s %d\n", label, b.Pending)
		fmt.Fprintf(w, "bridgewatch_fraud_detected%s %d\n", label, boolGauge(b.Fraud))
	}
	fmt.Fprintf(w, "bridgewatch_kafka_messages_total %d\n", snap.KafkaMessages)
	for topic, count := range snap.KafkaTopicCount {
		fmt.Fprintf(w, "bridgewatch_kafka_topic_messages_total{topic=%q} %d\n", topic, count)
	}
	fmt.Fprintf(w, "bridgewatch_kafka_decode_errors_total %d\n", snap.KafkaDecodeErrs)
	fmt.Fprintf(w, "bridgewatch_kafka_apply_errors_total %d\n", snap.KafkaApplyErrs)
	fmt.Fprintf(w, "bridgewatch_kafka_commit_errors_total %d\n", snap.KafkaCommitErrs)
	fmt.Fprintf(w, "bridgewatch_kafka_fetch_errors_total %d\n", snap.KafkaFetchErrs)
	fmt.Fprintf(w, "bridgewatch_kafka_last_lag_seconds %.3f\n", snap.KafkaLastLag.Seconds())
	fmt.Fprintf(w, "bridgewatch_kafka_max_lag_seconds %.3f\n", snap.KafkaMaxLag.Seconds())
	fmt.Fprintf(w, "bridgewatch_http_reconcile_total %d\n", snap.HTTPReconciles)
	fmt.Fprintf(w, "bridgewatch_http_reconcile_throttled_total %d\n", snap.HTTPThrottled)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func parseDecimals(raw string) (uint8, error) {
	if raw == "" {
		return 0, errors.New("decimals is required")
	}
	value, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, errors.New("invalid decimals")
	}
	return uint8(value), nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func boolGauge(v bool) int {
	if v {
		return 1
	}
	return 0
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

var _ application.WatcherObserver = (*Metrics)(nil)
