package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/reconcile"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// ErrNoSnapshot is returned when a bridge has neither claims nor transfers stored.
var ErrNoSnapshot = errors.New("no snapshot stored for bridge")

type SnapshotRepository interface {
	UpsertClaims(ctx context.Context, bridge string, claims []domain.Claim) error
	UpsertTransfers(ctx context.Context, bridge string, transfers []domain.Transfer) error
	// LoadSnapshot returns claims ordered by actual claim number and transfers
	// ordered by block number then hash. Match precedence depends on it.
	LoadSnapshot(ctx context.Context, bridge string) ([]domain.Claim, []domain.Transfer, error)
}

type ReportRepository interface {
	SaveReport(ctx context.Context, report domain.Report) error
	LatestReport(ctx context.Context, bridge string) (domain.Report, bool, error)
}

type Repository interface {
	SnapshotRepository
	ReportRepository
	Ping(ctx context.Context) error
	Close() error
}

type AlertPublisher interface {
	PublishAlert(ctx context.Context, report domain.Report) error
}

type WatcherObserver interface {
	OnReconcile(bridge string, result domain.AggregateResult, elapsed time.Duration)
	OnReconcileError(bridge string)
}

type WatcherConfig struct {
	Bridges     []string
	Interval    time.Duration
	Parallelism int
	Options     reconcile.Options
}

// Watcher periodically reconciles every configured bridge from the snapshot
// store, keeps the latest report and raises an alert when fraud shows up.
type Watcher struct {
	repo     Repository
	reports  *ReportService
	alerts   AlertPublisher
	observer WatcherObserver
	engine   *reconcile.Engine
	logger   *slog.Logger
	cfg      WatcherConfig
	now      func() time.Time
}

func NewWatcher(repo Repository, reports *ReportService, alerts AlertPublisher, observer WatcherObserver, logger *slog.Logger, cfg WatcherConfig) (*Watcher, error) {
	if repo == nil || reports == nil {
		return nil, errors.New("watcher dependencies must not be nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		repo:     repo,
		reports:  reports,
		alerts:   alerts,
		observer: observer,
		engine:   reconcile.NewEngine(cfg.Options, logger.With("component", "reconcile")),
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Run reconciles all bridges every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.cfg.Bridges) == 0 {
		w.logger.Warn("watcher has no bridges configured")
	}
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := w.RunAll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("reconcile round failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunAll reconciles each bridge once. Bridges are independent and run in
// parallel; a failing bridge does not stop the others.
func (w *Watcher) RunAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Parallelism)
	errs := make([]error, len(w.cfg.Bridges))
	for i, bridge := range w.cfg.Bridges {
		g.Go(func() error {
			_, err := w.RunOnce(gctx, bridge)
			if errors.Is(err, ErrNoSnapshot) {
				w.logger.Debug("skip bridge without snapshot", "bridge", bridge)
				return nil
			}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// RunOnce reconciles one bridge and stores the resulting report.
func (w *Watcher) RunOnce(ctx context.Context, bridge string) (domain.Report, error) {
	ctx, span := otel.Tracer("bridgewatch/application").Start(ctx, "watcher.reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("bridge.address", bridge))
	start := time.Now()

	fail := func(err error) (domain.Report, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if w.observer != nil {
			w.observer.OnReconcileError(bridge)
		}
		return domain.Report{}, err
	}

	claims, transfers, err := w.repo.LoadSnapshot(ctx, bridge)
	if err != nil {
		return fail(fmt.Errorf("load snapshot %s: %w", bridge, err))
	}
	if len(claims) == 0 && len(transfers) == 0 {
		return domain.Report{}, fmt.Errorf("%s: %w", bridge, ErrNoSnapshot)
	}

	result, _ := w.engine.Run(claims, transfers)
	report := domain.Report{
		RunID:     uuid.NewString(),
		Bridge:    bridge,
		CreatedAt: w.now().UTC(),
		Result:    result,
	}
	span.SetAttributes(
		attribute.String("reconcile.run_id", report.RunID),
		attribute.Int("reconcile.suspicious", result.Stats.Suspicious),
		attribute.Int("reconcile.pending", result.Stats.Pending),
		attribute.Bool("reconcile.fraud_detected", result.FraudDetected),
	)

	if err := w.reports.Save(ctx, report); err != nil {
		return fail(fmt.Errorf("save report %s: %w", bridge, err))
	}
	if result.FraudDetected {
		w.logger.Warn("fraud detected",
			"bridge", bridge,
			"run_id", report.RunID,
			"suspicious", result.Stats.Suspicious,
		)
		if w.alerts != nil {
			if err := w.alerts.PublishAlert(ctx, report); err != nil {
				return fail(fmt.Errorf("publish alert %s: %w", bridge, err))
			}
		}
	}
	if w.observer != nil {
		w.observer.OnReconcile(bridge, result, time.Since(start))
	}
	return report, nil
}
