package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bridgewatch/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS claims (
			bridge VARCHAR(128) NOT NULL,
			claim_num VARCHAR(78) NOT NULL,
			actual_claim_num BIGINT UNSIGNED NOT NULL,
			txid VARCHAR(130) NOT NULL,
			block_number BIGINT UNSIGNED NOT NULL DEFAULT 0,
			payload MEDIUMTEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (bridge, claim_num),
			KEY claims_order_idx (bridge, actual_claim_num)
		)`,
		`CREATE TABLE IF NOT EXISTS transfers (
			bridge VARCHAR(128) NOT NULL,
			tx_hash VARCHAR(130) NOT NULL,
			event_type VARCHAR(32) NOT NULL,
			block_number BIGINT UNSIGNED NOT NULL,
			payload MEDIUMTEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (bridge, tx_hash, event_type),
			KEY transfers_order_idx (bridge, block_number)
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			run_id CHAR(36) NOT NULL,
			bridge VARCHAR(128) NOT NULL,
			created_at BIGINT NOT NULL,
			fraud_detected TINYINT(1) NOT NULL,
			suspicious INT UNSIGNED NOT NULL,
			pending INT UNSIGNED NOT NULL,
			payload LONGTEXT NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY reports_run_idx (run_id),
			KEY reports_bridge_idx (bridge, created_at)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) UpsertClaims(ctx context.Context, bridge string, claims []domain.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "mysql.UpsertClaims",
		attribute.String("bridge.address", bridge),
		attribute.Int("claim.count", len(claims)),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := r.inTx(ctx, `INSERT INTO claims (bridge, claim_num, actual_claim_num, txid, block_number, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			actual_claim_num = VALUES(actual_claim_num),
			txid = VALUES(txid),
			block_number = VALUES(block_number),
			payload = VALUES(payload),
			updated_at = VALUES(updated_at)`,
		func(stmt *sql.Stmt) error {
			now := time.Now().UnixNano()
			for _, claim := range claims {
				payload, err := json.Marshal(claim)
				if err != nil {
					return err
				}
				if _, err := stmt.ExecContext(ctx, bridge, claim.ClaimNum, claim.ActualClaimNum, claim.TxID, claim.BlockNumber, string(payload), now); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) UpsertTransfers(ctx context.Context, bridge string, transfers []domain.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "mysql.UpsertTransfers",
		attribute.String("bridge.address", bridge),
		attribute.Int("transfer.count", len(transfers)),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := r.inTx(ctx, `INSERT INTO transfers (bridge, tx_hash, event_type, block_number, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			block_number = VALUES(block_number),
			payload = VALUES(payload),
			updated_at = VALUES(updated_at)`,
		func(stmt *sql.Stmt) error {
			now := time.Now().UnixNano()
			for _, transfer := range transfers {
				payload, err := json.Marshal(transfer)
				if err != nil {
					return err
				}
				if _, err := stmt.ExecContext(ctx, bridge, transfer.Reference(), string(transfer.EventType), transfer.BlockNumber, string(payload), now); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) LoadSnapshot(ctx context.Context, bridge string) ([]domain.Claim, []domain.Transfer, error) {
	ctx, span := startDBSpan(ctx, "mysql.LoadSnapshot", attribute.String("bridge.address", bridge))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	claims, err := queryPayloads[domain.Claim](ctx, r.db,
		`SELECT payload FROM claims WHERE bridge = ? ORDER BY actual_claim_num ASC, claim_num ASC`, bridge)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("load claims: %w", err)
	}
	transfers, err := queryPayloads[domain.Transfer](ctx, r.db,
		`SELECT payload FROM transfers WHERE bridge = ? ORDER BY block_number ASC, tx_hash ASC`, bridge)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("load transfers: %w", err)
	}
	span.SetAttributes(attribute.Int("claim.count", len(claims)), attribute.Int("transfer.count", len(transfers)))
	return claims, transfers, nil
}

func (r *Repository) SaveReport(ctx context.Context, report domain.Report) error {
	ctx, span := startDBSpan(ctx, "mysql.SaveReport",
		attribute.String("bridge.address", report.Bridge),
		attribute.String("reconcile.run_id", report.RunID),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO reports (run_id, bridge, created_at, fraud_detected, suspicious, pending, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Bridge, report.CreatedAt.UnixNano(), report.Result.FraudDetected,
		report.Result.Stats.Suspicious, report.Result.Stats.Pending, string(payload))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *Repository) LatestReport(ctx context.Context, bridge string) (domain.Report, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM reports WHERE bridge = ? ORDER BY created_at DESC, id DESC LIMIT 1`, bridge).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Report{}, false, nil
		}
		return domain.Report{}, false, err
	}
	var report domain.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return domain.Report{}, false, fmt.Errorf("decode report: %w", err)
	}
	return report, true, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) inTx(ctx context.Context, query string, fn func(stmt *sql.Stmt) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	if err := fn(stmt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func queryPayloads[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("bridgewatch/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
