package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bridgewatch/internal/domain"

	_ "modernc.org/sqlite"
)

// Repository is the single-file snapshot and report store used by the CLI and
// by development deployments.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS claims (
			bridge TEXT NOT NULL,
			claim_num TEXT NOT NULL,
			actual_claim_num INTEGER NOT NULL,
			txid TEXT NOT NULL,
			block_number INTEGER NOT NULL DEFAULT 0,
			payload TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (bridge, claim_num)
		)`,
		`CREATE INDEX IF NOT EXISTS claims_order_idx ON claims (bridge, actual_claim_num)`,
		`CREATE TABLE IF NOT EXISTS transfers (
			bridge TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			event_type TEXT NOT NULL,
			block_number INTEGER NOT NULL,
			payload TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (bridge, tx_hash, event_type)
		)`,
		`CREATE INDEX IF NOT EXISTS transfers_order_idx ON transfers (bridge, block_number)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			bridge TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			fraud_detected INTEGER NOT NULL,
			suspicious INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS reports_bridge_idx ON reports (bridge, created_at)`,
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
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO claims (bridge, claim_num, actual_claim_num, txid, block_number, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bridge, claim_num) DO UPDATE SET
			actual_claim_num = excluded.actual_claim_num,
			txid = excluded.txid,
			block_number = excluded.block_number,
			payload = excluded.payload,
			updated_at = excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, claim := range claims {
		payload, err := json.Marshal(claim)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, bridge, claim.ClaimNum, int64(claim.ActualClaimNum), claim.TxID, int64(claim.BlockNumber), string(payload), now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) UpsertTransfers(ctx context.Context, bridge string, transfers []domain.Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transfers (bridge, tx_hash, event_type, block_number, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bridge, tx_hash, event_type) DO UPDATE SET
			block_number = excluded.block_number,
			payload = excluded.payload,
			updated_at = excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, transfer := range transfers {
		payload, err := json.Marshal(transfer)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, bridge, transfer.Reference(), string(transfer.EventType), int64(transfer.BlockNumber), string(payload), now); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) LoadSnapshot(ctx context.Context, bridge string) ([]domain.Claim, []domain.Transfer, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	claims, err := queryPayloads[domain.Claim](ctx, r.db,
		`SELECT payload FROM claims WHERE bridge = ? ORDER BY actual_claim_num ASC, claim_num ASC`, bridge)
	if err != nil {
		return nil, nil, fmt.Errorf("load claims: %w", err)
	}
	transfers, err := queryPayloads[domain.Transfer](ctx, r.db,
		`SELECT payload FROM transfers WHERE bridge = ? ORDER BY block_number ASC, tx_hash ASC`, bridge)
	if err != nil {
		return nil, nil, fmt.Errorf("load transfers: %w", err)
	}
	return claims, transfers, nil
}

func (r *Repository) SaveReport(ctx context.Context, report domain.Report) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	fraud := 0
	if report.Result.FraudDetected {
		fraud = 1
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO reports (run_id, bridge, created_at, fraud_detected, suspicious, pending, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Bridge, report.CreatedAt.UnixNano(), fraud,
		report.Result.Stats.Suspicious, report.Result.Stats.Pending, string(payload))
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
