package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ajay73588/autopod/internal/domain"
	"github.com/Ajay73588/autopod/internal/repository"
)

const defaultLogLimit = 200

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ repository.MirrorRepository = (*Repository)(nil)

// ReplaceMirror rewrites both mirror tables inside a single transaction so
// readers never observe a half-replaced snapshot.
func (r *Repository) ReplaceMirror(ctx context.Context, containers []domain.ContainerRecord, logs []domain.LogRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin mirror replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM mirror_logs`); err != nil {
		return fmt.Errorf("clear mirror logs: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM mirror_containers`); err != nil {
		return fmt.Errorf("clear mirror containers: %w", err)
	}

	if len(containers) > 0 {
		const containerInsert = `INSERT INTO mirror_containers (container_name, status, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (container_name) DO UPDATE SET status = EXCLUDED.status, created_at = EXCLUDED.created_at`
		batch := &pgx.Batch{}
		for _, c := range containers {
			batch.Queue(containerInsert, c.ContainerName, c.Status, c.CreatedAt)
		}
		if err := sendBatch(ctx, tx, batch, len(containers)); err != nil {
			return fmt.Errorf("insert mirror containers: %w", err)
		}
	}

	if len(logs) > 0 {
		const logInsert = `INSERT INTO mirror_logs (container_name, log, timestamp) VALUES ($1, $2, $3)`
		batch := &pgx.Batch{}
		for _, l := range logs {
			batch.Queue(logInsert, l.ContainerName, l.Log, l.Timestamp)
		}
		if err := sendBatch(ctx, tx, batch, len(logs)); err != nil {
			return fmt.Errorf("insert mirror logs: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListContainers returns the current container snapshot.
func (r *Repository) ListContainers(ctx context.Context) ([]domain.ContainerRecord, error) {
	const query = `SELECT container_name, status, created_at FROM mirror_containers ORDER BY container_name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	containers := make([]domain.ContainerRecord, 0)
	for rows.Next() {
		var c domain.ContainerRecord
		if err := rows.Scan(&c.ContainerName, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

// ListLogs returns recent mirrored log lines, newest first, optionally
// filtered by container name.
func (r *Repository) ListLogs(ctx context.Context, containerName string, limit int) ([]domain.LogRecord, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	var (
		rows pgx.Rows
		err  error
	)
	if containerName != "" {
		const query = `SELECT container_name, log, timestamp FROM mirror_logs
			WHERE container_name = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`
		rows, err = r.pool.Query(ctx, query, containerName, limit)
	} else {
		const query = `SELECT container_name, log, timestamp FROM mirror_logs
			ORDER BY timestamp DESC, id DESC LIMIT $1`
		rows, err = r.pool.Query(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.LogRecord, 0)
	for rows.Next() {
		var l domain.LogRecord
		if err := rows.Scan(&l.ContainerName, &l.Log, &l.Timestamp); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, n int) error {
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}
