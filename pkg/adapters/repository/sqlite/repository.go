package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/wadjakorntonsri/collection-sorter/pkg/core/domain"
	"github.com/wadjakorntonsri/collection-sorter/pkg/ports"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	db, err := sql.Open(driverFor(dbURL), dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func driverFor(dbURL string) string {
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		return "libsql"
	}
	return "sqlite"
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS collection_positions (
		collection_id INTEGER NOT NULL,
		product_code TEXT NOT NULL,
		color_code TEXT NOT NULL,
		position INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection_id, product_code, color_code)
	);
	CREATE INDEX IF NOT EXISTS idx_collection_positions_position ON collection_positions(collection_id, position);

	CREATE TABLE IF NOT EXISTS order_saves (
		id TEXT PRIMARY KEY,
		collection_id INTEGER NOT NULL,
		actor TEXT,
		product_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_saves_collection ON order_saves(collection_id, created_at);
	`
	_, err := db.Exec(query)
	return err
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// ApplyPositions upserts every entry and stores the save record in one transaction.
func (r *SQLiteRepository) ApplyPositions(ctx context.Context, collectionID int64, entries []domain.PayloadEntry, record *domain.SaveRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	updatedAt := record.CreatedAt.UTC().Format(timeLayout)

	upsert := `INSERT INTO collection_positions (collection_id, product_code, color_code, position, updated_at)
			   VALUES (?, ?, ?, ?, ?)
			   ON CONFLICT(collection_id, product_code, color_code)
			   DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, upsert, collectionID, e.ProductCode, e.ColorCode, e.Position, updatedAt); err != nil {
			return err
		}
	}

	insertSave := `INSERT INTO order_saves (id, collection_id, actor, product_count, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertSave, record.ID, collectionID, record.Actor, record.ProductCount, updatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteRepository) GetPositions(ctx context.Context, collectionID int64) ([]domain.CollectionPosition, error) {
	query := `SELECT collection_id, product_code, color_code, position, updated_at
			  FROM collection_positions
			  WHERE collection_id = ?
			  ORDER BY position ASC, updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []domain.CollectionPosition{}
	for rows.Next() {
		var p domain.CollectionPosition
		var updatedAt string
		if err := rows.Scan(&p.CollectionID, &p.ProductCode, &p.ColorCode, &p.Position, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (r *SQLiteRepository) ListSaves(ctx context.Context, collectionID int64, limit int) ([]domain.SaveRecord, error) {
	query := `SELECT id, collection_id, actor, product_count, created_at
			  FROM order_saves
			  WHERE collection_id = ?
			  ORDER BY created_at DESC, id DESC
			  LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, collectionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	saves := []domain.SaveRecord{}
	for rows.Next() {
		var s domain.SaveRecord
		var actor sql.NullString
		var createdAt string
		if err := rows.Scan(&s.ID, &s.CollectionID, &actor, &s.ProductCount, &createdAt); err != nil {
			return nil, err
		}
		s.Actor = actor.String
		s.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		saves = append(saves, s)
	}
	return saves, rows.Err()
}

// Ensure interface compliance
var _ ports.OrderRepository = (*SQLiteRepository)(nil)
