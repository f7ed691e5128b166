package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"signalbot/internal/models"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracked_orders (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket        TEXT NOT NULL,
	status        TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	direction     TEXT NOT NULL,
	kind          TEXT NOT NULL,
	entry_price   TEXT NOT NULL,
	stop_loss     TEXT NOT NULL,
	take_profit   TEXT NOT NULL,
	volume        TEXT NOT NULL,
	signal_id     TEXT NOT NULL,
	registered_at TIMESTAMP NOT NULL,
	closed_at     TIMESTAMP NOT NULL,
	payload       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tracked_orders_ticket ON tracked_orders(ticket);
`

// SQLiteRecorder archives orders into a local SQLite file. Prices are stored as decimal strings.
type SQLiteRecorder struct {
	db *sql.DB
}

func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("Не удалось создать каталог архива: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("Не удалось открыть базу архива: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("Не удалось создать схему архива: %w", err)
	}
	return &SQLiteRecorder{db: db}, nil
}

func (r *SQLiteRecorder) Record(order models.TrackedOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("Не удалось сериализовать ордер: %w", err)
	}

	_, err = r.db.Exec(`INSERT INTO tracked_orders
		(ticket, status, symbol, direction, kind, entry_price, stop_loss, take_profit, volume, signal_id, registered_at, closed_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(order.Ticket),
		string(order.Status),
		order.Resolved.Symbol,
		string(order.Resolved.Direction),
		string(order.Resolved.Kind),
		order.Resolved.EntryPrice.String(),
		order.StopLoss.String(),
		order.Resolved.TakeProfit.String(),
		order.Resolved.Volume.String(),
		order.Signal.ID,
		order.RegisteredAt.UTC(),
		order.UpdatedAt.UTC(),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("Не удалось записать ордер %s в архив: %w", order.Ticket, err)
	}
	return nil
}

func (r *SQLiteRecorder) Recent(limit int) ([]models.TrackedOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`SELECT payload FROM tracked_orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("Не удалось прочитать архив: %w", err)
	}
	defer rows.Close()

	var orders []models.TrackedOrder
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var order models.TrackedOrder
		if err := json.Unmarshal([]byte(payload), &order); err != nil {
			return nil, fmt.Errorf("Повреждённая запись архива: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
