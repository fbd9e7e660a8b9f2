package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/DIEGOMDK12/netexv1-sub001/internal/domain/order"
)

// PostgresStore persists orders, stock blobs and the processed-event
// ledger in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables the engine needs if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			buyer_email TEXT NOT NULL,
			buyer_contact TEXT NOT NULL DEFAULT '',
			total_cents BIGINT NOT NULL,
			status TEXT NOT NULL,
			gateway TEXT NOT NULL DEFAULT '',
			external_ref TEXT NOT NULL DEFAULT '',
			fulfillment_error TEXT NOT NULL DEFAULT '',
			flagged BOOLEAN NOT NULL DEFAULT FALSE,
			viewed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			paid_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id),
			product_id TEXT NOT NULL,
			variant_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			quantity INT NOT NULL,
			price_cents BIGINT NOT NULL,
			allocated_secret TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS payment_events (
			gateway TEXT NOT NULL,
			external_id TEXT NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (gateway, external_id)
		)`,
		`CREATE TABLE IF NOT EXISTS stock (
			key TEXT PRIMARY KEY,
			content TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_external_ref ON orders(gateway, external_ref)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o *order.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, buyer_email, buyer_contact, total_cents, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.BuyerEmail, o.BuyerContact, o.TotalCents, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, variant_id, name, quantity, price_cents)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, o.ID, it.ProductID, it.VariantID, it.Name, it.Quantity, it.PriceCents,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	var o order.Order
	var paidAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, buyer_email, buyer_contact, total_cents, status, gateway, external_ref,
		        fulfillment_error, flagged, viewed, created_at, updated_at, paid_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.BuyerEmail, &o.BuyerContact, &o.TotalCents, &o.Status, &o.Gateway,
		&o.ExternalRef, &o.FulfillmentError, &o.Flagged, &o.Viewed, &o.CreatedAt, &o.UpdatedAt, &paidAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, variant_id, name, quantity, price_cents, allocated_secret
		 FROM order_items WHERE order_id = $1 ORDER BY id`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it order.OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.Name, &it.Quantity, &it.PriceCents, &it.AllocatedSecret); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (s *PostgresStore) AttachCharge(ctx context.Context, orderID, gateway, externalRef string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET gateway = $2, external_ref = $3, updated_at = NOW()
		 WHERE id = $1 AND external_ref = ''`,
		orderID, gateway, externalRef,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: external reference already attached", orderID)
	}
	return nil
}

// MarkPaid consumes the (gateway, externalID) ledger slot and flips
// the order to paid in the same transaction. A failure on either side
// rolls back both, so a retried event still finds its slot free.
func (s *PostgresStore) MarkPaid(ctx context.Context, orderID, gateway, externalID string, paidAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO payment_events (gateway, external_id, processed_at)
		 VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`,
		gateway, externalID,
	)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n == 0 {
		return false, nil
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, paid_at = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $4`,
		orderID, order.StatusPaid, paidAt, order.StatusPending,
	)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n == 0 {
		return false, nil
	}
	return true, tx.Commit()
}

func (s *PostgresStore) MarkFulfilled(ctx context.Context, orderID string, items []order.OrderItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, it := range items {
		if it.AllocatedSecret == "" {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE order_items SET allocated_secret = $3
			 WHERE id = $1 AND order_id = $2 AND allocated_secret = ''`,
			it.ID, orderID, it.AllocatedSecret,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("item %s: %w", it.ID, order.ErrSecretAlreadySet)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		orderID, order.StatusFulfilled, order.StatusPaid,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderID, order.ErrOrderNotPaid)
	}
	return tx.Commit()
}

func (s *PostgresStore) MarkCancelled(ctx context.Context, orderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		orderID, order.StatusCancelled, order.StatusPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PostgresStore) RecordFulfillmentError(ctx context.Context, orderID, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET fulfillment_error = $2, updated_at = NOW() WHERE id = $1`,
		orderID, message,
	)
	return err
}

func (s *PostgresStore) FlagOrder(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET flagged = TRUE, updated_at = NOW() WHERE id = $1`, orderID)
	return err
}

func (s *PostgresStore) MarkViewed(ctx context.Context, orderID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET viewed = TRUE, updated_at = NOW() WHERE id = $1`, orderID)
	return err
}

func (s *PostgresStore) GetStock(ctx context.Context, key string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM stock WHERE key = $1`, key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return content, err
}

func (s *PostgresStore) SetStock(ctx context.Context, key, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock (key, content, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET content = $2, updated_at = NOW()`,
		key, text,
	)
	return err
}
