package shop

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetProduct(ctx context.Context) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, total_supply, sold_count
		FROM products LIMIT 1`).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.TotalSupply, &p.SoldCount)
	return p, err
}

// Reserve checks availability, inserts a pending order and bumps sold_count in
// one transaction. The product row is locked FOR UPDATE so concurrent buyers
// cannot both pass the supply check.
func (r *Repo) Reserve(ctx context.Context, name, city, orderCode string, ttl time.Duration) (Order, int, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, 0, err
	}
	defer tx.Rollback(ctx)

	var productID string
	var supply, sold int
	if err := tx.QueryRow(ctx, `
		SELECT id, total_supply, sold_count FROM products LIMIT 1 FOR UPDATE`).
		Scan(&productID, &supply, &sold); err != nil {
		return Order{}, 0, err
	}
	if sold >= supply {
		return Order{}, 0, ErrSoldOut
	}

	until := time.Now().UTC().Add(ttl)
	o := Order{
		ID:            uuid.NewString(),
		OrderCode:     orderCode,
		Name:          name,
		City:          city,
		Status:        StatusPending,
		ReservedUntil: &until,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, order_code, name, city, status, reserved_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.OrderCode, o.Name, o.City, o.Status, o.ReservedUntil, o.CreatedAt); err != nil {
		return Order{}, 0, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE products SET sold_count = sold_count + 1 WHERE id=$1`, productID); err != nil {
		return Order{}, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, 0, err
	}
	return o, supply - sold - 1, nil
}

func (r *Repo) AttachSession(ctx context.Context, orderID, sessionID string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE orders SET stripe_session_id=$2 WHERE id=$1`, orderID, sessionID)
	return err
}

func (r *Repo) FindOrder(ctx context.Context, orderID string) (Order, error) {
	var o Order
	var status string
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_code, name, city, status, stripe_session_id,
		       city_lat, city_lon, reserved_until, created_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.OrderCode, &o.Name, &o.City, &status, &o.StripeSessionID,
			&o.CityLat, &o.CityLon, &o.ReservedUntil, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

// MarkPaid flips a pending order to paid and records coordinates. Returns
// false when the order was not pending anymore, which makes duplicate webhook
// deliveries a no-op.
func (r *Repo) MarkPaid(ctx context.Context, orderID string, lat, lon *float64) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status=$2, city_lat=$3, city_lon=$4, reserved_until=NULL
		WHERE id=$1 AND status=$5`,
		orderID, StatusPaid, lat, lon, StatusPending)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) ListOwners(ctx context.Context) ([]Owner, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, city, city_lat, city_lon, created_at
		FROM orders WHERE status=$1 ORDER BY created_at DESC`, StatusPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Owner{}
	for rows.Next() {
		var o Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.City, &o.CityLat, &o.CityLon, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ReclaimExpired marks stale pending orders expired and gives their units back
// to the supply, all in one transaction. Returns the reclaimed order ids.
func (r *Repo) ReclaimExpired(ctx context.Context, now time.Time) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id FROM orders
		WHERE status=$1 AND reserved_until IS NOT NULL AND reserved_until < $2
		FOR UPDATE`, StatusPending, now)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2 WHERE id = ANY($1)`, ids, StatusExpired); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE products SET sold_count = GREATEST(sold_count - $1, 0)`, len(ids)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}
