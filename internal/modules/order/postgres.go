package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates the Postgres-backed order repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *postgresRepo) BySquareOrderID(ctx context.Context, squareOrderID string) (*Order, error) {
	o := &Order{}
	var method sql.NullString
	var metadata []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, square_order_id, order_number, status, payment_status,
		       fulfillment_method, total, customer_email, metadata, created_at, updated_at
		FROM orders WHERE square_order_id=$1`, squareOrderID).Scan(
		&o.ID, &o.SquareOrderID, &o.OrderNumber, &o.Status, &o.PaymentStatus,
		&method, &o.Total, &o.CustomerEmail, &metadata, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if method.Valid {
		o.FulfillmentMethod = FulfillmentMethod(method.String)
	}
	o.Metadata = metadata
	return o, nil
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	return err
}

func (r *postgresRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	return err
}

func (r *postgresRepo) CateringBySquareOrderID(ctx context.Context, squareOrderID string) (*CateringOrder, error) {
	o := &CateringOrder{}
	var eventDate sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, square_order_id, status, payment_status, total, event_date, created_at, updated_at
		FROM catering_orders WHERE square_order_id=$1`, squareOrderID).Scan(
		&o.ID, &o.SquareOrderID, &o.Status, &o.PaymentStatus, &o.Total,
		&eventDate, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if eventDate.Valid {
		o.EventDate = &eventDate.Time
	}
	return o, nil
}

func (r *postgresRepo) UpdateCateringPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE catering_orders SET payment_status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	return err
}
