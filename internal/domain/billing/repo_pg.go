package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacigest/pacigest/internal/domain/account"
	"github.com/pacigest/pacigest/internal/platform/apperr"
	"github.com/pacigest/pacigest/internal/platform/db"
)

type paymentRepoPG struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepoPG{pool: pool}
}

func (r *paymentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const paymentCols = `id, doctor_id, provider, provider_ref, amount_cents, currency, plan, period_months,
	status, paid_at, failure_reason, created_at, updated_at`

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO payments (id, doctor_id, provider, provider_ref, amount_cents, currency, plan, period_months, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorID, p.Provider, p.ProviderRef, p.AmountCents, p.Currency, p.Plan, p.PeriodMonths, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("payment create: %w", db.MapError(err, "payment"))
	}
	return nil
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, db.MapError(err, "payment")
	}
	return p, nil
}

func (r *paymentRepoPG) Transition(ctx context.Context, id uuid.UUID, from Status, c StatusChange) (*Payment, error) {
	p, err := scanPayment(r.conn(ctx).QueryRow(ctx, `
		UPDATE payments SET
			status = $3,
			paid_at = CASE WHEN $3 = 'completed' THEN $4 ELSE paid_at END,
			failure_reason = CASE WHEN $3 = 'failed' THEN $5 ELSE failure_reason END,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+paymentCols,
		id, string(from), string(c.To), c.At, c.Reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.InvalidState(fmt.Sprintf("only %s payments can become %s", from, c.To))
	}
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", c.To, err)
	}
	return p, nil
}

func (r *paymentRepoPG) List(ctx context.Context, doctorID uuid.UUID, f ListFilter, limit, offset int) ([]*Payment, int, error) {
	where := []string{"doctor_id = $1"}
	args := []interface{}{doctorID}
	idx := 2

	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, string(f.Status))
		idx++
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM payments WHERE "+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("payment count: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM payments WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		paymentCols, clause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("payment list: %w", err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.DoctorID, &p.Provider, &p.ProviderRef, &p.AmountCents, &p.Currency, &p.Plan, &p.PeriodMonths,
		&p.Status, &p.PaidAt, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Subscription state on the users table --

type subscriptionStorePG struct {
	pool *pgxpool.Pool
}

func NewSubscriptionStore(pool *pgxpool.Pool) SubscriptionStore {
	return &subscriptionStorePG{pool: pool}
}

func (s *subscriptionStorePG) Get(ctx context.Context, doctorID uuid.UUID) (*Subscription, error) {
	q := `SELECT id, plan, subscription_status, trial_ends_at, subscription_ends_at
		FROM users WHERE id = $1 AND role = 'doctor'`
	if db.TxFromContext(ctx) != nil {
		q += ` FOR UPDATE`
	}
	var sub Subscription
	err := db.Conn(ctx, s.pool).QueryRow(ctx, q, doctorID).Scan(
		&sub.DoctorID, &sub.Plan, &sub.Status, &sub.TrialEndsAt, &sub.EndsAt,
	)
	if err != nil {
		return nil, db.MapError(err, "subscription")
	}
	return &sub, nil
}

func (s *subscriptionStorePG) Renew(ctx context.Context, doctorID uuid.UUID, plan account.Plan, endsAt time.Time) error {
	tag, err := db.Conn(ctx, s.pool).Exec(ctx, `
		UPDATE users SET plan = $2, subscription_status = 'active', subscription_ends_at = $3, updated_at = NOW()
		WHERE id = $1 OR doctor_id = $1`, doctorID, plan, endsAt)
	if err != nil {
		return fmt.Errorf("subscription renew: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "subscription")
	}
	return nil
}
