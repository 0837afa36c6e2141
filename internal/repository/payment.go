package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

const paymentColumns = `id, code, payer_name, payment_date, amount, payment_method,
	notes, status, version, created_at, created_by, updated_at, updated_by`

var paymentSortColumns = map[domain.PaymentSortField]string{
	domain.PaymentSortPayer:  "payer_name",
	domain.PaymentSortAmount: "amount",
	domain.PaymentSortMethod: "payment_method",
	domain.PaymentSortDate:   "payment_date",
}

// PaymentFilter narrows List. From is inclusive, Until exclusive. Zero
// values disable a criterion.
type PaymentFilter struct {
	Search string
	Method string
	Status domain.PaymentStatus
	From   *time.Time
	Until  *time.Time
	SortBy domain.PaymentSortField
	Desc   bool
	Limit  int
	Offset int
}

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// NextCodeValue draws the next number for a payment code.
func (r *PaymentRepository) NextCodeValue(ctx context.Context, tx *sql.Tx) (int64, error) {
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('payment_code_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("NextCodeValue: %w", err)
	}
	return n, nil
}

func (r *PaymentRepository) Create(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payments (
			id, code, payer_name, payment_date, amount, payment_method,
			notes, status, version, created_at, created_by, updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.Code, p.PayerName, p.PaymentDate, p.Amount, p.PaymentMethod,
		p.Notes, p.Status, p.Version, p.CreatedAt, p.CreatedBy, p.UpdatedAt, p.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	for _, link := range p.Invoices {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payment_invoices (payment_id, invoice_id, position, amount)
			VALUES ($1, $2, $3, $4)`,
			p.ID, link.InvoiceID, link.Position, link.Amount,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("Create: invoice %d linked twice: %w", link.InvoiceID, domain.ErrValidation)
			}
			return fmt.Errorf("Create: link invoice %d: %w", link.InvoiceID, err)
		}
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := r.get(ctx, r.db, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// GetForUpdate reads the payment and its invoice links while holding a row
// lock until tx ends.
func (r *PaymentRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Payment, error) {
	p, err := r.get(ctx, tx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return p, nil
}

// GetByOrderRefForUpdate locks the payment whose code ends with the given
// gateway order reference.
func (r *PaymentRepository) GetByOrderRefForUpdate(ctx context.Context, tx *sql.Tx, orderRef string) (*domain.Payment, error) {
	p, err := r.get(ctx, tx, `SELECT `+paymentColumns+` FROM payments WHERE right(code, 14) = $1 FOR UPDATE`, orderRef)
	if err != nil {
		return nil, fmt.Errorf("GetByOrderRefForUpdate: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) get(ctx context.Context, q querier, query string, arg any) (*domain.Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	links, err := r.links(ctx, q, []uuid.UUID{p.ID})
	if err != nil {
		return nil, err
	}
	p.Invoices = links[p.ID]
	return p, nil
}

func (r *PaymentRepository) List(ctx context.Context, f PaymentFilter) ([]domain.Payment, int, error) {
	where, args := paymentWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("List: count: %w", err)
	}

	col, ok := paymentSortColumns[f.SortBy]
	if !ok {
		col = paymentSortColumns[domain.PaymentSortDate]
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}

	query := `SELECT ` + paymentColumns + ` FROM payments` + where +
		fmt.Sprintf(` ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`, col, dir, dir, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	var ids []uuid.UUID
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("List: scan: %w", err)
		}
		payments = append(payments, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("List: rows: %w", err)
	}

	if len(ids) > 0 {
		links, err := r.links(ctx, r.db, ids)
		if err != nil {
			return nil, 0, fmt.Errorf("List: %w", err)
		}
		for i := range payments {
			payments[i].Invoices = links[payments[i].ID]
		}
	}

	return payments, total, nil
}

func paymentWhere(f PaymentFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if s := strings.TrimSpace(f.Search); s != "" {
		add(`(payer_name ILIKE ? OR notes ILIKE ? OR payment_method ILIKE ?)`, containsPattern(s))
	}
	if f.Method != "" {
		add(`payment_method = ?`, f.Method)
	}
	if f.Status != "" {
		add(`status = ?`, f.Status)
	}
	if f.From != nil {
		add(`payment_date >= ?`, *f.From)
	}
	if f.Until != nil {
		add(`payment_date < ?`, *f.Until)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Update overwrites the editable fields and bumps the version. The caller is
// expected to hold the row lock from GetForUpdate.
func (r *PaymentRepository) Update(ctx context.Context, tx *sql.Tx, p *domain.Payment) error {
	err := tx.QueryRowContext(ctx,
		`UPDATE payments SET payer_name = $1, payment_date = $2, amount = $3,
			payment_method = $4, notes = $5, status = $6,
			version = version + 1, updated_at = $7, updated_by = $8
		WHERE id = $9
		RETURNING version`,
		p.PayerName, p.PaymentDate, p.Amount, p.PaymentMethod, p.Notes, p.Status,
		p.UpdatedAt, p.UpdatedBy, p.ID,
	).Scan(&p.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("Update: %w", domain.ErrPaymentNotFound)
		}
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Delete(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Delete: %w", domain.ErrPaymentNotFound)
	}
	return nil
}

func (r *PaymentRepository) links(ctx context.Context, q querier, ids []uuid.UUID) (map[uuid.UUID][]domain.PaymentInvoice, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := q.QueryContext(ctx,
		`SELECT payment_id, invoice_id, position, amount FROM payment_invoices
		WHERE payment_id = ANY($1::uuid[]) ORDER BY payment_id, position`,
		pq.Array(keys),
	)
	if err != nil {
		return nil, fmt.Errorf("links: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.PaymentInvoice, len(ids))
	for rows.Next() {
		var l domain.PaymentInvoice
		if err := rows.Scan(&l.PaymentID, &l.InvoiceID, &l.Position, &l.Amount); err != nil {
			return nil, fmt.Errorf("links: scan: %w", err)
		}
		out[l.PaymentID] = append(out[l.PaymentID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("links: rows: %w", err)
	}
	return out, nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	err := s.Scan(
		&p.ID, &p.Code, &p.PayerName, &p.PaymentDate, &p.Amount, &p.PaymentMethod,
		&p.Notes, &p.Status, &p.Version, &p.CreatedAt, &p.CreatedBy, &p.UpdatedAt, &p.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
