package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

const gatewayEventColumns = `id, order_ref, payment_id, kind, response_code, params, created_at`

type GatewayEventRepository struct {
	db *sql.DB
}

func NewGatewayEventRepository(db *sql.DB) *GatewayEventRepository {
	return &GatewayEventRepository{db: db}
}

// Create records an exchange outside of any business transaction so that
// rejected callbacks are kept too.
func (r *GatewayEventRepository) Create(ctx context.Context, event *domain.GatewayEvent) error {
	var paymentID uuid.NullUUID
	if event.PaymentID != nil {
		paymentID = uuid.NullUUID{UUID: *event.PaymentID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gateway_events (id, order_ref, payment_id, kind, response_code, params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.OrderRef, paymentID, event.Kind, event.ResponseCode,
		jsonParam(event.Params), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// Latest returns the most recent event of the given kind for an order
// reference.
func (r *GatewayEventRepository) Latest(ctx context.Context, orderRef string, kind domain.GatewayEventKind) (*domain.GatewayEvent, error) {
	e, err := scanGatewayEvent(r.db.QueryRowContext(ctx,
		`SELECT `+gatewayEventColumns+` FROM gateway_events
		WHERE order_ref = $1 AND kind = $2
		ORDER BY created_at DESC LIMIT 1`,
		orderRef, kind,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Latest: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Latest: %w", err)
	}
	return e, nil
}

func (r *GatewayEventRepository) ListByOrderRef(ctx context.Context, orderRef string) ([]domain.GatewayEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+gatewayEventColumns+` FROM gateway_events
		WHERE order_ref = $1 ORDER BY created_at`, orderRef,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByOrderRef: %w", err)
	}
	defer rows.Close()

	events := []domain.GatewayEvent{}
	for rows.Next() {
		e, err := scanGatewayEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByOrderRef: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByOrderRef: rows: %w", err)
	}
	return events, nil
}

func scanGatewayEvent(s scanner) (*domain.GatewayEvent, error) {
	var e domain.GatewayEvent
	var paymentID uuid.NullUUID
	var params []byte
	err := s.Scan(&e.ID, &e.OrderRef, &paymentID, &e.Kind, &e.ResponseCode, &params, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if paymentID.Valid {
		e.PaymentID = &paymentID.UUID
	}
	e.Params = params
	return &e, nil
}
