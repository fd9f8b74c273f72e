package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/greenbox-dev/greenbox/internal/domain"
)

const orderColumns = `id, user_id, status, payment_status, total_price, final_price,
	discount_code, discount_amount, delivery_method, payment_method, address,
	recipient_name, recipient_phone, is_weekly_package, weekly_package_id,
	scheduled_delivery_date, payment_link_id, checkout_url, gateway_order_code,
	created_at, updated_at`

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	q := r.Handle(ctx)

	query := `INSERT INTO orders (id, user_id, status, payment_status, total_price, final_price,
	            discount_code, discount_amount, delivery_method, payment_method, address,
	            recipient_name, recipient_phone, is_weekly_package, weekly_package_id,
	            scheduled_delivery_date, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())`

	_, err := q.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Status,
		order.PaymentStatus,
		order.TotalPrice,
		order.FinalPrice,
		order.DiscountCode,
		order.DiscountAmount,
		order.DeliveryMethod,
		order.PaymentMethod,
		order.Address,
		order.RecipientName,
		order.RecipientPhone,
		order.IsWeeklyPackage,
		order.WeeklyPackageID,
		order.ScheduledDeliveryDate,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		lineQuery := `INSERT INTO order_lines (order_id, box_type_id, box_name, quantity, unit_price)
		              VALUES ($1, $2, $3, $4, $5)`
		if _, err := q.ExecContext(ctx, lineQuery,
			order.ID, line.BoxTypeID, line.BoxName, line.Quantity, line.UnitPrice); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND deleted_at IS NULL`
	return r.scanOrder(ctx, r.Handle(ctx).QueryRowContext(ctx, query, id))
}

// GetOrderByGatewayCode resolves the order a gateway webhook refers to.
func (r *Repository) GetOrderByGatewayCode(ctx context.Context, code int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_code = $1 AND deleted_at IS NULL`
	return r.scanOrder(ctx, r.Handle(ctx).QueryRowContext(ctx, query, code))
}

func (r *Repository) scanOrder(ctx context.Context, row *sql.Row) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.PaymentStatus,
		&order.TotalPrice,
		&order.FinalPrice,
		&order.DiscountCode,
		&order.DiscountAmount,
		&order.DeliveryMethod,
		&order.PaymentMethod,
		&order.Address,
		&order.RecipientName,
		&order.RecipientPhone,
		&order.IsWeeklyPackage,
		&order.WeeklyPackageID,
		&order.ScheduledDeliveryDate,
		&order.PaymentLinkID,
		&order.CheckoutURL,
		&order.GatewayOrderCode,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	lines, err := r.getOrderLines(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Lines = lines
	return &order, nil
}

func (r *Repository) getOrderLines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLine, error) {
	query := `SELECT box_type_id, box_name, quantity, unit_price FROM order_lines WHERE order_id = $1`
	rows, err := r.Handle(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.BoxTypeID, &line.BoxName, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	query := `SELECT id FROM orders WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.Handle(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	orders := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := r.GetOrderByID(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.Handle(ctx).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return requireRow(res, ErrOrderNotFound)
}

func (r *Repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	query := `UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.Handle(ctx).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return requireRow(res, ErrOrderNotFound)
}

// SetPaymentLink persists the gateway response onto the order. The gateway
// order code is unique, one link per order.
func (r *Repository) SetPaymentLink(ctx context.Context, id uuid.UUID, linkID, checkoutURL string, orderCode int64) error {
	query := `UPDATE orders SET payment_link_id = $2, checkout_url = $3, gateway_order_code = $4, updated_at = NOW()
	          WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.Handle(ctx).ExecContext(ctx, query, id, linkID, checkoutURL, orderCode)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("gateway order code %d already assigned: %w", orderCode, err)
		}
		return fmt.Errorf("set payment link: %w", err)
	}
	return requireRow(res, ErrOrderNotFound)
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
