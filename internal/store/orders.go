package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/models"
	"github.com/hadia/wholesale-store/internal/pricing"
)

type CreateOrderRequest struct {
	UserID            int64
	Items             []OrderLineRequest
	ShippingAddressID int64
	BillingAddressID  int64
	Notes             string
}

type OrderLineRequest struct {
	ProductID int64
	Quantity  int
	SetType   string
}

// generateOrderNumber builds the customer-facing order identifier:
// a date for the humans, a uuid-derived suffix for uniqueness. The
// unique index on order_number backstops the residual collision odds.
func generateOrderNumber() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

// CreateOrder assembles and persists an order as one atomic unit:
// address ownership checks, active-product resolution under row locks,
// stock validation, tier-discounted totals, order + item rows, the
// conditional stock decrement and the cart wipe all commit together or
// not at all. Serialization conflicts are retried.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}

	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("quantity must be positive for product %d", line.ProductID)
		}
		if !pricing.ValidTier(line.SetType) {
			return nil, fmt.Errorf("unknown tier %q", line.SetType)
		}
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		shipping, err := getAddressTx(ctx, tx, req.UserID, req.ShippingAddressID)
		if err != nil {
			return err
		}
		billing, err := getAddressTx(ctx, tx, req.UserID, req.BillingAddressID)
		if err != nil {
			return err
		}

		productIDs := make([]int64, 0, len(req.Items))
		seen := make(map[int64]bool, len(req.Items))
		for _, line := range req.Items {
			if !seen[line.ProductID] {
				seen[line.ProductID] = true
				productIDs = append(productIDs, line.ProductID)
			}
		}

		products, err := LockActiveProducts(ctx, tx, productIDs)
		if err != nil {
			return err
		}
		if len(products) < len(productIDs) {
			return database.ErrProductUnavailable
		}

		// Total pieces wanted per product across lines; two tiers of the
		// same product draw on the same stock.
		required := make(map[int64]int, len(productIDs))
		for _, line := range req.Items {
			required[line.ProductID] += line.Quantity
		}
		for _, id := range productIDs {
			if p := products[id]; p.Stock < required[id] {
				return fmt.Errorf("%w for %s", database.ErrInsufficientStock, p.Name)
			}
		}

		subtotal := decimal.Zero
		type pricedLine struct {
			OrderLineRequest
			unitPrice decimal.Decimal
			lineTotal decimal.Decimal
		}
		priced := make([]pricedLine, 0, len(req.Items))
		for _, line := range req.Items {
			tier, _ := pricing.TierFor(line.SetType)
			unit := pricing.UnitPrice(products[line.ProductID].Price, tier)
			total := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))

			priced = append(priced, pricedLine{OrderLineRequest: line, unitPrice: unit, lineTotal: total})
			subtotal = subtotal.Add(total)
		}

		totals := pricing.ComputeTotals(subtotal)
		orderNumber := generateOrderNumber()

		order = &models.Order{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (order_number, user_id, shipping_address_id, billing_address_id,
			                     subtotal, tax, shipping, total, status, payment_status, notes,
			                     created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), 1)
			 RETURNING id, order_number, user_id, shipping_address_id, billing_address_id,
			           subtotal, tax, shipping, total, status, payment_status, notes,
			           created_at, updated_at, version`,
			orderNumber, req.UserID, req.ShippingAddressID, req.BillingAddressID,
			totals.Subtotal, totals.Tax, totals.Shipping, totals.Total,
			models.OrderStatusPending, models.PaymentStatusPending, req.Notes,
		).Scan(
			&order.ID,
			&order.OrderNumber,
			&order.UserID,
			&order.ShippingAddressID,
			&order.BillingAddressID,
			&order.Subtotal,
			&order.Tax,
			&order.Shipping,
			&order.Total,
			&order.Status,
			&order.PaymentStatus,
			&order.Notes,
			&order.CreatedAt,
			&order.UpdatedAt,
			&order.Version,
		)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range priced {
			var item models.OrderItem
			err = tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, set_type, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, NOW())
				 RETURNING id, order_id, product_id, set_type, quantity, unit_price, subtotal, created_at`,
				order.ID, line.ProductID, line.SetType, line.Quantity, line.unitPrice, line.lineTotal,
			).Scan(
				&item.ID,
				&item.OrderID,
				&item.ProductID,
				&item.SetType,
				&item.Quantity,
				&item.UnitPrice,
				&item.Subtotal,
				&item.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			order.Items = append(order.Items, item)
		}

		for _, id := range productIDs {
			if err := DecrementStock(ctx, tx, id, required[id]); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE user_id = $1`, req.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		order.ShippingAddress = shipping
		order.BillingAddress = billing
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func getAddressTx(ctx context.Context, tx *sql.Tx, userID, addressID int64) (*models.Address, error) {
	addr := &models.Address{}

	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

	if err := scanAddress(tx.QueryRowContext(ctx, query, addressID, userID), addr); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	return addr, nil
}

const orderColumns = `id, order_number, user_id, shipping_address_id, billing_address_id,
	subtotal, tax, shipping, total, status, payment_status, notes, created_at, updated_at, version`

func scanOrder(row interface{ Scan(...interface{}) error }, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.ShippingAddressID,
		&order.BillingAddressID,
		&order.Subtotal,
		&order.Tax,
		&order.Shipping,
		&order.Total,
		&order.Status,
		&order.PaymentStatus,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
}

func loadOrderItems(ctx context.Context, db *sql.DB, order *models.Order) error {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, product_id, set_type, quantity, unit_price, subtotal, created_at
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		order.ID)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.SetType,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

// loadOrderAddresses resolves the shipping and billing addresses the
// order was placed with. The foreign keys guarantee both rows exist.
func loadOrderAddresses(ctx context.Context, db *sql.DB, order *models.Order) error {
	for _, target := range []struct {
		id   int64
		dest **models.Address
	}{
		{order.ShippingAddressID, &order.ShippingAddress},
		{order.BillingAddressID, &order.BillingAddress},
	} {
		addr := &models.Address{}
		query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
		if err := scanAddress(db.QueryRowContext(ctx, query, target.id), addr); err != nil {
			return fmt.Errorf("get order address: %w", err)
		}
		*target.dest = addr
	}
	return nil
}

// GetOrderForUser loads one of the user's orders with items and
// addresses. Orders belonging to anyone else read as not found.
func GetOrderForUser(ctx context.Context, db *sql.DB, userID, orderID int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	if err := scanOrder(db.QueryRowContext(ctx, query, orderID, userID), order); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := loadOrderItems(ctx, db, order); err != nil {
		return nil, err
	}
	if err := loadOrderAddresses(ctx, db, order); err != nil {
		return nil, err
	}

	return order, nil
}

func GetOrder(ctx context.Context, db *sql.DB, orderID int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	if err := scanOrder(db.QueryRowContext(ctx, query, orderID), order); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := loadOrderItems(ctx, db, order); err != nil {
		return nil, err
	}
	if err := loadOrderAddresses(ctx, db, order); err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrdersCursor pages through a user's order history, newest first,
// keyed on (created_at, id) so entries created in the same instant
// still order deterministically.
func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	where := "WHERE user_id = $1"
	args := []interface{}{userID}

	// The first page carries no position predicate, so rows stamped by
	// the database clock are never skipped.
	if cursor != "" {
		cursorData, err := DecodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("decode cursor: %w", err)
		}
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		where += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit+1)
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, orderColumns, where, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListAllOrders is the admin view: every user's orders, optionally
// filtered by status.
func ListAllOrders(ctx context.Context, db *sql.DB, status string, page, pageSize int) (*OffsetPage, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		args = append(args, status)
		where = "WHERE status = $1"
	}

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, orderColumns, where, len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      orders,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// UpdateOrderStatus moves an order through the status machine. The row
// is locked while the current status is read so concurrent admin
// actions serialize instead of racing past the transition check.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, orderID int64, newStatus string) (*models.Order, error) {
	if !models.ValidOrderStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", database.ErrInvalidTransition, newStatus)
	}

	order := &models.Order{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&current)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !models.CanTransitionOrderStatus(current, newStatus) {
			return fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, current, newStatus)
		}

		query := `
			UPDATE orders
			SET status = $1, updated_at = NOW(), version = version + 1
			WHERE id = $2
			RETURNING ` + orderColumns

		if err := scanOrder(tx.QueryRowContext(ctx, query, newStatus, orderID), order); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := loadOrderItems(ctx, db, order); err != nil {
		return nil, err
	}

	return order, nil
}
