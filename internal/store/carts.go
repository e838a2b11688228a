package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/models"
	"github.com/hadia/wholesale-store/internal/pricing"
)

type Cart struct {
	Items      []models.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

// GetCart returns the user's cart lines with products joined and the
// tier-discounted running total.
func GetCart(ctx context.Context, db *sql.DB, userID int64) (*Cart, error) {
	query := `
		SELECT ci.id, ci.user_id, ci.product_id, ci.set_type, ci.quantity, ci.created_at, ci.updated_at,
		       p.id, p.sku, p.slug, p.name, p.description, p.full_description, p.price, p.compare_at_price,
		       p.stock, p.is_active, p.category_id, p.images, p.colors, p.sizes, p.created_at, p.updated_at, p.version
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer rows.Close()

	cart := &Cart{TotalPrice: decimal.Zero}
	for rows.Next() {
		var item models.CartItem
		product := &models.Product{}
		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.SetType,
			&item.Quantity,
			&item.CreatedAt,
			&item.UpdatedAt,
			&product.ID,
			&product.SKU,
			&product.Slug,
			&product.Name,
			&product.Description,
			&product.FullDescription,
			&product.Price,
			&product.CompareAtPrice,
			&product.Stock,
			&product.IsActive,
			&product.CategoryID,
			&product.Images,
			&product.Colors,
			&product.Sizes,
			&product.CreatedAt,
			&product.UpdatedAt,
			&product.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Product = product

		tier, ok := pricing.TierFor(item.SetType)
		if !ok {
			return nil, fmt.Errorf("cart item %d: unknown tier %q", item.ID, item.SetType)
		}

		cart.Items = append(cart.Items, item)
		cart.TotalItems += item.Quantity
		cart.TotalPrice = cart.TotalPrice.Add(pricing.LineTotal(product.Price, tier, item.Quantity))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}

// AddCartItem puts quantity pieces of a product under a tier into the
// user's cart. A line already holding the same (product, tier) absorbs
// the quantity instead of duplicating; the upsert rides the unique
// index on (user_id, product_id, set_type).
func AddCartItem(ctx context.Context, db *sql.DB, userID, productID int64, setType string, quantity int) (*models.CartItem, error) {
	product, err := GetProduct(ctx, db, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, database.ErrProductNotFound
	}
	if product.Stock < quantity {
		return nil, database.ErrInsufficientStock
	}

	item := &models.CartItem{}

	query := `
		INSERT INTO cart_items (user_id, product_id, set_type, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, product_id, set_type)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, user_id, product_id, set_type, quantity, created_at, updated_at`

	err = db.QueryRowContext(ctx, query, userID, productID, setType, quantity).Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.SetType,
		&item.Quantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	item.Product = product
	return item, nil
}

// UpdateCartItemQuantity replaces a line's quantity after re-checking
// stock. Lines the user does not own read as not found.
func UpdateCartItemQuantity(ctx context.Context, db *sql.DB, userID, itemID int64, quantity int) (*models.CartItem, error) {
	item := &models.CartItem{}

	var stock int
	err := db.QueryRowContext(ctx,
		`SELECT p.stock
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.id = $1 AND ci.user_id = $2`,
		itemID, userID).Scan(&stock)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	if stock < quantity {
		return nil, database.ErrInsufficientStock
	}

	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING id, user_id, product_id, set_type, quantity, created_at, updated_at`

	err = db.QueryRowContext(ctx, query, quantity, itemID, userID).Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.SetType,
		&item.Quantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	return item, nil
}

func RemoveCartItem(ctx context.Context, db *sql.DB, userID, itemID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`,
		itemID, userID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCartItemNotFound
	}

	return nil
}

func ClearCart(ctx context.Context, db *sql.DB, userID int64) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
