package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/models"
)

type ProductInput struct {
	SKU             string
	Slug            string
	Name            string
	Description     string
	FullDescription string
	Price           decimal.Decimal
	CompareAtPrice  *decimal.Decimal
	Stock           int
	CategoryID      int64
	Images          []string
	Colors          []string
	Sizes           []string
}

const productColumns = `id, sku, slug, name, description, full_description, price, compare_at_price,
	stock, is_active, category_id, images, colors, sizes, created_at, updated_at, version`

func scanProduct(row interface{ Scan(...interface{}) error }, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.SKU,
		&p.Slug,
		&p.Name,
		&p.Description,
		&p.FullDescription,
		&p.Price,
		&p.CompareAtPrice,
		&p.Stock,
		&p.IsActive,
		&p.CategoryID,
		&p.Images,
		&p.Colors,
		&p.Sizes,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
}

func CreateProduct(ctx context.Context, db *sql.DB, in ProductInput) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (sku, slug, name, description, full_description, price, compare_at_price,
		                      stock, is_active, category_id, images, colors, sizes, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10, $11, $12, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	var compareAt decimal.NullDecimal
	if in.CompareAtPrice != nil {
		compareAt = decimal.NullDecimal{Decimal: *in.CompareAtPrice, Valid: true}
	}

	row := db.QueryRowContext(ctx, query,
		in.SKU, in.Slug, in.Name, in.Description, in.FullDescription, in.Price, compareAt,
		in.Stock, in.CategoryID,
		pq.Array(in.Images), pq.Array(in.Colors), pq.Array(in.Sizes))

	if err := scanProduct(row, product); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrSlugTaken
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db *sql.DB, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	if err := scanProduct(db.QueryRowContext(ctx, query, id), product); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProductBySlug is the storefront's product-page lookup, category
// included.
func GetProductBySlug(ctx context.Context, db *sql.DB, slug string) (*models.Product, error) {
	product := &models.Product{}
	category := &models.Category{}

	query := `
		SELECT p.id, p.sku, p.slug, p.name, p.description, p.full_description, p.price, p.compare_at_price,
		       p.stock, p.is_active, p.category_id, p.images, p.colors, p.sizes, p.created_at, p.updated_at, p.version,
		       c.id, c.name, c.slug, c.description
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.slug = $1`

	err := db.QueryRowContext(ctx, query, slug).Scan(
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
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Description,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product by slug: %w", err)
	}

	product.Category = category
	return product, nil
}

type ProductUpdate struct {
	Name            *string
	Description     *string
	FullDescription *string
	Price           *decimal.Decimal
	CompareAtPrice  *decimal.Decimal
	Stock           *int
	IsActive        *bool
	CategoryID      *int64
	Images          []string
	Colors          []string
	Sizes           []string
}

// UpdateProduct applies a partial update; nil fields keep their current
// value.
func UpdateProduct(ctx context.Context, db *sql.DB, id int64, in ProductUpdate) (*models.Product, error) {
	product := &models.Product{}

	query := `
		UPDATE products
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    full_description = COALESCE($3, full_description),
		    price = COALESCE($4, price),
		    compare_at_price = COALESCE($5, compare_at_price),
		    stock = COALESCE($6, stock),
		    is_active = COALESCE($7, is_active),
		    category_id = COALESCE($8, category_id),
		    images = COALESCE($9, images),
		    colors = COALESCE($10, colors),
		    sizes = COALESCE($11, sizes),
		    updated_at = NOW(),
		    version = version + 1
		WHERE id = $12
		RETURNING ` + productColumns

	var images, colors, sizes interface{}
	if in.Images != nil {
		images = pq.Array(in.Images)
	}
	if in.Colors != nil {
		colors = pq.Array(in.Colors)
	}
	if in.Sizes != nil {
		sizes = pq.Array(in.Sizes)
	}

	row := db.QueryRowContext(ctx, query,
		in.Name, in.Description, in.FullDescription, in.Price, in.CompareAtPrice,
		in.Stock, in.IsActive, in.CategoryID, images, colors, sizes, id)

	if err := scanProduct(row, product); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

// DeactivateProduct soft-deletes: the product drops out of the catalog
// and ordering but stays referenced by historical orders.
func DeactivateProduct(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET is_active = FALSE, updated_at = NOW(), version = version + 1
		 WHERE id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

type ProductFilter struct {
	CategorySlug string
	Search       string
	ActiveOnly   bool
}

// ListProducts pages through the catalog. The public listing filters to
// active products; the admin listing sets ActiveOnly false to see
// everything.
func ListProducts(ctx context.Context, db *sql.DB, filter ProductFilter, page, pageSize int) (*OffsetPage, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if filter.ActiveOnly {
		where += " AND p.is_active"
	}
	if filter.CategorySlug != "" {
		args = append(args, filter.CategorySlug)
		where += fmt.Sprintf(" AND c.slug = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM products p JOIN categories c ON c.id = p.category_id ` + where
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`
		SELECT p.id, p.sku, p.slug, p.name, p.description, p.full_description, p.price, p.compare_at_price,
		       p.stock, p.is_active, p.category_id, p.images, p.colors, p.sizes, p.created_at, p.updated_at, p.version,
		       c.id, c.name, c.slug, c.description
		FROM products p
		JOIN categories c ON c.id = p.category_id
		%s
		ORDER BY p.created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		var category models.Category
		err := rows.Scan(
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
			&category.ID,
			&category.Name,
			&category.Slug,
			&category.Description,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		product.Category = &category
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// LockActiveProducts resolves and row-locks the requested active
// products inside tx. Inactive or missing ids are simply absent from
// the result; the caller compares set sizes to reject partial orders.
func LockActiveProducts(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1) AND is_active
		ORDER BY id
		FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]*models.Product, len(ids))
	for rows.Next() {
		product := &models.Product{}
		if err := scanProduct(rows, product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// DecrementStock takes quantity off a product's stock. The guard in the
// WHERE clause makes the write conditional, so stock can never go
// negative even under concurrent orders.
func DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock = stock - $1,
		     updated_at = NOW(),
		     version = version + 1
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}
