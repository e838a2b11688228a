package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/models"
)

func CreateCategory(ctx context.Context, db *sql.DB, name, slug, description string) (*models.Category, error) {
	category := &models.Category{}

	query := `
		INSERT INTO categories (name, slug, description)
		VALUES ($1, $2, $3)
		RETURNING id, name, slug, description`

	err := db.QueryRowContext(ctx, query, name, slug, description).Scan(
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Description,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrSlugTaken
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func GetCategoryBySlug(ctx context.Context, db *sql.DB, slug string) (*models.Category, error) {
	category := &models.Category{}

	query := `SELECT id, name, slug, description FROM categories WHERE slug = $1`

	err := db.QueryRowContext(ctx, query, slug).Scan(
		&category.ID,
		&category.Name,
		&category.Slug,
		&category.Description,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

// ListCategories returns all categories with a count of their active
// products, ordered by name.
func ListCategories(ctx context.Context, db *sql.DB) ([]models.Category, error) {
	query := `
		SELECT c.id, c.name, c.slug, c.description,
		       COUNT(p.id) FILTER (WHERE p.is_active)
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id
		GROUP BY c.id, c.name, c.slug, c.description
		ORDER BY c.name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var category models.Category
		err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.Slug,
			&category.Description,
			&category.ProductCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}
