package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/models"
)

func CreateUser(ctx context.Context, db *sql.DB, email, passwordHash, name string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, password_hash, name, role, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		RETURNING id, email, password_hash, name, role, image, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query, email, passwordHash, name, models.RoleCustomer).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, password_hash, name, role, image, created_at, updated_at, version
		FROM users
		WHERE id = $1`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, password_hash, name, role, image, created_at, updated_at, version
		FROM users
		WHERE email = $1`

	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

// UpdateProfile changes the mutable profile fields only. Empty values
// leave the current value in place.
func UpdateProfile(ctx context.Context, db *sql.DB, userID int64, name, image string) (*models.User, error) {
	user := &models.User{}

	query := `
		UPDATE users
		SET name = COALESCE(NULLIF($1, ''), name),
		    image = COALESCE(NULLIF($2, ''), image),
		    updated_at = NOW(),
		    version = version + 1
		WHERE id = $3
		RETURNING id, email, password_hash, name, role, image, created_at, updated_at, version`

	err := db.QueryRowContext(ctx, query, name, image, userID).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Role,
		&user.Image,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}
