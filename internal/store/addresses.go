package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/models"
)

type AddressInput struct {
	Name       string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	IsDefault  bool
}

const addressColumns = `id, user_id, name, street, city, state, postal_code, country, phone, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...interface{}) error }, addr *models.Address) error {
	return row.Scan(
		&addr.ID,
		&addr.UserID,
		&addr.Name,
		&addr.Street,
		&addr.City,
		&addr.State,
		&addr.PostalCode,
		&addr.Country,
		&addr.Phone,
		&addr.IsDefault,
		&addr.CreatedAt,
		&addr.UpdatedAt,
	)
}

// CreateAddress inserts an address for the user. When the new address is
// flagged default, all of the user's other defaults are cleared in the
// same transaction; a partial unique index on (user_id) WHERE is_default
// backs the invariant up.
func CreateAddress(ctx context.Context, db *sql.DB, userID int64, in AddressInput) (*models.Address, error) {
	addr := &models.Address{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if in.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE addresses SET is_default = FALSE, updated_at = NOW()
				 WHERE user_id = $1 AND is_default`,
				userID); err != nil {
				return fmt.Errorf("clear default addresses: %w", err)
			}
		}

		query := `
			INSERT INTO addresses (user_id, name, street, city, state, postal_code, country, phone, is_default, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			RETURNING ` + addressColumns

		row := tx.QueryRowContext(ctx, query,
			userID, in.Name, in.Street, in.City, in.State, in.PostalCode, in.Country, in.Phone, in.IsDefault)
		if err := scanAddress(row, addr); err != nil {
			return fmt.Errorf("create address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return addr, nil
}

// GetAddress returns the address only if it belongs to the user;
// someone else's address reads as not found.
func GetAddress(ctx context.Context, db *sql.DB, userID, addressID int64) (*models.Address, error) {
	addr := &models.Address{}

	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

	err := scanAddress(db.QueryRowContext(ctx, query, addressID, userID), addr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	return addr, nil
}

func ListAddresses(ctx context.Context, db *sql.DB, userID int64) ([]models.Address, error) {
	query := `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []models.Address
	for rows.Next() {
		var addr models.Address
		if err := scanAddress(rows, &addr); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, addr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return addresses, nil
}

func UpdateAddress(ctx context.Context, db *sql.DB, userID, addressID int64, in AddressInput) (*models.Address, error) {
	addr := &models.Address{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`,
			addressID, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check address ownership: %w", err)
		}
		if !exists {
			return database.ErrAddressNotFound
		}

		if in.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE addresses SET is_default = FALSE, updated_at = NOW()
				 WHERE user_id = $1 AND is_default AND id <> $2`,
				userID, addressID); err != nil {
				return fmt.Errorf("clear default addresses: %w", err)
			}
		}

		query := `
			UPDATE addresses
			SET name = $1, street = $2, city = $3, state = $4, postal_code = $5,
			    country = $6, phone = $7, is_default = $8, updated_at = NOW()
			WHERE id = $9 AND user_id = $10
			RETURNING ` + addressColumns

		row := tx.QueryRowContext(ctx, query,
			in.Name, in.Street, in.City, in.State, in.PostalCode, in.Country, in.Phone, in.IsDefault,
			addressID, userID)
		if err := scanAddress(row, addr); err != nil {
			return fmt.Errorf("update address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return addr, nil
}

func DeleteAddress(ctx context.Context, db *sql.DB, userID, addressID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrAddressNotFound
	}

	return nil
}
