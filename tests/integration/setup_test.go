package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hadia/wholesale-store/internal/models"
	"github.com/hadia/wholesale-store/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

var testUserSeq int

// createTestUser registers a user with a unique email and one default
// address, returning both.
func createTestUser(t *testing.T, db *sql.DB) (*models.User, *models.Address) {
	t.Helper()
	ctx := context.Background()

	testUserSeq++
	email := fmt.Sprintf("buyer%d@example.com", testUserSeq)

	user, err := store.CreateUser(ctx, db, email, "not-a-real-hash", "Test Buyer")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}

	addr, err := store.CreateAddress(ctx, db, user.ID, store.AddressInput{
		Name:       "Test Buyer",
		Street:     "12 Nile Street",
		City:       "Cairo",
		State:      "Cairo",
		PostalCode: "11511",
		Country:    "EG",
		Phone:      "+20100000000",
		IsDefault:  true,
	})
	if err != nil {
		t.Fatalf("Create address: %v", err)
	}

	return user, addr
}

var testCategorySeq int

func createTestCategory(t *testing.T, db *sql.DB) int64 {
	t.Helper()

	testCategorySeq++
	category, err := store.CreateCategory(context.Background(), db,
		"Dresses", fmt.Sprintf("dresses-%d", testCategorySeq), "")
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}
	return category.ID
}

var testProductSeq int

func createTestProduct(t *testing.T, db *sql.DB, price int64, stock int) *models.Product {
	t.Helper()

	testProductSeq++
	product, err := store.CreateProduct(context.Background(), db, store.ProductInput{
		SKU:             fmt.Sprintf("TEST-%04d", testProductSeq),
		Slug:            fmt.Sprintf("test-product-%d", testProductSeq),
		Name:            fmt.Sprintf("Test Product %d", testProductSeq),
		Description:     "Test",
		FullDescription: "Test product",
		Price:           decimal.NewFromInt(price),
		Stock:           stock,
		CategoryID:      createTestCategory(t, db),
		Images:          []string{"https://example.com/p.jpg"},
		Colors:          []string{"Teal"},
		Sizes:           []string{"M"},
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	return product
}
