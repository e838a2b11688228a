// Applies the SQL migrations under migrations/ in lexical order.
// Usage: go run scripts/run_migrations.go [up|down]
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/hadia/wholesale-store/internal/config"
)

const migrationDir = "migrations"

func main() {
	if len(os.Args) < 2 || (os.Args[1] != "up" && os.Args[1] != "down") {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Ping database: %v", err)
	}

	files, err := migrationFiles(direction)
	if err != nil {
		log.Fatalf("Collect migrations: %v", err)
	}

	for _, filename := range files {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			log.Fatalf("Read migration %s: %v", filename, err)
		}

		log.Printf("Applying %s", filename)
		if _, err := db.Exec(string(content)); err != nil {
			log.Fatalf("Apply migration %s: %v", filename, err)
		}
	}

	log.Printf("Applied %d migration(s) %s", len(files), direction)
}

// migrationFiles lists the *.up.sql or *.down.sql files, lexically
// ascending for up and descending for down.
func migrationFiles(direction string) ([]string, error) {
	entries, err := os.ReadDir(migrationDir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	} else {
		sort.Strings(files)
	}

	return files, nil
}
