// Package migrations runs the schema migrations under db/migrations/sql
// against the configured Postgres database.
package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// sqlDir resolves to db/migrations/sql regardless of the caller's working
// directory, since goose.Up takes a directory path rather than an embedded
// filesystem.
func sqlDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "sql")
}

// Run applies every pending migration to POSTGRES_CONN.
func Run() {
	db, err := sql.Open("postgres", os.Getenv("POSTGRES_CONN"))
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("failed to set dialect: %v", err)
	}

	dir := sqlDir()
	fmt.Printf("Running migrations from %s\n", dir)
	if err := goose.Up(db, dir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
}
