package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"backtest-core/pkg/config"
	"backtest-core/pkg/db"
)

// verify_schema opens a results database and reports tables or columns the
// backtester expects but cannot find. It never migrates.
//
// Usage:
//   go run ./scripts/verify_schema -db ./data/backtests.db
//
// Without -db it checks DB_PATH from the environment or .env.

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dbPath := flag.String("db", cfg.DBPath, "results database")
	flag.Parse()
	fmt.Printf("Verifying database at: %s\n", *dbPath)

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("Database not found: %v", err)
	}
	database, err := db.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer database.Close()

	missing, err := db.MissingColumns(database)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	tables := make([]string, 0, len(db.Tables))
	for t := range db.Tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	ok := true
	for i, t := range tables {
		fmt.Printf("\n%d. Verifying %s table...\n", i+1, t)
		cols := missing[t]
		switch {
		case len(cols) == len(db.Tables[t]):
			fmt.Printf("❌ %s table MISSING\n", t)
			ok = false
		case len(cols) > 0:
			fmt.Printf("❌ %s columns MISSING: %v\n", t, cols)
			ok = false
		default:
			fmt.Printf("✓ %s table has all %d columns\n", t, len(db.Tables[t]))
		}
	}
	if !ok {
		fmt.Println("\nRun the backtester once with -persist to migrate the database.")
		os.Exit(1)
	}
}
