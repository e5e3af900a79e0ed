package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"readearn/internal/db"
	"readearn/internal/logger"
	"readearn/internal/migrations"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), false)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	apply := flag.Bool("apply", false, "apply migrations")
	flag.Parse()

	all, err := migrations.All()
	if err != nil {
		logger.Fatal("read migrations", "error", err)
	}
	if !*apply {
		for _, m := range all {
			fmt.Println(m.Name)
		}
		return
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	if err != nil {
		logger.Fatal("connect", "error", err)
	}
	defer pool.Close()

	for _, m := range all {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			logger.Fatal("failed to apply migration", "name", m.Name, "error", err)
		}
		fmt.Printf("applied %s\n", m.Name)
	}
}
