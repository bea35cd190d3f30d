// Package main inspects persisted competition records: look one up by
// auction id or settlement transaction hash, or list the most recent
// rounds. With a ClickHouse DSN it also prints outcome counts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/storage"
	chstore "auction-engine/internal/storage/clickhouse"
	pgstore "auction-engine/internal/storage/postgres"
)

func main() {
	auctionID := flag.Int64("auction-id", 0, "Auction id to look up")
	txHash := flag.String("tx-hash", "", "Settlement transaction hash to look up")
	latest := flag.Int("latest", 0, "List the N most recent records")
	outcomes := flag.Bool("outcomes", false, "Print settlement outcome counts (requires --clickhouse-dsn)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")

	flag.Parse()

	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()
	store := pgstore.NewCompetitionStore(pool)

	switch {
	case *auctionID != 0:
		rec, err := store.ByAuction(ctx, domain.AuctionID(*auctionID))
		printRecord(logger, rec, err)
	case *txHash != "":
		rec, err := store.ByTransaction(ctx, *txHash)
		printRecord(logger, rec, err)
	case *latest > 0:
		recs, err := store.LatestN(ctx, *latest)
		if err != nil {
			logger.Fatalf("latest records: %v", err)
		}
		printJSON(logger, recs)
	case *outcomes:
		if *clickhouseDSN == "" {
			logger.Fatal("--outcomes requires --clickhouse-dsn")
		}
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		counts, err := chstore.NewOutcomeSink(conn).StatusCounts(ctx)
		if err != nil {
			logger.Fatalf("outcome counts: %v", err)
		}
		printJSON(logger, counts)
	default:
		rec, err := store.Latest(ctx)
		printRecord(logger, rec, err)
	}
}

func printRecord(logger *log.Logger, rec *domain.CompetitionRecord, err error) {
	if err == storage.ErrNotFound {
		logger.Fatal("no matching competition record")
	}
	if err != nil {
		logger.Fatalf("query: %v", err)
	}
	printJSON(logger, rec)
}

func printJSON(logger *log.Logger, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("encode output: %v", err)
	}
	fmt.Println(string(data))
}
