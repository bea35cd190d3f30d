// Package main runs the auction engine: the order intake API, the round
// loop with solver competition, settlement, and the competition record
// store.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"

	"auction-engine/internal/config"
	"auction-engine/internal/events"
	"auction-engine/internal/ledger"
	"auction-engine/internal/observability"
	"auction-engine/internal/orchestrator"
	"auction-engine/internal/orderpool"
	"auction-engine/internal/scoring"
	"auction-engine/internal/server"
	"auction-engine/internal/settlement"
	"auction-engine/internal/solver"
	"auction-engine/internal/storage"
	chstore "auction-engine/internal/storage/clickhouse"
	"auction-engine/internal/storage/memory"
	"auction-engine/internal/storage/migrations"
	pgstore "auction-engine/internal/storage/postgres"
	"auction-engine/internal/validation"
)

func main() {
	loadEnvFile()

	// Parse flags (env vars as defaults)
	solverSpecs := flag.String("solvers", os.Getenv("AUCTION_SOLVERS"), "Comma-separated solver specs: name|endpoint|account[|merge]")
	priceSpecs := flag.String("prices", os.Getenv("AUCTION_PRICES"), "Comma-separated reference prices: token=price")
	jitOwners := flag.String("jit-owners", os.Getenv("AUCTION_JIT_OWNERS"), "Comma-separated accounts eligible for just-in-time orders")
	allowedTargets := flag.String("allowed-targets", os.Getenv("AUCTION_ALLOWED_TARGETS"), "Comma-separated addresses interactions may call")
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("LEDGER_RPC_ENDPOINT"), "Ledger RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("LEDGER_WS_ENDPOINT"), "Ledger WebSocket endpoint for slot notifications (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional outcome analytics)")
	natsURL := flag.String("nats-url", os.Getenv("NATS_URL"), "NATS server URL (optional round events)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	listenAddr := flag.String("listen-addr", ":8080", "Order intake HTTP address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	roundInterval := flag.Duration("round-interval", 15*time.Second, "Auction round interval")
	solveDeadline := flag.Duration("solve-deadline", 10*time.Second, "Per-round solver deadline")
	mergeSolutions := flag.Bool("merge-solutions", false, "Merge non-conflicting solutions from merge-opted solvers")
	tolerance := flag.String("surplus-tolerance", "0", "Permitted negative implied surplus in reference units")
	defaultCost := flag.String("default-cost", "0", "Execution cost assumed when a solver reports none")
	retryCeiling := flag.Int("retry-ceiling", 3, "Submissions per settlement before giving up")
	confirmationSlots := flag.Int64("confirmation-slots", 32, "Slots a submission may stay unconfirmed")

	flag.Parse()

	log := observability.NewLogger("engine")

	if *solverSpecs == "" {
		log.Fatal().Msg("--solvers is required")
	}
	if *rpcEndpoint == "" {
		log.Fatal().Msg("--rpc-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		log.Fatal().Msg("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	specs, err := config.ParseSolvers(*solverSpecs)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid solver specs")
	}
	prices, err := config.ParsePrices(*priceSpecs)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid price specs")
	}
	toleranceDec, err := decimal.NewFromString(*tolerance)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid surplus tolerance")
	}
	defaultCostDec, err := decimal.NewFromString(*defaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid default cost")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	store, sink, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("create stores")
	}
	defer cleanup()

	// Round events (optional)
	var publisher *events.Publisher
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer nc.Close()
		js, err := jetstream.New(nc)
		if err != nil {
			log.Fatal().Err(err).Msg("create jetstream context")
		}
		if err := events.EnsureRoundStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure round stream")
		}
		publisher = events.NewPublisher(js, observability.NewLogger("events"))
	}

	// Solvers
	solvers := make([]solver.Solver, 0, len(specs))
	for _, s := range specs {
		solvers = append(solvers, solver.NewHTTPSolver(s.Name, s.Account, s.Endpoint, s.Merge))
		log.Info().Str("solver", s.Name).Str("endpoint", s.Endpoint).Bool("merge", s.Merge).Msg("registered solver")
	}

	metrics := observability.NewMetrics("")

	// Settlement
	var client ledger.Client = ledger.NewHTTPClient(*rpcEndpoint)
	if *wsEndpoint != "" {
		stream, err := ledger.NewSlotStream(ctx, *wsEndpoint, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("connect slot stream")
		}
		defer stream.Close()
		client = ledger.NewStreamedClient(client, stream.Slots())
		log.Info().Str("endpoint", *wsEndpoint).Msg("following slots over websocket")
	}
	execCfg := settlement.DefaultConfig()
	execCfg.RetryCeiling = *retryCeiling
	execCfg.ConfirmationSlots = *confirmationSlots
	executor := settlement.NewExecutor(client, execCfg, metrics, observability.NewLogger("settlement"))

	// Round loop
	pool := orderpool.New(1)
	validator := validation.New(config.ParseAddresses(*allowedTargets), toleranceDec)
	params := scoring.Params{DefaultCost: defaultCostDec}
	selector := scoring.NewSelector(params, *mergeSolutions)

	engineCfg := orchestrator.DefaultConfig()
	engineCfg.RoundInterval = *roundInterval
	engineCfg.SolveDeadline = *solveDeadline
	engineCfg.SurplusOwners = config.ParseAddresses(*jitOwners)

	engine := orchestrator.NewEngine(
		engineCfg, pool, solvers, validator, selector, params,
		executor, store, sink, publisher, metrics,
		orchestrator.StaticPrices(prices), observability.NewLogger("orchestrator"),
	)

	// Order intake API
	api := server.New(pool, store, observability.NewLogger("api"))
	go func() {
		log.Info().Str("addr", *listenAddr).Msg("order intake listening")
		if err := http.ListenAndServe(*listenAddr, api.Handler()); err != nil {
			log.Fatal().Err(err).Msg("intake server")
		}
	}()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintln(w, "ok")
		})
		log.Info().Str("addr", *metricsAddr).Msg("metrics listening")
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			log.Fatal().Err(err).Msg("metrics server")
		}
	}()

	// Shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if err := engine.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("engine stopped")
	}
	log.Info().Msg("shutdown complete")
}

// createStores wires the competition store and the optional outcome
// sink.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.CompetitionStore, storage.OutcomeSink, func(), error) {
	if useMemory {
		return memory.NewCompetitionStore(), nil, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}
	store := pgstore.NewCompetitionStore(pool)

	if clickhouseDSN == "" {
		return store, nil, pool.Close, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}
	sink := chstore.NewOutcomeSink(conn)

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return store, sink, cleanup, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
