// Package main runs the pool sniper: watcher, safety screen, entry
// executor, per-position exit monitors and the HTTP/websocket surface.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"solana-pool-sniper/internal/config"
	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/jupiter"
	"solana-pool-sniper/internal/monitor"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/position"
	"solana-pool-sniper/internal/safety"
	"solana-pool-sniper/internal/sniper"
	"solana-pool-sniper/internal/solana"
	"solana-pool-sniper/internal/storage"
	chstore "solana-pool-sniper/internal/storage/clickhouse"
	"solana-pool-sniper/internal/storage/memory"
	"solana-pool-sniper/internal/storage/migrations"
	pgstore "solana-pool-sniper/internal/storage/postgres"
	"solana-pool-sniper/internal/updates"
	"solana-pool-sniper/internal/wallet"
	"solana-pool-sniper/internal/watcher"
)

// DEX aliases mapped to program IDs.
var dexAliases = map[string]string{
	"raydium": solana.RaydiumAMMV4Program,
	"pumpfun": solana.PumpFunProgram,
}

// Server wires the pipeline together and serves the HTTP surface.
type Server struct {
	cfg      config.Config
	registry *position.Registry
	hub      *updates.Hub
	logger   *log.Logger

	mu            sync.Mutex
	startedAt     time.Time
	poolsSeen     int
	poolsPassed   int
	poolsRejected int
	entries       int
	entryFailures int
}

// registrarFunc adapts a closure to sniper.Registrar so the executor and
// registry can be built in either order.
type registrarFunc func(ctx context.Context, pos *domain.Position) error

func (f registrarFunc) Open(ctx context.Context, pos *domain.Position) error {
	return f(ctx, pos)
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	defaults := config.Default()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	jupiterURL := flag.String("jupiter-url", envOr("JUPITER_BASE_URL", defaults.JupiterBaseURL), "Jupiter API base URL")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	httpAddr := flag.String("http-addr", defaults.HTTPAddr, "HTTP listen address (health, metrics, status, ws)")
	programs := flag.String("programs", "", "Comma-separated DEX program IDs to watch")
	dex := flag.String("dex", "raydium,pumpfun", "Comma-separated DEX aliases (raydium, pumpfun)")

	entryLamports := flag.Uint64("entry-lamports", defaults.EntryAmountLamports, "Entry size per position in lamports")
	slippageBps := flag.Int("slippage-bps", defaults.SlippageBps, "Swap slippage tolerance in basis points")
	priorityFee := flag.Uint64("priority-fee", 0, "Priority fee per transaction in lamports")
	stopLossPct := flag.Float64("stop-loss-pct", defaults.StopLossPct, "Stop-loss drawdown percent")
	firstTarget := flag.Duration("first-target-window", defaults.MaxTimeToFirstTarget, "Max time to first tier fill before timeout exit")
	liquidityDropPct := flag.Float64("liquidity-drop-pct", defaults.LiquidityDropPct, "Pool liquidity drop percent treated as a rug")
	pollInterval := flag.Duration("poll-interval", defaults.PollInterval, "Program signature poll interval")
	tickInterval := flag.Duration("tick-interval", defaults.TickInterval, "Exit monitor tick interval")
	liquidityFloor := flag.Uint64("liquidity-floor", defaults.LiquidityFloorLamports, "Minimum initial pool liquidity in lamports")
	holderCeiling := flag.Float64("holder-ceiling-pct", defaults.HolderCeilingPct, "Max top-10 holder concentration percent")
	passThreshold := flag.Int("pass-threshold", defaults.PassThreshold, "Minimum safety score to enter")

	flag.Parse()

	logger := log.New(os.Stdout, "[sniper] ", log.LstdFlags|log.Lshortfile)

	cfg := defaults
	cfg.RPCEndpoint = *rpcEndpoint
	cfg.JupiterBaseURL = *jupiterURL
	cfg.PostgresDSN = *postgresDSN
	cfg.ClickHouseDSN = *clickhouseDSN
	cfg.UseMemory = *useMemory
	cfg.HTTPAddr = *httpAddr
	cfg.Programs = resolvePrograms(*programs, *dex)
	cfg.EntryAmountLamports = *entryLamports
	cfg.SlippageBps = *slippageBps
	cfg.PriorityFeeLamports = *priorityFee
	cfg.StopLossPct = *stopLossPct
	cfg.MaxTimeToFirstTarget = *firstTarget
	cfg.LiquidityDropPct = *liquidityDropPct
	cfg.PollInterval = *pollInterval
	cfg.TickInterval = *tickInterval
	cfg.LiquidityFloorLamports = *liquidityFloor
	cfg.HolderCeilingPct = *holderCeiling
	cfg.PassThreshold = *passThreshold

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	walletSecret := os.Getenv("SNIPER_WALLET_SECRET")
	if walletSecret == "" {
		logger.Fatal("SNIPER_WALLET_SECRET environment variable is required")
	}
	w, err := wallet.NewFromBase58(walletSecret)
	if err != nil {
		logger.Fatalf("Failed to load wallet: %v", err)
	}
	logger.Printf("Wallet: %s", w.Address())
	logger.Printf("Watching programs: %v", cfg.Programs)

	ctx, cancel := context.WithCancel(context.Background())

	positionStore, tickStore, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Components
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)
	jup := jupiter.NewClient(cfg.JupiterBaseURL)

	scorer := safety.New(safety.Options{
		RPC:                    rpc,
		LiquidityFloorLamports: cfg.LiquidityFloorLamports,
		PoolAgeFloorMs:         cfg.PoolAgeFloorMs,
		HolderCeilingPct:       cfg.HolderCeilingPct,
		PassThreshold:          cfg.PassThreshold,
		Logger:                 log.New(os.Stdout, "[safety] ", log.LstdFlags|log.Lshortfile),
	})

	var registry *position.Registry
	executor := sniper.New(sniper.Options{
		RPC:    rpc,
		Quoter: jup,
		Wallet: w,
		Registrar: registrarFunc(func(ctx context.Context, pos *domain.Position) error {
			return registry.Open(ctx, pos)
		}),
		EntryAmountLamports: cfg.EntryAmountLamports,
		SlippageBps:         cfg.SlippageBps,
		PriorityFeeLamports: cfg.PriorityFeeLamports,
		ConfirmTimeout:      cfg.ConfirmTimeout,
		Logger:              log.New(os.Stdout, "[entry] ", log.LstdFlags|log.Lshortfile),
	})

	registry = position.New(position.Options{
		Exit: monitor.Options{
			Trader:               executor,
			Ticks:                tickStore,
			TickInterval:         cfg.TickInterval,
			Tier1Multiplier:      cfg.Tier1Multiplier,
			Tier2Multiplier:      cfg.Tier2Multiplier,
			Tier3Multiplier:      cfg.Tier3Multiplier,
			StopLossPct:          cfg.StopLossPct,
			MaxTimeToFirstTarget: cfg.MaxTimeToFirstTarget,
			LiquidityDropPct:     cfg.LiquidityDropPct,
			Logger:               log.New(os.Stdout, "[exit] ", log.LstdFlags|log.Lshortfile),
		},
		Store:  positionStore,
		Logger: log.New(os.Stdout, "[positions] ", log.LstdFlags|log.Lshortfile),
	})

	poolWatcher := watcher.New(watcher.Options{
		RPC:          rpc,
		Programs:     cfg.Programs,
		PollInterval: cfg.PollInterval,
		Logger:       log.New(os.Stdout, "[watcher] ", log.LstdFlags|log.Lshortfile),
	})

	hub := updates.NewHub(updates.Options{
		Logger: log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lshortfile),
	})

	server := &Server{
		cfg:       cfg,
		registry:  registry,
		hub:       hub,
		logger:    logger,
		startedAt: time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(cfg.HTTPAddr)

	// Fan position updates out to websocket clients. The stream closes
	// when the registry shuts down.
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(context.Background(), registry.Updates())
	}()

	// Entry pipeline: watcher events through the safety screen into the
	// executor.
	pipelineDone := make(chan struct{})
	go func() {
		defer close(pipelineDone)
		server.runPipeline(ctx, poolWatcher, scorer, executor)
	}()

	err = poolWatcher.Run(ctx)

	// Watcher stopped: drain the pipeline, then retire the monitors.
	<-pipelineDone
	registry.Shutdown()
	<-hubDone

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Watcher error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// runPipeline consumes pool events until the watcher closes its channel.
func (s *Server) runPipeline(ctx context.Context, w *watcher.Watcher, scorer *safety.Scorer, executor *sniper.Executor) {
	for pool := range w.Events() {
		s.mu.Lock()
		s.poolsSeen++
		s.mu.Unlock()

		result, err := scorer.Evaluate(ctx, pool)
		if err != nil {
			s.logger.Printf("Safety check aborted for %s: %v", pool.BaseMint, err)
			continue
		}
		if !result.Passed {
			s.mu.Lock()
			s.poolsRejected++
			s.mu.Unlock()
			if result.RejectReason != "" {
				s.logger.Printf("Rejected %s: %s", pool.BaseMint, result.RejectReason)
			} else {
				s.logger.Printf("Rejected %s: score %d below threshold", pool.BaseMint, result.Score)
			}
			continue
		}

		s.mu.Lock()
		s.poolsPassed++
		s.mu.Unlock()
		s.logger.Printf("Pool %s passed safety with score %d, entering", pool.PoolAddress, result.Score)

		if _, err := executor.Enter(ctx, pool); err != nil {
			s.mu.Lock()
			s.entryFailures++
			s.mu.Unlock()
			s.logger.Printf("Entry failed for %s: %v", pool.BaseMint, err)
			continue
		}

		s.mu.Lock()
		s.entries++
		s.mu.Unlock()
	}
}

// resolvePrograms resolves program IDs from flags.
func resolvePrograms(programs, dex string) []string {
	result := make(map[string]bool)

	if programs != "" {
		for _, p := range strings.Split(programs, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				result[p] = true
			}
		}
	}

	if dex != "" {
		for _, alias := range strings.Split(dex, ",") {
			alias = strings.TrimSpace(strings.ToLower(alias))
			if programID, ok := dexAliases[alias]; ok {
				result[programID] = true
			}
		}
	}

	list := make([]string, 0, len(result))
	for p := range result {
		list = append(list, p)
	}
	return list
}

// createStores creates the position and tick stores, applying migrations
// for the database-backed pair.
func createStores(ctx context.Context, cfg config.Config) (storage.PositionStore, storage.TickStore, func(), error) {
	if cfg.UseMemory {
		return memory.NewPositionStore(), memory.NewTickStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return pgstore.NewPositionStore(pool), chstore.NewTickStore(chConn), cleanup, nil
}

// startHTTPServer starts the HTTP server for health/metrics/status/ws.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/ws", s.hub)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status          string            `json:"status"`
	Uptime          string            `json:"uptime"`
	PoolsSeen       int               `json:"pools_seen"`
	PoolsPassed     int               `json:"pools_passed"`
	PoolsRejected   int               `json:"pools_rejected"`
	Entries         int               `json:"entries"`
	EntryFailures   int               `json:"entry_failures"`
	ActivePositions []domain.Position `json:"active_positions"`
	ClosedPositions []domain.Position `json:"closed_positions"`
	Subscribers     int               `json:"subscribers"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(s.startedAt).String(),
		PoolsSeen:     s.poolsSeen,
		PoolsPassed:   s.poolsPassed,
		PoolsRejected: s.poolsRejected,
		Entries:       s.entries,
		EntryFailures: s.entryFailures,
	}
	s.mu.Unlock()

	resp.ActivePositions = s.registry.Active()
	resp.ClosedPositions = s.registry.History()
	resp.Subscribers = s.hub.ClientCount()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// envOr returns the environment variable value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
