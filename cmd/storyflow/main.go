// Command storyflow plays a compiled story program in the terminal.
//
// Usage:
//
//	storyflow -program story.hcl [-resume] [-load slot] [-save slot]
//
// Settings not given as flags come from the environment (see
// internal/config); a .env file in the working directory is read first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/storyflow/flow"
	"github.com/dshills/storyflow/flow/emit"
	"github.com/dshills/storyflow/flow/loader"
	"github.com/dshills/storyflow/flow/script"
	"github.com/dshills/storyflow/flow/store"
	"github.com/dshills/storyflow/internal/config"
	"github.com/dshills/storyflow/internal/console"
	"github.com/dshills/storyflow/internal/ctxlog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storyflow:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	program := flag.String("program", cfg.Program, "compiled program (.json, .yaml, .hcl)")
	resume := flag.Bool("resume", false, "resume the session's latest autosave")
	loadSlot := flag.String("load", "", "resume from a named save slot")
	saveSlot := flag.String("save", "", "write a named save slot on exit")
	flag.Parse()

	if *program == "" {
		return errors.New("no program: pass -program or set STORYFLOW_PROGRAM")
	}

	logger := cfg.Logger(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	prog, err := loader.LoadFile(*program)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var metrics *flow.PrometheusMetrics
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics = flow.NewPrometheusMetrics(registry)
		srv := serveMetrics(cfg.MetricsAddr, registry, logger)
		defer func() { _ = srv.Shutdown(context.Background()) }()
	}

	scope := script.NewLuaScope()
	con := console.New(os.Stdin, os.Stdout, scope, logger)
	reg := flow.NewRegistry()
	if err := con.Register(reg); err != nil {
		return err
	}
	reg.Init()

	var emitter emit.Emitter = emit.NewNullEmitter()
	if cfg.LogLevel == "debug" {
		emitter = emit.NewLogEmitter(os.Stderr, cfg.LogFormat == "json")
	}

	opts := []flow.Option{
		flow.WithEvaluator(scope),
		flow.WithStore(st),
		flow.WithSession(cfg.Session),
		flow.WithAutosave(true),
		flow.WithMaxIterations(cfg.MaxIterations),
		flow.WithWaypoints(append(cfg.Waypoints, prog.Waypoints...)...),
		flow.WithEmitter(emitter),
	}
	if cfg.Seed != "" {
		opts = append(opts, flow.WithSeed(cfg.Seed))
	}
	if metrics != nil {
		opts = append(opts, flow.WithMetrics(metrics))
	}

	interp, err := flow.New(prog.Graph(), reg, con.Game(), opts...)
	if err != nil {
		return err
	}
	defer interp.Close()
	con.Attach(interp)

	switch {
	case *loadSlot != "":
		err = interp.LoadSlot(ctx, *loadSlot)
	case *resume:
		err = interp.ResumeLatest(ctx)
	default:
		first, _ := prog.Graph().First()
		loc, _ := interp.Location(first, 0)
		err = interp.Start(ctx, loc)
	}
	if err != nil {
		return err
	}

	play(ctx, interp, con, cfg.Tick)

	if *saveSlot != "" {
		if err := interp.SaveSlot(context.WithoutCancel(ctx), *saveSlot); err != nil {
			return err
		}
		logger.Info("saved", "slot", *saveSlot, "checkpoint", interp.Checkpoint())
	}
	return nil
}

// play ticks the interpreter until the story ends, input runs out while a
// choice is pending, or ctx is cancelled.
func play(ctx context.Context, interp *flow.Interpreter, con *console.Console, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for interp.Running() {
		if con.InputClosed() && con.AwaitingInput() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			interp.Update(now.Sub(last))
			last = now
		}
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store[flow.SaveData], func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		st, err := store.NewSQLiteStore[flow.SaveData](cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case config.StoreMySQL:
		st, err := store.NewMySQLStore[flow.SaveData](cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case config.StoreRedis:
		st, err := store.NewRedisStore[flow.SaveData](ctx, cfg.StoreDSN, cfg.StoreTTL)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return store.NewMemStore[flow.SaveData](), func() {}, nil
	}
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}
