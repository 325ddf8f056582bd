package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nstehr/vimy/vimy-terran/agent"
	"github.com/nstehr/vimy/vimy-terran/catalog"
	"github.com/nstehr/vimy/vimy-terran/config"
	"github.com/nstehr/vimy/vimy-terran/ipc"
	"github.com/nstehr/vimy/vimy-terran/journal"
	"github.com/nstehr/vimy/vimy-terran/telemetry"
)

const banner = `
██╗   ██╗██╗███╗   ███╗██╗   ██╗
██║   ██║██║████╗ ████║╚██╗ ██╔╝
██║   ██║██║██╔████╔██║ ╚████╔╝
╚██╗ ██╔╝██║██║╚██╔╝██║  ╚██╔╝
 ╚████╔╝ ██║██║ ╚═╝ ██║   ██║
  ╚═══╝  ╚═╝╚═╝     ╚═╝   ╚═╝

Terran Tactics Sidecar`

var version = "dev"

// server holds what every connection shares.
type server struct {
	deps      agent.Deps
	validator *ipc.Validator
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	socketPath := flag.String("socket", "", "unix socket path (overrides transport.socket)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *socketPath != "" {
		cfg.Transport.Kind = "unix"
		cfg.Transport.Socket = *socketPath
	}

	slog.SetDefault(newLogger(cfg.Log))
	fmt.Println(banner)
	slog.Info("starting vimy-terran", "version", version, "transport", cfg.Transport.Kind)

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		ServiceName:  "vimy-terran",
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.Load(cfg.Catalog.Path); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}

	var sink journal.Sink = journal.Nop{}
	if cfg.Journal.Enabled {
		if sink, err = journal.Open(cfg.Journal.Dir, cfg.Journal.SQLite, cfg.Journal.JSONL, cfg.Journal.Queue); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		slog.Info("journal enabled", "dir", cfg.Journal.Dir)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			slog.Warn("journal close", "error", err)
		}
	}()

	validator, err := ipc.NewValidator()
	if err != nil {
		return fmt.Errorf("schemas: %w", err)
	}

	srv := &server{
		deps: agent.Deps{
			Catalog: cat,
			Journal: sink,
			Metrics: metrics,
			Settings: agent.Settings{
				MineDrop:      cfg.MineDropSettings(),
				Reaper:        cfg.ReaperSettings(),
				WorkerDefense: cfg.WorkerDefenseSettings(),
				Scout:         cfg.ScoutSettings(),
				Army:          cfg.ArmySettings(),
				ScoutEnabled:  cfg.Scout.Enabled,
				Macro:         cfg.Macro.Enabled,
			},
			Log: slog.Default(),
		},
		validator: validator,
	}

	if cfg.Transport.Kind == "websocket" {
		return srv.dial(ctx, cfg.Transport.URL)
	}
	return srv.listen(ctx, cfg.Transport.Socket)
}

func (s *server) listen(ctx context.Context, socketPath string) error {
	// Unix sockets leave behind a file on unclean shutdown; remove it so we can rebind.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("clean up socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer os.Remove(socketPath)

	slog.Info("listening on domain socket", "path", socketPath)
	context.AfterFunc(ctx, func() { listener.Close() })

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Error("failed to accept connection", "error", err)
			continue
		}
		slog.Info("new connection accepted")
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, ipc.NewStreamTransport(conn))
		}()
	}

	slog.Info("shutting down")
	wg.Wait()
	return nil
}

func (s *server) dial(ctx context.Context, url string) error {
	t, err := ipc.DialWebSocket(ctx, url)
	if err != nil {
		return err
	}
	slog.Info("connected to bridge", "url", url)
	s.serve(ctx, t)
	slog.Info("shutting down")
	return nil
}

// serve runs one agent for one connection until it closes.
func (s *server) serve(ctx context.Context, t ipc.Transport) {
	a, err := agent.New(ctx, s.deps)
	if err != nil {
		slog.Error("failed to create agent", "error", err)
		t.Close()
		return
	}
	c := ipc.NewConnection(t, a.Handlers()).WithValidator(s.validator)
	c.RegisterHandler(ipc.TypeHello, func(env ipc.Envelope) (*ipc.Envelope, error) {
		resp, err := a.HandleHello(env)
		if err == nil {
			c.Player = a.Player
		}
		return resp, err
	})
	c.ReadLoop(ctx)
}
