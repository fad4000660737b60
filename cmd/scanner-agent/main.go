package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hst-srl/matafuegos-sync/internal/agent/client"
	"github.com/hst-srl/matafuegos-sync/internal/agent/connectivity"
	"github.com/hst-srl/matafuegos-sync/internal/agent/store"
	agentsync "github.com/hst-srl/matafuegos-sync/internal/agent/sync"
	"github.com/hst-srl/matafuegos-sync/internal/config"
	domain "github.com/hst-srl/matafuegos-sync/internal/domain/extinguishers"
	"github.com/hst-srl/matafuegos-sync/internal/logger"
)

// scanner-agent reads decoded QR payloads from stdin, one per line, and keeps
// the local queue in sync with the backend. Lines starting with "/" are
// commands: /orden, /sync, /stats, /clear, /quit.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format, "scanner-agent")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer zlog.Sync()

	st, err := store.Open(cfg.Agent.DBPath)
	if err != nil {
		zlog.Fatal("failed to open local store", zap.String("path", cfg.Agent.DBPath), zap.Error(err))
	}
	defer st.Close()

	gate, err := connectivity.NewProbeGate(cfg.Agent.ServerBaseURL, cfg.Agent.Timeout)
	if err != nil {
		zlog.Fatal("invalid server base URL", zap.String("url", cfg.Agent.ServerBaseURL), zap.Error(err))
	}

	cl := client.New(cfg.Agent.ServerBaseURL, cfg.Agent.Timeout, cfg.Agent.Origin)
	engine := agentsync.New(st, cl, gate, zlog, cfg.Agent.MaxAttempts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// periodic drain; the engine skips the pass if one is already running
	go func() {
		ticker := time.NewTicker(cfg.Agent.DrainInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !gate.Online() {
					continue
				}
				res := engine.DrainPending(ctx)
				if res.Total() > 0 {
					fmt.Printf("sincronizacion: %d enviados, %d fallidos\n", res.Sent, res.Failed)
				}
			}
		}
	}()

	zlog.Info("scanner agent ready",
		zap.String("server", cfg.Agent.ServerBaseURL),
		zap.String("db", cfg.Agent.DBPath))

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- strings.TrimSpace(sc.Text())
		}
		close(lines)
	}()

	// scans submitted while an order session is open carry its tag
	var nroOrden string
	for {
		select {
		case <-ctx.Done():
			zlog.Info("shutting down")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := runCommand(ctx, engine, line, &nroOrden); quit {
					return
				}
				continue
			}
			handleScan(ctx, engine, line, nroOrden)
		}
	}
}

func handleScan(ctx context.Context, engine *agentsync.Engine, payload, nroOrden string) {
	url, err := domain.Canonicalize(payload)
	if err != nil {
		fmt.Println("QR no reconocido, debe ser una estampilla AGC")
		return
	}

	out := engine.Submit(ctx, url, nroOrden)
	switch out.Kind {
	case agentsync.OutcomeSent:
		fmt.Println("Enviado:", out.Message)
	case agentsync.OutcomeSavedOffline:
		fmt.Println("Sin conexion:", out.Message)
	case agentsync.OutcomeAlreadyPending:
		fmt.Println(out.Message)
	case agentsync.OutcomeReScanned:
		fmt.Println("Re-escaneo registrado:", out.Message)
	case agentsync.OutcomeFailed:
		fmt.Println("Error:", out.Message)
	}
}

func runCommand(ctx context.Context, engine *agentsync.Engine, line string, nroOrden *string) (quit bool) {
	switch fields := strings.Fields(line); fields[0] {
	case "/orden":
		if len(fields) < 2 {
			*nroOrden = ""
			fmt.Println("Orden de trabajo cerrada")
			return false
		}
		*nroOrden = fields[1]
		fmt.Printf("Escaneando para la orden %s\n", *nroOrden)
	case "/sync":
		res := engine.DrainPending(ctx)
		fmt.Printf("sincronizacion: %d enviados, %d fallidos\n", res.Sent, res.Failed)
		if res.LastError != "" {
			fmt.Println("ultimo error:", res.LastError)
		}
	case "/stats":
		st, err := engine.Stats(ctx)
		if err != nil {
			fmt.Println("Error:", err)
			return false
		}
		fmt.Printf("pendientes: %d, enviados: %d, total: %d\n", st.Pending, st.Sent, st.Total)
	case "/clear":
		if err := engine.ClearLocalHistory(ctx); err != nil {
			fmt.Println("Error:", err)
			return false
		}
		fmt.Println("Historial local eliminado")
	case "/quit":
		return true
	default:
		fmt.Println("comandos: /orden [nro] /sync /stats /clear /quit")
	}
	return false
}
