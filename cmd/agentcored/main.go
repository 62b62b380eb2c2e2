// Command agentcored runs the agent execution core's HTTP server:
// session/ticket/SSH-node APIs backed by the Task Runner, Plan–Act
// Flow, Tool Dispatch Layer and Session/Event Store (spec §2, §6). It
// replaces the teacher's orchestrator entrypoint (cmd/tarsy) with one
// wiring this repository's own domain, keeping the teacher's
// flag/.env/gin bootstrap shape (cmd/tarsy/main.go).
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/opsforge/agentcore/pkg/config"
	"github.com/opsforge/agentcore/pkg/coordinator"
	"github.com/opsforge/agentcore/pkg/events"
	"github.com/opsforge/agentcore/pkg/filestore"
	"github.com/opsforge/agentcore/pkg/httpapi"
	"github.com/opsforge/agentcore/pkg/llm"
	"github.com/opsforge/agentcore/pkg/mcp"
	"github.com/opsforge/agentcore/pkg/runner"
	"github.com/opsforge/agentcore/pkg/sshnode"
	"github.com/opsforge/agentcore/pkg/store"
	"github.com/opsforge/agentcore/pkg/stream"
	"github.com/opsforge/agentcore/pkg/ticketsvc"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	log := slog.Default()

	envPath := filepath.Join(*configDir, ".env")
	cfg, err := config.Load(envPath)
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		log.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := store.Migrate(cfg.Storage.PostgresDSN, getEnv("MIGRATIONS_DIR", "pkg/store/migrations")); err != nil {
		log.Error("run migrations", "error", err)
		os.Exit(1)
	}

	sessions := store.NewSessionRepository(pool)
	agents := store.NewAgentRepository(pool)
	tickets := store.NewTicketRepository(pool)
	sshNodes := store.NewSSHNodeRepository(pool)
	sshApprovals := store.NewSSHApprovalRepository(pool)
	sshLogs := store.NewSSHOperationLogRepository(pool)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisAddr(),
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
	defer rdb.Close()

	files, err := filestore.New(cfg.Storage.FileStoragePath)
	if err != nil {
		log.Error("init file storage", "error", err)
		os.Exit(1)
	}

	llmClient, err := llm.NewAnthropicClient(cfg.LLM.APIKey, cfg.LLM.ModelName)
	if err != nil {
		log.Error("init llm client", "error", err)
		os.Exit(1)
	}

	mcpRegistry, err := config.NewMCPServerRegistryFromFile(cfg.MCP.ConfigPath)
	if err != nil {
		log.Error("load mcp registry", "error", err)
		os.Exit(1)
	}
	mcpFactory := mcp.NewClientFactory(mcpRegistry)
	mcpServerIDs := make([]string, 0, len(mcpRegistry.GetAll()))
	for id := range mcpRegistry.GetAll() {
		mcpServerIDs = append(mcpServerIDs, id)
	}

	catchup := events.NewStreamCatchupQuerier(func(channel string) *stream.Queue {
		sessionID := strings.TrimPrefix(channel, "session:")
		if sessionID == channel {
			return nil
		}
		return stream.New(rdb, stream.OutputStream(sessionID))
	})
	connManager := events.NewConnectionManager(catchup, 10*time.Second)
	broadcaster := events.NewBroadcaster(connManager)

	sshService := sshnode.NewService(sshNodes, sshLogs, sshApprovals, sessions, sshnode.NewSSHRunner())

	factory := &runnerFactory{
		cfg:          cfg,
		sessions:     sessions,
		agents:       agents,
		tickets:      tickets,
		sshnodes:     sshService,
		files:        files,
		llmClient:    llmClient,
		mcpFactory:   mcpFactory,
		mcpRegistry:  mcpRegistry,
		mcpServerIDs: mcpServerIDs,
		rdb:          rdb,
		broadcaster:  broadcaster,
		dockerHost:   cfg.Sandbox.Address,
	}

	coord := coordinator.New(sessions, agents, &sessionStreams{rdb: rdb}, factory, runner.NewRegistry(), newAgentDefaults(cfg))
	dispatcher := ticketsvc.New(tickets, coord)

	api := httpapi.New(coord, dispatcher, sshService)
	server := &http.Server{Addr: ":" + httpPort, Handler: api.Handler()}

	go func() {
		log.Info("agentcored listening", "port", httpPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", "error", err)
	}
}
