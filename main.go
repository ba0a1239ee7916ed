package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foomo/notion-mcp/config"
	"github.com/foomo/notion-mcp/mcp"
	"github.com/foomo/notion-mcp/notion"
	"github.com/foomo/notion-mcp/service"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version = "dev"
	commit  = "none"
)

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	service  service.Service
	server   *server.MCPServer
}

func main() {
	var (
		stdioMode bool
		httpAddr  string
	)

	rootCmd := &cobra.Command{
		Use:          "notion-mcp",
		Short:        "MCP server for a Notion workspace",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck
			if httpAddr != "" {
				return a.serveHTTP(cmd.Context(), httpAddr)
			}
			if stdioMode {
				a.logger.Info("starting MCP server in stdio mode")
			} else {
				a.logger.Info("starting MCP server in stdio mode (default)")
			}
			return server.ServeStdio(a.server)
		},
	}
	rootCmd.Flags().BoolVar(&stdioMode, "stdio", true, "Run in stdio mode")
	rootCmd.Flags().StringVar(&httpAddr, "http", "", "HTTP server address (e.g., ':8080')")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve MCP, the JSON API and metrics over HTTP on MCP_PORT",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck
			return a.serveHTTP(cmd.Context(), a.cfg.Addr())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the Notion API key and connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			_ = a.logger.Sync()
			fmt.Fprintln(cmd.OutOrStdout(), "notion connection ok")
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "notion-mcp %s (%s, mcp %s)\n", version, commit, mcp.Version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = atomicLevel
	// stdout belongs to the stdio transport
	zapConfig.OutputPaths = []string{"stderr"}
	return zapConfig.Build()
}

// newApp wires one shared notion client into the service and the MCP server
// and checks the connection before anything is served.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := notion.New(cfg.NotionAPIKey,
		notion.ClientWithHTTPClient(&http.Client{Timeout: cfg.NotionTimeout}),
		notion.ClientWithBaseURL(cfg.NotionBaseURL),
		notion.ClientWithVersion(cfg.NotionVersion),
		notion.ClientWithLogger(logger.Named("notion")),
		notion.ClientWithMetrics(notion.NewMetrics(registry)),
		notion.ClientWithRetry(cfg.RetryAttempts, 500*time.Millisecond),
	)
	if err := client.ValidateConnection(ctx); err != nil {
		logger.Error("could not connect to notion, check the api key and your connection", zap.Error(err))
		return nil, err
	}
	logger.Info("notion connection validated")

	serviceInstance := service.NewService(logger.Named("service"), client, service.Settings{
		EntityDatabaseID: cfg.EntityDatabaseID,
	})
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		service:  serviceInstance,
		server:   mcp.NewServer(logger.Named("mcp"), serviceInstance),
	}, nil
}

func (a *app) serveHTTP(ctx context.Context, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mcp.NewMcpHTTPAPIServer(a.logger.Named("http"), a.server, a.service, a.cfg.Endpoint, a.registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		a.logger.Info("starting MCP server on HTTP", zap.String("addr", addr), zap.String("endpoint", a.cfg.Endpoint))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		a.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
