package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user-api/internal/api/router"
	"user-api/internal/config"
	"user-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	port    string
	storage string
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server serving the /api/users resource together with
the /health, /ready and /live probes.`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port for the server to listen on")
	serverCmd.Flags().StringVar(&storage, "storage", "", "Storage backend override (memory or postgres)")
}

func startServer(cmd *cobra.Command) {
	cfg := config.Get()

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if storage != "" {
		cfg.Storage.Driver = storage
		if err := cfg.Validate(); err != nil {
			logger.Fatal("Invalid configuration: %v", err)
		}
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	components, err := router.NewRouterFromConfig(cfg)
	if err != nil {
		logger.Fatal("Failed to build router: %v", err)
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("Failed to release resources: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:           net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:        components.Router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Info("Starting %s on %s (storage: %s)", cfg.App.Name, srv.Addr, cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
		return
	}

	logger.Info("Server exited")
}
