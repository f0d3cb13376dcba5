package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/api"
	"github.com/CodeMonkeyCybersecurity/pantest/internal/ratelimit"
)

func newServerCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Routes:
  GET  /health
  GET  /api/v1/tools[?category=Network]
  GET  /api/v1/tools/:id
  POST /api/v1/tools/:id/run   (body: JSON object of parameters)
  GET  /api/v1/session

Example:
  pantest server --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "host to bind to")
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.Server.Port <= 0 || a.cfg.Server.Port > 65535 {
		return usageErr("invalid port %d", a.cfg.Server.Port)
	}
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := ratelimit.NewKeyed(a.cfg.Server.RateLimit, a.cfg.Server.Burst)
	router := api.NewServer(a.dispatcher, limiter, version).Router()

	addr := net.JoinHostPort(a.cfg.Server.Host, strconv.Itoa(a.cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log := a.log.WithComponent("api-server")

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Prune(10 * time.Minute); n > 0 {
					log.Debugw("Pruned idle rate limit buckets", "removed", n)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	color.New(color.FgCyan).Fprintf(a.stderr, "API listening on http://%s\n", addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return internalErr(fmt.Errorf("server failed: %w", err))
		}
		return nil
	case <-ctx.Done():
		log.Infow("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Server shutdown failed", "error", err)
		}
		return nil
	}
}
