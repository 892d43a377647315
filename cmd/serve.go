package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/asreview/prior/internal/db"
	"github.com/asreview/prior/internal/serve"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve local projects over the prior-knowledge API",
	Long: `Start an HTTP server that exposes projects imported with 'prior import'
over the same endpoints the screening dialog uses:

  GET  /api/projects
  GET  /api/project/{id}/prior_random
  POST /api/project/{id}/labelitem
  GET  /api/project/{id}/prior_stats

If --port is 0 (the default), a random available port is assigned.
The API base URL is registered in .prior/serve.json while the server runs,
where 'prior screen' finds it when no API base is configured.`,
	GroupID: "system",
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (0 = auto-assign)")
	serveCmd.Flags().StringP("addr", "a", "localhost", "Address to bind to")
	serveCmd.Flags().String("token", "", "Bearer token for authentication (optional)")
	serveCmd.Flags().String("cors", "", "Allowed CORS origin (optional, e.g. http://localhost:3000)")
	serveCmd.Flags().Float64("rate", 0, "Requests per second allowed per client (0 = unlimited)")
	serveCmd.Flags().Int("burst", 10, "Burst size for --rate")
}

func runServe(cmd *cobra.Command, args []string) error {
	dir := getBaseDir()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cmd),
	})))

	database, err := db.Open(dir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	// Limit connections for long-running server process
	database.SetMaxOpenConns(1)

	port, _ := cmd.Flags().GetInt("port")
	addr, _ := cmd.Flags().GetString("addr")
	token, _ := cmd.Flags().GetString("token")
	cors, _ := cmd.Flags().GetString("cors")
	rps, _ := cmd.Flags().GetFloat64("rate")
	burst, _ := cmd.Flags().GetInt("burst")

	srv := serve.NewServer(database, serve.ServeConfig{
		Port:       port,
		Addr:       addr,
		Token:      token,
		CORSOrigin: cors,
		RateLimit:  rps,
		RateBurst:  burst,
	})

	listenAddr := fmt.Sprintf("%s:%d", addr, port)
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}
	apiBase := serve.BaseURL(ln.Addr())
	release, err := serve.Register(dir, serve.Registration{
		APIBase: apiBase,
		Auth:    token != "",
	})
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := release(); err != nil {
			slog.Warn("release registration", "err", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "prior serve listening on %s\n", apiBase)
	fmt.Fprintf(os.Stderr, "  base dir:   %s\n", dir)
	fmt.Fprintf(os.Stderr, "  database:   %s\n", db.Path(dir))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			slog.Info("received signal, shutting down")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Fprintf(os.Stderr, "prior serve stopped\n")
	return nil
}
