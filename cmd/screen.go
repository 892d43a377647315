package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/asreview/prior/internal/config"
	"github.com/asreview/prior/internal/models"
	"github.com/asreview/prior/internal/outbox"
	"github.com/asreview/prior/pkg/screen"
)

const outboxFile = "outbox.db"

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Open the prior-knowledge screening dialog",
	Long: `Open the screening dialog for the configured project.

Decisions are written to .prior/outbox.db first and delivered to the API in
the background, so a flaky connection never loses a label. Use --direct to
send each decision straight to the API instead.

Without a project the dialog starts with a project picker.`,
	GroupID: "screening",
	RunE:    runScreen,
}

func init() {
	rootCmd.AddCommand(screenCmd)
	addClientFlags(screenCmd.Flags())
	screenCmd.Flags().Bool("direct", false, "Send decisions directly instead of through the outbox")
	screenCmd.Flags().Bool("remember", true, "Save the project picked in the dialog to the config")
}

func runScreen(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("prior screen needs an interactive terminal")
	}

	dir := getBaseDir()
	cfg, err := resolveSettings(cmd.Flags(), dir)
	if err != nil {
		return err
	}

	logger, logFile, err := openLogFile(dir, "prior.log", logLevel(cmd))
	if err != nil {
		return err
	}
	defer logFile.Close()

	client := newClient(cfg)
	logger.Info("screen start", "api", client.Base(), "project", cfg.ProjectID, "limit", cfg.ExclusionLimit)

	var (
		program    *tea.Program
		dispatcher *outbox.Dispatcher
	)
	if direct, _ := cmd.Flags().GetBool("direct"); !direct {
		queue, err := outbox.Open(config.StatePath(dir, outboxFile))
		if err != nil {
			return fmt.Errorf("open outbox: %w", err)
		}
		defer queue.Close()
		dispatcher = outbox.NewDispatcher(queue, client,
			outbox.WithLogger(logger),
			outbox.WithOnSent(func(d models.Decision) {
				// Send returns immediately once the program has exited
				program.Send(screen.DeliveredMsg{Decision: d})
			}),
		)
	}

	remember, _ := cmd.Flags().GetBool("remember")
	var model *screen.Model
	model = screen.New(cfg.ProjectID, client, client,
		screen.WithQueue(queueLabeler(dispatcher)),
		screen.WithStats(client),
		screen.WithProjects(client),
		screen.WithLogger(logger),
		screen.WithExclusionLimit(cfg.ExclusionLimit),
		screen.WithOnClose(func() {
			picked := model.Session().ProjectID()
			if !remember || picked == "" || picked == cfg.ProjectID {
				return
			}
			if err := config.SetProject(dir, picked); err != nil {
				logger.Warn("save project", "err", err)
			}
		}),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))

	if dispatcher != nil {
		g.Go(func() error { return dispatcher.Run(gctx) })
	}
	g.Go(func() error {
		// the dispatcher stops with the dialog
		defer stop()
		_, err := program.Run()
		if err != nil && gctx.Err() != nil {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("screen", "err", err)
		return err
	}

	if dispatcher != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if n, err := dispatcher.Flush(flushCtx); err != nil {
			logger.Warn("final flush", "err", err, "sent", n)
			fmt.Fprintln(os.Stderr, "Some decisions are still queued; run 'prior sync' to deliver them.")
		}
	}
	logger.Info("screen stop",
		"project", model.Session().ProjectID(),
		"inclusions", model.Session().Inclusions(),
		"exclusions", model.Session().Exclusions(),
	)
	return nil
}

// queueLabeler returns d as a screen.Labeler, or nil in --direct mode so the
// dialog keeps its direct labeler.
func queueLabeler(d *outbox.Dispatcher) screen.Labeler {
	if d == nil {
		return nil
	}
	return d
}
