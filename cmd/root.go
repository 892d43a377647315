package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asreview/prior/internal/workdir"
)

var (
	version string
	baseDir string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "prior",
	Short: "Prior-knowledge screening for systematic reviews",
	Long: `prior - pick prior knowledge for a systematic review from the terminal.

It shows one random unreviewed record at a time. Mark it relevant or
irrelevant; after a run of irrelevant records prior suggests you may be done.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initBaseDir)

	rootCmd.AddGroup(
		&cobra.Group{ID: "screening", Title: "Screening:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	rootCmd.PersistentFlags().String("dir", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().Bool("debug", false, "Log at debug level")
}

func initBaseDir() {
	dir, _ := rootCmd.PersistentFlags().GetString("dir")
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
			os.Exit(1)
		}
	}
	baseDir = workdir.ResolveBaseDir(dir)
}

// getBaseDir returns the base directory for the project
func getBaseDir() string {
	return baseDir
}
