package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/asreview/prior/internal/config"
	"github.com/asreview/prior/internal/db"
)

var importCmd = &cobra.Command{
	Use:   "import FILE.csv",
	Short: "Import records from a CSV file into a local project",
	Long: `Import records into the local database served by 'prior serve'.

The CSV needs a title column; abstract and authors are optional. Common
export headers (primary_title, abstract_note, ti, ab, au) are recognised.
The project is created when it does not exist yet.`,
	Example: `  prior import records.csv --name "Depression screening"`,
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("name", "n", "", "Project name (default: file name without extension)")
	importCmd.Flags().Bool("use", true, "Make the project the configured project when none is set")
}

func runImport(cmd *cobra.Command, args []string) error {
	dir := getBaseDir()
	path := args[0]

	name, _ := cmd.Flags().GetString("name")
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	database, err := db.Initialize(dir)
	if err != nil {
		return err
	}
	defer database.Close()

	project, err := database.EnsureProject(name)
	if err != nil {
		return fmt.Errorf("project %q: %w", name, err)
	}

	n, err := database.ImportCSV(project.ID, f)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	total, unlabeled, err := database.CountRecords(project.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %s records into %s (%s)\n",
		humanize.Comma(int64(n)), project.Name, project.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  %s records, %s unlabelled\n",
		humanize.Comma(int64(total)), humanize.Comma(int64(unlabeled)))

	if use, _ := cmd.Flags().GetBool("use"); use {
		current, err := config.GetProject(dir)
		if err != nil {
			return err
		}
		if current == "" {
			if err := config.SetProject(dir, project.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  configured as the current project\n")
		}
	}
	return nil
}
