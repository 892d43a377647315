package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/asreview/prior/internal/config"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Short:   "List projects available from the API",
	GroupID: "screening",
	RunE:    runProjects,
}

var useCmd = &cobra.Command{
	Use:     "use PROJECT_ID",
	Short:   "Set the configured project",
	GroupID: "screening",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetProject(getBaseDir(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Current project: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(useCmd)
	addClientFlags(projectsCmd.Flags())
}

func runProjects(cmd *cobra.Command, args []string) error {
	dir := getBaseDir()
	cfg, err := resolveSettings(cmd.Flags(), dir)
	if err != nil {
		return err
	}

	projects, err := newClient(cfg).Projects(cmd.Context())
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	if len(projects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, p := range projects {
		marker := " "
		if p.ID == cfg.ProjectID {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\n", marker, p.ID, p.Name)
	}
	return tw.Flush()
}
