package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/asreview/prior/internal/config"
	"github.com/asreview/prior/internal/models"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write .prior/config.json",
	Long: `Create or update .prior/config.json. In a terminal a short form asks for
each setting; flags pre-fill the form, and --no-input saves them directly.`,
	GroupID: "system",
	RunE:    runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	addClientFlags(initCmd.Flags())
	initCmd.Flags().Bool("no-input", false, "Save flag values without prompting")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := getBaseDir()
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyInitFlags(cmd, cfg)

	noInput, _ := cmd.Flags().GetBool("no-input")
	if !noInput && term.IsTerminal(int(os.Stdin.Fd())) {
		if err := initForm(cfg).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return err
	}
	if err := config.Save(dir, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", config.Path(dir))
	return nil
}

func applyInitFlags(cmd *cobra.Command, cfg *models.Config) {
	fs := cmd.Flags()
	if f := fs.Lookup("api"); f.Changed {
		cfg.APIBase = f.Value.String()
	}
	if f := fs.Lookup("project"); f.Changed {
		cfg.ProjectID = f.Value.String()
	}
	if f := fs.Lookup("token"); f.Changed {
		cfg.Token = f.Value.String()
	}
	if f := fs.Lookup("limit"); f.Changed {
		cfg.ExclusionLimit, _ = fs.GetInt("limit")
	}
}

func initForm(cfg *models.Config) *huh.Form {
	if cfg.APIBase == "" {
		cfg.APIBase = config.DefaultAPIBase
	}
	limit := ""
	if cfg.ExclusionLimit > 0 {
		limit = strconv.Itoa(cfg.ExclusionLimit)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Description("Where the review backend serves /project/{id}/prior_random").
				Value(&cfg.APIBase).
				Validate(validateAPIBase),
			huh.NewInput().
				Title("Project ID").
				Description("Leave empty to pick a project when the dialog opens").
				Value(&cfg.ProjectID),
			huh.NewInput().
				Title("Irrelevant limit").
				Description(fmt.Sprintf("Irrelevant decisions before suggesting you stop (default %d)", config.DefaultExclusionLimit)).
				Value(&limit).
				Validate(func(s string) error {
					n, err := parseLimit(s)
					if err != nil {
						return err
					}
					cfg.ExclusionLimit = n
					return nil
				}),
			huh.NewInput().
				Title("API token").
				Description("Optional bearer token").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Token),
		),
	)
}

func validateAPIBase(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", s)
	}
	return nil
}

// parseLimit accepts an empty string as "use the default"
func parseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive number")
	}
	return n, nil
}

func validateConfig(cfg *models.Config) error {
	if err := validateAPIBase(cfg.APIBase); err != nil {
		return err
	}
	if cfg.ExclusionLimit < 0 {
		return fmt.Errorf("limit must be a positive number")
	}
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	cfg.ProjectID = strings.TrimSpace(cfg.ProjectID)
	return nil
}
