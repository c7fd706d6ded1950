package main

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/policylocaliser/internal/config"
	"github.com/Lllllllleong/policylocaliser/internal/pipeline"
	"github.com/Lllllllleong/policylocaliser/internal/services"
	"github.com/Lllllllleong/policylocaliser/internal/sharing"
)

type filterFlags struct {
	schools  []string
	policies []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.schools, "school", nil, "only process this school code (repeatable)")
	cmd.Flags().StringArrayVar(&f.policies, "policy", nil, "only process this policy name, without extension (repeatable)")
}

func (f *filterFlags) filter() pipeline.Filter {
	return pipeline.Filter{Schools: f.schools, Templates: f.policies}
}

func newLocalCmd() *cobra.Command {
	var (
		filters                           filterFlags
		templates, logos, output, schools string
		logDB                             string
	)

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Localise templates from local directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.StorageBackend = config.BackendLocal
			cfg.RecordSource = config.SourceFile
			cfg.LogSinks = []string{config.SinkStdout}
			if templates != "" {
				cfg.Local.TemplateDir = templates
			}
			if logos != "" {
				cfg.Local.LogoDir = logos
			}
			if output != "" {
				cfg.Local.OutputDir = output
			}
			if schools != "" {
				cfg.Local.SchoolsFile = schools
			}
			if logDB != "" {
				cfg.SQLiteLogPath = logDB
				cfg.LogSinks = append(cfg.LogSinks, config.SinkSQLite)
			}
			return run(cmd, cfg, filters.filter(), nil)
		},
	}
	cmd.Flags().StringVar(&templates, "templates", "", "directory of .docx templates (default $LOCAL_TEMPLATE_DIR)")
	cmd.Flags().StringVar(&logos, "logos", "", "directory of <SchoolCode>.png logos (default $LOCAL_LOGO_DIR)")
	cmd.Flags().StringVar(&output, "output", "", "output directory (default $LOCAL_OUTPUT_DIR)")
	cmd.Flags().StringVar(&schools, "schools-json", "", "JSON or YAML file of school records (default $LOCAL_SCHOOLS_FILE)")
	cmd.Flags().StringVar(&logDB, "log-db", "", "also record results in this SQLite database")
	filters.register(cmd)
	return cmd
}

type shareOptions struct {
	share         bool
	scope         string
	invite        bool
	role          string
	inviteMessage string
}

func newRemoteCmd() *cobra.Command {
	var (
		filters filterFlags
		opts    shareOptions
		envFile string
	)

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Localise templates held in the configured remote storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotenv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyRemoteDefaults(&cfg)
			if !cmd.Flags().Changed("share-scope") {
				opts.scope = cfg.ShareScope
			}
			return run(cmd, cfg, filters.filter(), &opts)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Flags().BoolVar(&opts.share, "share", false, "create a view link for each school's output folder")
	cmd.Flags().StringVar(&opts.scope, "share-scope", sharing.ScopeOrganization, "link scope: organization or anonymous")
	cmd.Flags().BoolVar(&opts.invite, "invite", false, "invite each school's email address to its output folder")
	cmd.Flags().StringVar(&opts.role, "invite-role", sharing.RoleRead, "invitation role: read or write")
	cmd.Flags().StringVar(&opts.inviteMessage, "invite-message", "", "send an invitation email with this message")
	filters.register(cmd)
	return cmd
}

// applyRemoteDefaults points unset selections at SharePoint.
func applyRemoteDefaults(cfg *config.Config) {
	if _, ok := os.LookupEnv("STORAGE_BACKEND"); !ok {
		cfg.StorageBackend = config.BackendSharePoint
	}
	if _, ok := os.LookupEnv("RECORD_SOURCE"); !ok {
		cfg.RecordSource = config.SourceSharePoint
	}
	if _, ok := os.LookupEnv("LOG_SINKS"); !ok {
		cfg.LogSinks = []string{config.SinkStdout, config.SinkSharePoint}
	}
	if !slices.Contains(cfg.LogSinks, config.SinkStdout) {
		cfg.LogSinks = append([]string{config.SinkStdout}, cfg.LogSinks...)
	}
}

// run returns an error only when the run could not start or failed
// validation. Failed pairs are shown in the results table.
func run(cmd *cobra.Command, cfg config.Config, filter pipeline.Filter, opts *shareOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	localiser, err := services.NewLocaliser(ctx, cfg, out, slog.Default())
	if err != nil {
		return err
	}
	defer localiser.Close()

	if _, err := localiser.Run(ctx, filter); err != nil {
		return err
	}
	if opts == nil {
		return nil
	}

	if opts.share {
		links, err := localiser.Share(ctx, filter.Schools, opts.scope)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nShared folders:")
		for _, code := range sortedKeys(links) {
			fmt.Fprintf(out, "  %s  %s\n", code, links[code])
		}
	}
	if opts.invite {
		outcome, err := localiser.Invite(ctx, filter.Schools, opts.role, opts.inviteMessage)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "\nInvitations:")
		for _, code := range sortedKeys(outcome) {
			status := "sent"
			if outcome[code] != nil {
				status = "failed: " + outcome[code].Error()
			}
			fmt.Fprintf(out, "  %s  %s\n", code, status)
		}
	}
	return nil
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[M ~map[K]V, K cmp.Ordered, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
