package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hlsforge/hlsforge/internal/config"
	"github.com/hlsforge/hlsforge/internal/database"
	"github.com/hlsforge/hlsforge/internal/intake"
	"github.com/hlsforge/hlsforge/internal/models"
	"github.com/hlsforge/hlsforge/internal/observability"
	"github.com/hlsforge/hlsforge/internal/pattern"
	"github.com/hlsforge/hlsforge/internal/pipeline"
	"github.com/hlsforge/hlsforge/internal/profiles"
	"github.com/hlsforge/hlsforge/internal/progress"
	"github.com/hlsforge/hlsforge/internal/repository"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the input directory once",
	Long: `Run one batch: discover files in the input directory, validate and
normalize their names, encode every accepted file into the profile's
quality ladder, package the renditions as HLS, and organize the output
folders. The command blocks until every job settles.`,
	RunE: runRun,
}

var dryRun bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("input", "", "input directory (overrides config)")
	runCmd.Flags().String("output", "", "output directory (overrides config)")
	runCmd.Flags().String("work-dir", "", "intermediate work directory (overrides config)")
	runCmd.Flags().String("profile", "", "processing profile name (overrides config)")
	runCmd.Flags().String("profiles-file", "", "YAML file with profile definitions (overrides config)")
	runCmd.Flags().Int("parallelism", 0, "number of concurrent encoding jobs (overrides profile)")
	runCmd.Flags().Int("max-attempts", 0, "encode attempts per job (overrides profile)")
	runCmd.Flags().Bool("no-rename", false, "disable automatic file renaming")
	runCmd.Flags().Bool("no-organize", false, "disable output folder organization")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and rename only, do not encode")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyStorageFlags(cmd.Flags(), cfg)

	profileName, profile, err := resolveProfile(cmd.Flags(), cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	if dryRun {
		return runIntakeOnly(cfg, profile, logger, cmd.OutOrStdout())
	}

	db, err := database.New(cfg.Database, observability.WithComponent(logger, "database"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	reporter := progress.NewReporter()
	go progress.LogSink(reporter.Subscribe(), observability.WithComponent(logger, "progress"))
	defer reporter.Close()

	runner, err := pipeline.New(cfg, profileName, profile, pipeline.Deps{
		Runs:     repository.NewRunRepository(db.DB),
		Jobs:     repository.NewJobRepository(db.DB),
		Reporter: reporter,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(cmd, summary.Run)
	if summary.Run.Failed > 0 {
		return fmt.Errorf("%d job(s) failed", summary.Run.Failed)
	}
	return nil
}

// applyStorageFlags overrides storage paths with explicit flags.
func applyStorageFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("input") {
		cfg.Storage.InputDir, _ = flags.GetString("input")
	}
	if flags.Changed("output") {
		cfg.Storage.OutputDir, _ = flags.GetString("output")
	}
	if flags.Changed("work-dir") {
		cfg.Storage.WorkDir, _ = flags.GetString("work-dir")
	}
	if flags.Changed("profiles-file") {
		cfg.Run.ProfilesFile, _ = flags.GetString("profiles-file")
	}
	if flags.Changed("profile") {
		cfg.Run.Profile, _ = flags.GetString("profile")
	}
}

// resolveProfile loads the profile store and applies per-run profile
// overrides from flags.
func resolveProfile(flags *pflag.FlagSet, cfg *config.Config) (string, *profiles.Profile, error) {
	store, err := loadProfileStore(cfg)
	if err != nil {
		return "", nil, err
	}

	profile, err := store.Resolve(cfg.Run.Profile)
	if err != nil {
		return "", nil, err
	}

	if flags.Changed("parallelism") {
		profile.Parallelism, _ = flags.GetInt("parallelism")
	}
	if flags.Changed("max-attempts") {
		profile.MaxAttempts, _ = flags.GetInt("max-attempts")
	}
	if flags.Changed("no-rename") {
		noRename, _ := flags.GetBool("no-rename")
		profile.AutoRenameFiles = !noRename
	}
	if flags.Changed("no-organize") {
		noOrganize, _ := flags.GetBool("no-organize")
		profile.AutoOrganizeFolders = !noOrganize
	}

	if err := profile.Validate(); err != nil {
		return "", nil, err
	}
	return cfg.Run.Profile, profile, nil
}

// loadProfileStore loads profiles from the configured file, or the
// builtin set when none is configured.
func loadProfileStore(cfg *config.Config) (*profiles.Store, error) {
	if cfg.Run.ProfilesFile != "" {
		return profiles.LoadFile(cfg.Run.ProfilesFile)
	}
	return profiles.NewStore(), nil
}

// runIntakeOnly performs discovery, rename, and validation without
// encoding anything.
func runIntakeOnly(cfg *config.Config, profile *profiles.Profile, logger *slog.Logger, out io.Writer) error {
	validation, rename, organization, caseInsensitive := profile.PatternRules()
	engine, err := pattern.NewEngine(pattern.Rules{
		Validation:      validation,
		Rename:          rename,
		Organization:    organization,
		CaseInsensitive: caseInsensitive,
	})
	if err != nil {
		return err
	}

	result, err := intake.New(engine, nil, logger).Run(cfg.Storage.InputDir, intake.Options{
		AutoRename: profile.AutoRenameFiles,
	})
	if err != nil {
		return err
	}

	for _, entry := range result.Entries {
		switch entry.State {
		case models.EntryValidated:
			fmt.Fprintf(out, "accept  %s (identifier=%s)\n", entry.Path, entry.Identifier)
		default:
			fmt.Fprintf(out, "skip    %s (%s)\n", entry.Path, entry.SkipReason)
		}
	}
	fmt.Fprintf(out, "discovered=%d validated=%d skipped=%d renamed=%d rename_errors=%d\n",
		result.Discovered, result.Validated, result.Skipped, result.Renamed, result.RenameErrors)
	return nil
}

func printSummary(cmd *cobra.Command, run *models.RunRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s finished\n", run.ID)
	fmt.Fprintf(out, "  discovered: %d\n", run.Discovered)
	fmt.Fprintf(out, "  validated:  %d\n", run.Validated)
	fmt.Fprintf(out, "  skipped:    %d\n", run.Skipped)
	fmt.Fprintf(out, "  renamed:    %d\n", run.Renamed)
	fmt.Fprintf(out, "  succeeded:  %d\n", run.Succeeded)
	fmt.Fprintf(out, "  failed:     %d\n", run.Failed)
	fmt.Fprintf(out, "  organized:  %d\n", run.Organized)
}
