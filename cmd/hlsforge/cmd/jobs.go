package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hlsforge/hlsforge/internal/database"
	"github.com/hlsforge/hlsforge/internal/models"
	"github.com/hlsforge/hlsforge/internal/observability"
	"github.com/hlsforge/hlsforge/internal/repository"
	"github.com/hlsforge/hlsforge/pkg/bytesize"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show recorded encoding jobs",
	Long:  "List encoding jobs from the history database, newest first.",
	RunE:  runJobs,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recorded batch runs",
	Long:  "List batch runs from the history database, newest first.",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(runsCmd)

	jobsCmd.Flags().Int("limit", 20, "maximum number of jobs to show")
	jobsCmd.Flags().String("state", "", "filter by state (pending, running, retrying, succeeded, failed)")
	jobsCmd.Flags().String("run", "", "show jobs belonging to one run ID")

	runsCmd.Flags().Int("limit", 20, "maximum number of runs to show")
}

func openHistory() (*database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.New(cfg.Database, observability.WithComponent(slog.Default(), "database"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runJobs(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewJobRepository(db.DB)
	ctx := cmd.Context()

	limit, _ := cmd.Flags().GetInt("limit")
	state, _ := cmd.Flags().GetString("state")
	runID, _ := cmd.Flags().GetString("run")

	var jobs []*models.EncodingJob
	switch {
	case runID != "":
		jobs, err = repo.GetByRunID(ctx, runID)
	case state != "":
		jobs, err = repo.GetByState(ctx, models.JobState(state), limit)
	default:
		jobs, err = repo.GetRecent(ctx, limit)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tIDENTIFIER\tSTATE\tATTEMPTS\tDURATION\tPEAK RSS\tERROR")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			job.ID, job.Identifier, job.State,
			job.AttemptCount, job.MaxAttempts,
			time.Duration(job.DurationMs)*time.Millisecond,
			bytesize.Format(job.PeakRSSBytes),
			job.LastError)
	}
	return w.Flush()
}

func runRuns(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewRunRepository(db.DB)
	limit, _ := cmd.Flags().GetInt("limit")

	runs, err := repo.GetRecent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROFILE\tSTARTED\tVALIDATED\tSKIPPED\tSUCCEEDED\tFAILED\tORGANIZED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			run.ID, run.ProfileName, run.StartedAt.Format(time.RFC3339),
			run.Validated, run.Skipped, run.Succeeded, run.Failed, run.Organized)
	}
	return w.Flush()
}
