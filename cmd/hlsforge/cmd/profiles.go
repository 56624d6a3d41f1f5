package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles [name]",
	Short: "List processing profiles",
	Long: `List the available processing profiles, or show the full settings of
one profile when a name is given. Profiles come from the configured
profiles file; the builtin default is always available.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)

	profilesCmd.Flags().String("profiles-file", "", "YAML file with profile definitions (overrides config)")
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("profiles-file") {
		cfg.Run.ProfilesFile, _ = cmd.Flags().GetString("profiles-file")
	}

	store, err := loadProfileStore(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		profile, err := store.Resolve(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "profile %s\n", args[0])
		fmt.Fprintf(out, "  encoder:          %s\n", profile.Encoder)
		fmt.Fprintf(out, "  preset:           %s\n", profile.Preset)
		if profile.Tune != "" {
			fmt.Fprintf(out, "  tune:             %s\n", profile.Tune)
		}
		fmt.Fprintf(out, "  fps:              %d\n", profile.FPS)
		fmt.Fprintf(out, "  segment duration: %s\n", profile.SegmentDuration)
		fmt.Fprintf(out, "  playlist type:    %s\n", profile.Playlist)
		fmt.Fprintf(out, "  parallelism:      %d\n", profile.Parallelism)
		fmt.Fprintf(out, "  max attempts:     %d\n", profile.MaxAttempts)
		fmt.Fprintf(out, "  auto rename:      %t\n", profile.AutoRenameFiles)
		fmt.Fprintf(out, "  auto organize:    %t\n", profile.AutoOrganizeFolders)
		fmt.Fprintln(out, "  ladder:")
		for _, q := range profile.Ladder {
			fmt.Fprintf(out, "    %-8s %s @ %dk\n", q.Name, q.Resolution(), q.Bitrate)
		}
		return nil
	}

	for _, name := range store.Names() {
		profile, err := store.Resolve(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-20s %s, %d renditions, %s segments\n",
			name, profile.Encoder, len(profile.Ladder), profile.SegmentDuration)
	}
	return nil
}
