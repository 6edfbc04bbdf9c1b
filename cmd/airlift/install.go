package main

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/airlift/pkg/config"
	"github.com/arthur-debert/airlift/pkg/engine"
	"github.com/arthur-debert/airlift/pkg/progress"
	"github.com/arthur-debert/airlift/pkg/scenario"
	"github.com/arthur-debert/airlift/pkg/types"
)

var (
	installKind      string
	installOverwrite bool
	installNoVerify  bool
	installNoBackup  bool
	installPassword  string
	installProvider  string
	installPrior     string
)

var installCmd = &cobra.Command{
	Use:   "install <source> <target>",
	Short: "Install an add-on package into a target directory",
	Long: `Install stages the source (a directory or an archive, nested archives
included) into scratch space, picks the scenario that fits the target -
fresh install, clean reinstall with backup of protected content, or
non-destructive merge - commits it atomically, and verifies the result.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := types.ParseKind(installKind)
		if err != nil {
			return err
		}

		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}

		task := &types.InstallTask{
			Kind:         kind,
			Source:       args[0],
			TargetPath:   args[1],
			Overwrite:    installOverwrite,
			Password:     installPassword,
			Verify:       cfg.VerifyByDefault && !installNoVerify,
			Provider:     installProvider,
			PriorVersion: installPrior,
			Backup: types.BackupPrefs{
				Liveries:     !installNoBackup,
				WholeCatalog: !installNoBackup,
			},
		}

		if dryRun {
			return previewInstall(task)
		}

		eng := engine.New(engine.Options{
			Config: cfg,
			Sink:   progress.NewConsoleSink(),
		})
		batch := eng.Run([]*types.InstallTask{task})
		printBatch(batch)
		if !batch.Ok() {
			return fmt.Errorf("%d task(s) failed", batch.Failed)
		}
		return nil
	},
}

func init() {
	installCmd.Flags().StringVarP(&installKind, "kind", "k", "", "Add-on kind: aircraft, scenery, plugin or navdata")
	installCmd.Flags().BoolVar(&installOverwrite, "overwrite", false, "Merge over an existing target instead of a clean reinstall")
	installCmd.Flags().BoolVar(&installNoVerify, "no-verify", false, "Skip post-install hash verification")
	installCmd.Flags().BoolVar(&installNoBackup, "no-backup", false, "Do not preserve liveries or archive replaced catalog entries")
	installCmd.Flags().StringVar(&installPassword, "password", "", "Password for an encrypted source archive")
	installCmd.Flags().StringVar(&installProvider, "provider", "", "Catalog provider label, recorded in catalog backups")
	installCmd.Flags().StringVar(&installPrior, "prior-version", "", "Version tag of the installation being replaced")
	_ = installCmd.MarkFlagRequired("kind")
}

func previewInstall(task *types.InstallTask) error {
	exists := false
	if _, err := os.Lstat(task.TargetPath); err == nil {
		exists = true
	}
	sc := scenario.Select(exists, task.Overwrite, task.Kind)
	fmt.Printf("source:   %s\n", task.Source)
	fmt.Printf("target:   %s\n", task.TargetPath)
	fmt.Printf("scenario: %s\n", color.Cyan.Sprint(sc))
	return nil
}

func printBatch(batch *types.BatchResult) {
	for _, r := range batch.Tasks {
		switch r.Status {
		case types.StatusSuccess:
			color.Green.Printf("✓ %s (%s)\n", r.Task, r.Scenario)
			if r.Verify.TotalFiles > 0 {
				fmt.Printf("  verified %d/%d files, %d retried\n",
					r.Verify.VerifiedFiles, r.Verify.TotalFiles, r.Verify.RetriedFiles)
			}
		case types.StatusFailed:
			color.Red.Printf("✗ %s: %s\n", r.Task, r.Error)
		case types.StatusSkipped:
			color.Yellow.Printf("- %s skipped\n", r.Task)
		case types.StatusCancelled:
			color.Yellow.Printf("- %s cancelled\n", r.Task)
		}
	}
}
