package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/notify"
	"github.com/vaultfm/vaultfm/internal/progress"
	"github.com/vaultfm/vaultfm/internal/upload"
	"github.com/vaultfm/vaultfm/internal/workspace"
)

// newUploadCmd creates the 'upload' command.
func newUploadCmd() *cobra.Command {
	var (
		target        string
		includeHidden bool
		summaryOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files or directories",
		Long: `Upload local files or directories into a folder. Directories keep
their structure; missing folders are created on the way.

Files the backend already holds (same content hash) are linked instead of
re-sent. Large files go through the chunked protocol.

Example:
  vaultfm upload report.pdf
  vaultfm upload ./photos --to 42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := upload.SourcesFromPaths(args, upload.WalkOptions{IncludeHidden: includeHidden})
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no files to upload")
			}
			target = folderArg([]string{target}, 0)

			var (
				bar *progress.BatchBar
				ui  *progress.UploadUI
			)
			opts := workspace.Options{}
			if summaryOnly {
				bar = progress.NewBatchBar(os.Stderr, fmt.Sprintf("Uploading %d file(s)", len(sources)))
				opts.OnUploadProgress = bar.Set
			}

			ws, err := openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer func() {
				if err := ws.Close(); err != nil {
					GetLogger().Warn().Err(err).Msg("Failed to save preferences")
				}
			}()

			ctx := GetContext()
			folderPath := "/"
			if target != models.RootID {
				if _, err := ws.Loader.Reveal(ctx, target); err != nil {
					return err
				}
				folderPath = breadcrumbPath(ws.Model.Ancestors(target))
			}

			if !summaryOnly {
				ui = progress.NewUploadUI(len(sources), folderPath)
				ui.Attach(ws.Events)
			}

			result := ws.Uploads.Upload(ctx, sources, target)

			if ui != nil {
				ui.Wait()
			}
			if bar != nil {
				bar.Finish()
			}
			notify.NewNotifier(notify.ParseConfig(ws.Config.Notify), GetLogger()).
				UploadsFinished(result.Succeeded(), len(result.Files), folderPath)
			return printUploadResult(cmd, result)
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Target folder id (default root)")
	cmd.Flags().BoolVar(&includeHidden, "hidden", false, "Include hidden files and directories")
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "Show one aggregate progress bar instead of per-file bars")
	return cmd
}

func printUploadResult(cmd *cobra.Command, result *upload.BatchResult) error {
	out := cmd.OutOrStdout()
	failed := result.Failed()

	fmt.Fprintf(out, "\nUploaded %d of %d file(s)\n", result.Succeeded(), len(result.Files))
	for _, f := range result.Files {
		if f.Err == nil && f.Strategy != "" {
			fmt.Fprintf(out, "  %-40s %-10s %s\n", f.RelativePath, f.Strategy, f.NodeID)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nFailed:")
	for _, f := range failed {
		fmt.Fprintf(out, "  %-40s %v\n", f.RelativePath, f.Err)
	}
	return fmt.Errorf("%d file(s) failed to upload", len(failed))
}
