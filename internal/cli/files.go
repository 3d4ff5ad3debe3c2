package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultfm/vaultfm/internal/api"
	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/workspace"
)

// folderArg maps the user's spelling of the root ("", "/") to its id.
func folderArg(args []string, i int) string {
	if len(args) <= i {
		return models.RootID
	}
	id := strings.TrimSpace(args[i])
	if id == "" || id == "/" {
		return models.RootID
	}
	return id
}

// withWorkspace opens a workspace, runs fn and closes the workspace.
func withWorkspace(cmd *cobra.Command, fn func(ws *workspace.Workspace) error) error {
	ws, err := openWorkspace(cmd, workspace.Options{})
	if err != nil {
		return err
	}
	runErr := fn(ws)
	if err := ws.Close(); err != nil {
		GetLogger().Warn().Err(err).Msg("Failed to save preferences")
	}
	return runErr
}

func formatSize(n models.Node) string {
	if n.IsDir {
		return "-"
	}
	if n.Size == nil {
		return "?"
	}
	b := *n.Size
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for m := b / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatModified(n models.Node) string {
	if n.LastModified == 0 {
		return "-"
	}
	return time.Unix(n.LastModified, 0).Format("2006-01-02 15:04")
}

// flags renders the per-node markers shown in listings.
func flags(n models.Node) string {
	var f []string
	if n.IsFavorite {
		f = append(f, "fav")
	}
	if n.IsShared {
		f = append(f, "shared")
	}
	switch {
	case n.ScanStatus.IsInfected():
		f = append(f, "INFECTED")
	case n.ScanStatus.IsPendingScan():
		f = append(f, "scanning")
	}
	return strings.Join(f, ",")
}

func printNodes(w io.Writer, nodes []models.Node) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	fmt.Fprintf(w, "%-24s %-4s %-10s %-16s %-30s %s\n", "ID", "TYPE", "SIZE", "MODIFIED", "NAME", "FLAGS")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, n := range nodes {
		kind := "file"
		if n.IsDir {
			kind = "dir"
		}
		fmt.Fprintf(w, "%-24s %-4s %-10s %-16s %-30s %s\n", n.ID, kind, formatSize(n), formatModified(n), n.Name, flags(n))
	}
}

func breadcrumbPath(crumbs []models.Node) string {
	var parts []string
	for _, n := range crumbs {
		if n.IsRoot() {
			continue
		}
		parts = append(parts, n.Name)
	}
	return "/" + strings.Join(parts, "/")
}

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var sortField string
	var descending bool

	cmd := &cobra.Command{
		Use:   "ls [folder-id]",
		Short: "List a folder",
		Long: `List the children of a folder, folders first, in the saved sort order.

Example:
  vaultfm ls
  vaultfm ls 42 --sort size --desc`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				if cmd.Flags().Changed("sort") || cmd.Flags().Changed("desc") {
					if err := ws.Prefs.SetSort(sortField, !descending); err != nil {
						return fmt.Errorf("failed to save sort order: %w", err)
					}
				}
				nodes, err := ws.Open(GetContext(), folderArg(args, 0))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n\n", breadcrumbPath(ws.Breadcrumbs()))
				printNodes(out, nodes)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sortField, "sort", "name", "Sort by name, size, date or type (saved)")
	cmd.Flags().BoolVar(&descending, "desc", false, "Sort descending (saved)")
	return cmd
}

// newTreeCmd creates the 'tree' command.
func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the folder tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				entries, err := ws.Client.FolderTree(GetContext())
				if err != nil {
					return fmt.Errorf("failed to get folder tree: %w", err)
				}
				children := make(map[string][]models.FolderTreeEntry)
				for _, e := range entries {
					parent := e.ParentID
					if parent == "" {
						parent = models.RootID
					}
					children[parent] = append(children[parent], e)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "/")
				printTree(out, children, models.RootID, "", make(map[string]bool))
				return nil
			})
		},
	}
}

func printTree(w io.Writer, children map[string][]models.FolderTreeEntry, parent, indent string, seen map[string]bool) {
	kids := children[parent]
	for i, e := range kids {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		branch, next := "├── ", "│   "
		if i == len(kids)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(w, "%s%s%s (%s)\n", indent, branch, e.Name, e.ID)
		printTree(w, children, e.ID, indent+next, seen)
	}
}

// newSearchCmd creates the 'search' command.
func newSearchCmd() *cobra.Command {
	var q api.SearchQuery
	var since, until string

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search files by name",
		Long: `Search the whole workspace. Results are printed only and do not
change the browsed folders.

Example:
  vaultfm search report
  vaultfm search 'rep*.pdf' --wildcard --since 2024-01-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Text = args[0]
			var err error
			if q.StartDate, err = parseDate(since); err != nil {
				return err
			}
			if q.EndDate, err = parseDate(until); err != nil {
				return err
			}
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				nodes, err := ws.Client.Search(GetContext(), q)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				printNodes(cmd.OutOrStdout(), nodes)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&q.Regex, "regex", false, "Treat text as a regular expression")
	cmd.Flags().BoolVar(&q.Wildcard, "wildcard", false, "Treat text as a wildcard pattern")
	cmd.Flags().BoolVar(&q.Similarity, "similar", false, "Fuzzy name matching")
	cmd.Flags().StringVar(&since, "since", "", "Only files modified on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Only files modified before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Maximum number of results")
	return cmd
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

// newMkdirCmd creates the 'mkdir' command.
func newMkdirCmd() *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				if _, err := ws.Open(GetContext(), folderArg([]string{parent}, 0)); err != nil {
					return err
				}
				n, err := ws.Ops.CreateFolder(GetContext(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s (%s)\n", n.Name, n.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&parent, "in", "", "Parent folder id (default root)")
	return cmd
}

// newRmCmd creates the 'rm' command.
func newRmCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete files or folders",
		Long: `Delete files or folders. Asks for confirmation unless --yes is given.
Favorites pointing at deleted items, or below a deleted folder, are removed.

Example:
  vaultfm rm 17 18 --in 42
  vaultfm rm 17 --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				if _, err := ws.Open(GetContext(), folderArg([]string{in}, 0)); err != nil {
					return err
				}
				if err := ws.Ops.Delete(GetContext(), args); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d item(s)\n", len(args))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Folder holding the items, used for names in prompts")
	return cmd
}

// newMvCmd creates the 'mv' command.
func newMvCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "mv <id>... <target-folder-id>",
		Short: "Move files or folders into a folder",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, target := args[:len(args)-1], folderArg(args, len(args)-1)
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				ctx := GetContext()
				if _, err := ws.Open(ctx, folderArg([]string{in}, 0)); err != nil {
					return err
				}
				// Loading the target's ancestors lets cycle checks see the chain
				if target != models.RootID {
					if _, err := ws.Loader.Reveal(ctx, target); err != nil {
						return err
					}
				}
				if err := ws.Ops.Move(ctx, ids, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %d item(s) to %s\n", len(ids), target)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Folder holding the items")
	return cmd
}

// newCpCmd creates the 'cp' command.
func newCpCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "cp <id>... <target-folder-id>",
		Short: "Copy files or folders into a folder",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, target := args[:len(args)-1], folderArg(args, len(args)-1)
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				ctx := GetContext()
				if _, err := ws.Open(ctx, folderArg([]string{in}, 0)); err != nil {
					return err
				}
				if target != models.RootID {
					if _, err := ws.Loader.Reveal(ctx, target); err != nil {
						return err
					}
				}
				if err := ws.Ops.Copy(ctx, ids, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Copied %d item(s) to %s\n", len(ids), target)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Folder holding the items")
	return cmd
}

// newRenameCmd creates the 'rename' command.
func newRenameCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "rename <id> <new-name>",
		Short: "Rename a file or folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				if _, err := ws.Open(GetContext(), folderArg([]string{in}, 0)); err != nil {
					return err
				}
				changed, err := ws.Ops.Rename(GetContext(), args[0], args[1])
				if err != nil {
					return err
				}
				if !changed {
					fmt.Fprintln(cmd.OutOrStdout(), "Name unchanged")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], strings.TrimSpace(args[1]))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Folder holding the item")
	return cmd
}

// newFavCmd creates the 'fav' command group.
func newFavCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fav",
		Short: "Manage favorites",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List favorites saved for this user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				favs := ws.Prefs.Favorites()
				out := cmd.OutOrStdout()
				if len(favs) == 0 {
					fmt.Fprintln(out, "No favorites")
					return nil
				}
				fmt.Fprintf(out, "%-24s %-4s %s\n", "ID", "TYPE", "NAME")
				for _, f := range favs {
					kind := "file"
					if f.IsDir {
						kind = "dir"
					}
					fmt.Fprintf(out, "%-24s %-4s %s\n", f.ID, kind, f.Name)
				}
				return nil
			})
		},
	}

	var in string
	toggleCmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle the favorite flag of a file or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				if _, err := ws.Open(GetContext(), folderArg([]string{in}, 0)); err != nil {
					return err
				}
				n, err := ws.Ops.ToggleFavorite(GetContext(), args[0])
				if err != nil {
					return err
				}
				state := "removed from"
				if n.IsFavorite {
					state = "added to"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s favorites\n", n.Name, state)
				return nil
			})
		},
	}
	toggleCmd.Flags().StringVar(&in, "in", "", "Folder holding the item")

	cmd.AddCommand(listCmd, toggleCmd)
	return cmd
}

// newURLCmd creates the 'url' command.
func newURLCmd() *cobra.Command {
	var in string

	cmd := &cobra.Command{
		Use:   "url <file-id>",
		Short: "Get a short-lived download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				ctx := GetContext()
				if in != "" {
					if _, err := ws.Open(ctx, in); err != nil {
						return err
					}
					if n, ok := ws.Model.Get(args[0]); ok && !n.CanDownload() {
						return fmt.Errorf("%s cannot be downloaded", n.Name)
					}
				}
				t, err := ws.Client.DownloadTicket(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get download ticket: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, t.URL)
				if !t.ExpiresAt.IsZero() {
					fmt.Fprintf(out, "Expires: %s\n", t.ExpiresAt.Local().Format(time.RFC1123))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Folder holding the file, enables the infected-file check")
	return cmd
}
