package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/workspace"
)

// newShareCmd creates the 'share' command group.
func newShareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Manage share links",
	}
	cmd.AddCommand(newShareCreateCmd(), newShareListCmd(), newShareRevokeCmd(), newShareLogsCmd())
	return cmd
}

func newShareCreateCmd() *cobra.Command {
	var (
		withUser   string
		password   string
		permission string
		expires    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create <file-id>",
		Short: "Create a share link",
		Long: `Create a public share link, or a user share with --user.

Example:
  vaultfm share create 17 --expires 48h
  vaultfm share create 17 --user 9 --permission view`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if permission != models.PermissionView && permission != models.PermissionDownload {
				return fmt.Errorf("invalid permission %q (use %s or %s)", permission, models.PermissionView, models.PermissionDownload)
			}
			hours := int64(expires / time.Hour)
			if hours < 1 {
				return fmt.Errorf("expiry must be at least 1h")
			}

			req := models.CreateShareRequest{
				UserFileID:     args[0],
				ShareType:      models.SharePublic,
				Permission:     permission,
				ExpiresInHours: hours,
			}
			if withUser != "" {
				req.ShareType = models.ShareUser
				req.SharedWithUserID = &withUser
			}
			if password != "" {
				req.Password = &password
			}

			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				s, err := ws.Client.CreateShare(GetContext(), req)
				if err != nil {
					return fmt.Errorf("failed to create share: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Share ID:   %s\n", s.ID)
				fmt.Fprintf(out, "Token:      %s\n", s.ShareToken)
				fmt.Fprintf(out, "Type:       %s\n", s.ShareType)
				fmt.Fprintf(out, "Permission: %s\n", s.Permission)
				fmt.Fprintf(out, "Expires:    %s\n", s.ExpiresAt.Local().Format(time.RFC1123))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&withUser, "user", "", "Share with this user id instead of publicly")
	cmd.Flags().StringVar(&password, "password", "", "Protect a public share with a password")
	cmd.Flags().StringVar(&permission, "permission", models.PermissionDownload, "view or download")
	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "Link lifetime")
	return cmd
}

func newShareListCmd() *cobra.Command {
	var fileID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List share links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				if err := ws.Shares.RefreshShares(GetContext()); err != nil {
					return err
				}
				shares, _ := ws.Shares.Shares()
				if fileID != "" {
					shares = ws.Shares.ForFile(fileID)
				}
				printShares(cmd.OutOrStdout(), shares)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&fileID, "file", "", "Only shares of this file")
	return cmd
}

func printShares(w io.Writer, shares []models.Share) {
	if len(shares) == 0 {
		fmt.Fprintln(w, "No shares")
		return
	}
	fmt.Fprintf(w, "%-24s %-24s %-7s %-9s %-20s %s\n", "ID", "FILE", "TYPE", "PERM", "EXPIRES", "NAME")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, s := range shares {
		name := ""
		if s.Filename != nil {
			name = *s.Filename
		}
		fmt.Fprintf(w, "%-24s %-24s %-7s %-9s %-20s %s\n",
			s.ID, s.UserFileID, s.ShareType, s.Permission, s.ExpiresAt.Local().Format("2006-01-02 15:04"), name)
	}
}

func newShareRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <share-id>",
		Short: "Revoke a share link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				ok, err := newConfirmer(cmd).Confirm(GetContext(), fmt.Sprintf("Revoke share %s?", args[0]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
				if err := ws.Client.RevokeShare(GetContext(), args[0]); err != nil {
					return fmt.Errorf("failed to revoke share: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked share %s\n", args[0])
				return nil
			})
		},
	}
}

func newShareLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <share-id>",
		Short: "Show who accessed a share",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd, func(ws *workspace.Workspace) error {
				logs, err := ws.Client.ShareLogs(GetContext(), args[0])
				if err != nil {
					return fmt.Errorf("failed to get share logs: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(logs) == 0 {
					fmt.Fprintln(out, "No accesses recorded")
					return nil
				}
				fmt.Fprintf(out, "%-20s %-10s %-16s %s\n", "TIME", "ACTION", "IP", "USER")
				for _, l := range logs {
					fmt.Fprintf(out, "%-20s %-10s %-16s %s\n",
						l.AccessedAt.Local().Format("2006-01-02 15:04:05"), l.Action, orDash(l.IPAddress), orDash(l.AccessedByUserID))
				}
				return nil
			})
		},
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
