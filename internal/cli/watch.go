package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/metrics"
	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/notify"
	"github.com/vaultfm/vaultfm/internal/scanpoll"
	"github.com/vaultfm/vaultfm/internal/workspace"
)

// newWatchCmd creates the 'watch' command.
func newWatchCmd() *cobra.Command {
	var (
		metricsAddr string
		noDesktop   bool
	)

	cmd := &cobra.Command{
		Use:   "watch [folder-id]",
		Short: "Watch a folder until pending virus scans finish",
		Long: `Open a folder and keep polling it while any file is pending or being
scanned. Infected files are reported once each. Runs until Ctrl+C.

Example:
  vaultfm watch 42
  vaultfm watch --metrics-addr :9102`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &syncWriter{w: cmd.OutOrStdout()}
			// Set before polling starts, the poller is the only caller
			var notifier *notify.Notifier
			alerter := scanpoll.AlertFunc(func(n models.Node) {
				fmt.Fprintf(out, "INFECTED: %s (%s) %s\n", n.Name, n.ID, n.ScanResult)
				notifier.Alert(n)
			})

			ws, err := openWorkspace(cmd, workspace.Options{Alerter: alerter})
			if err != nil {
				return err
			}
			defer ws.Close()

			notifyCfg := notify.ParseConfig(ws.Config.Notify)
			if noDesktop {
				notifyCfg.Enabled = false
			}
			notifier = notify.NewNotifier(notifyCfg, GetLogger())

			ctx, cancel := context.WithCancel(GetContext())
			defer cancel()

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						GetLogger().Error().Err(err).Str("addr", metricsAddr).Msg("Metrics server failed")
					}
				}()
				defer func() {
					shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
					defer done()
					_ = srv.Shutdown(shutdownCtx)
				}()
				fmt.Fprintf(out, "Serving metrics on %s/metrics\n", metricsAddr)
			}

			nodes, err := ws.Open(ctx, folderArg(args, 0))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s (%d items)\n", breadcrumbPath(ws.Breadcrumbs()), len(nodes))

			sub := ws.Events.Subscribe(events.EventSessionInvalidated)
			go func() {
				for ev := range sub {
					if _, ok := ev.(*events.SessionInvalidatedEvent); ok {
						fmt.Fprintln(out, "Session rejected by the server, stopping")
						cancel()
						return
					}
				}
			}()

			if !ws.StartPolling(ctx) {
				return fmt.Errorf("scan polling is disabled in the configuration")
			}
			reportPending(out, ws)

			ticker := time.NewTicker(ws.Poller.Interval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					reportPending(out, ws)
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&noDesktop, "no-desktop", false, "Do not raise desktop notifications for infected files")
	return cmd
}

func reportPending(w io.Writer, ws *workspace.Workspace) {
	pending := 0
	for _, n := range ws.Model.Nodes() {
		if n.ScanStatus.IsPendingScan() {
			pending++
		}
	}
	fmt.Fprintf(w, "%s  %d file(s) awaiting scan\n", time.Now().Format("15:04:05"), pending)
}

// syncWriter serializes writes from the poller and the command loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
