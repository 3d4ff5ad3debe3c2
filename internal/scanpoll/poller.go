// Package scanpoll watches the file-system model for files whose antivirus
// scan has not finished and for files the scanner flagged.
//
// The poller never changes scan state itself; it only refetches folders so
// the backend's latest state lands in the model.
package scanpoll

import (
	"context"
	"sync"
	"time"

	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/fsmodel"
	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/metrics"
	"github.com/vaultfm/vaultfm/internal/models"
)

// Refresher refetches a folder into the model.
type Refresher interface {
	Refresh(ctx context.Context, folderID string, silent bool) ([]models.Node, error)
}

// Alerter raises the user-facing infected-file alert.
type Alerter interface {
	Alert(n models.Node)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(n models.Node)

// Alert calls f.
func (f AlertFunc) Alert(n models.Node) {
	f(n)
}

// Poller periodically refetches folders that hold files still being scanned
// and alerts once per infected file.
type Poller struct {
	model     *fsmodel.Model
	refresher Refresher
	alerter   Alerter
	interval  time.Duration
	eventBus  *events.EventBus
	logger    *logging.Logger

	mu      sync.Mutex
	alerted map[string]bool
}

// New creates a poller. alerter may be nil, in which case alerts only go to
// the event bus. An interval below the minimum is raised to it.
func New(model *fsmodel.Model, refresher Refresher, alerter Alerter, interval time.Duration, eventBus *events.EventBus, logger *logging.Logger) *Poller {
	if interval <= 0 {
		interval = constants.ScanPollInterval
	}
	if interval < constants.MinScanPollInterval {
		interval = constants.MinScanPollInterval
	}
	return &Poller{
		model:     model,
		refresher: refresher,
		alerter:   alerter,
		interval:  interval,
		eventBus:  eventBus,
		logger:    logging.OrNop(logger).Component("scanpoll"),
		alerted:   make(map[string]bool),
	}
}

// Interval returns the tick interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run ticks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug().Dur("interval", p.interval).Msg("Scan poller started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Debug().Msg("Scan poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one polling cycle and returns the folders it refetched.
//
// Every fetched folder holding a pending or scanning node is refetched
// silently. Every infected node not alerted before raises one alert and its
// parent is refetched, since the backend is expected to have removed it.
// Refetch errors are logged and swallowed.
func (p *Poller) Tick(ctx context.Context) []string {
	metrics.RecordScanTick()

	var (
		stale    []string
		infected []models.Node
	)
	staleSet := make(map[string]bool)
	for _, folderID := range p.model.FetchedFolders() {
		for _, n := range p.model.Children(folderID) {
			switch {
			case n.ScanStatus.IsPendingScan():
				if !staleSet[folderID] {
					staleSet[folderID] = true
					stale = append(stale, folderID)
				}
			case n.ScanStatus.IsInfected():
				infected = append(infected, n)
			}
		}
	}

	for _, n := range infected {
		if !p.markAlerted(n.ID) {
			continue
		}
		p.logger.Warn().Str("id", n.ID).Str("name", n.Name).Str("result", n.ScanResult).Msg("Infected file detected")
		metrics.RecordInfectedAlert()
		p.eventBus.PublishInfected(n)
		if p.alerter != nil {
			p.alerter.Alert(n)
		}
		if !staleSet[n.ParentID] {
			staleSet[n.ParentID] = true
			stale = append(stale, n.ParentID)
		}
	}

	for _, folderID := range stale {
		if ctx.Err() != nil {
			break
		}
		if _, err := p.refresher.Refresh(ctx, folderID, true); err != nil {
			p.logger.Debug().Err(err).Str("folder_id", folderID).Msg("Scan status refetch failed")
		}
	}
	return stale
}

// markAlerted records id and reports whether it was new.
func (p *Poller) markAlerted(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alerted[id] {
		return false
	}
	p.alerted[id] = true
	return true
}

// Alerted reports whether id has been alerted.
func (p *Poller) Alerted(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alerted[id]
}
