// Package workspace wires the file manager core together: one API client,
// one model, one selection and the operations built on them, sharing an
// event bus.
package workspace

import (
	"context"
	"fmt"

	"github.com/vaultfm/vaultfm/internal/api"
	"github.com/vaultfm/vaultfm/internal/bulkops"
	"github.com/vaultfm/vaultfm/internal/config"
	"github.com/vaultfm/vaultfm/internal/constants"
	"github.com/vaultfm/vaultfm/internal/dragdrop"
	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/fsmodel"
	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/models"
	"github.com/vaultfm/vaultfm/internal/prefs"
	"github.com/vaultfm/vaultfm/internal/scanpoll"
	"github.com/vaultfm/vaultfm/internal/selection"
	"github.com/vaultfm/vaultfm/internal/transfer"
	"github.com/vaultfm/vaultfm/internal/upload"
)

// Options customizes a Workspace. Zero values are fine.
type Options struct {
	Logger    *logging.Logger
	EventBus  *events.EventBus
	Confirmer bulkops.Confirmer
	Alerter   scanpoll.Alerter
	// PrefsPath overrides the preferences file; "" uses the default location.
	PrefsPath        string
	OnUploadProgress upload.ProgressFunc
}

// Workspace is the state of one signed-in session.
type Workspace struct {
	Config    *config.Config
	Logger    *logging.Logger
	Events    *events.EventBus
	Client    *api.Client
	Model     *fsmodel.Model
	Loader    *fsmodel.Loader
	Selection *selection.State
	Ops       *bulkops.Coordinator
	Poller    *scanpoll.Poller
	Uploads   *upload.Orchestrator
	Transfers *transfer.Queue
	DragDrop  *dragdrop.Engine
	Shares    *ShareList
	Prefs     *prefs.User

	prefsStore *prefs.Store
}

// New builds a workspace from cfg.
func New(cfg *config.Config, opts Options) (*Workspace, error) {
	if err := cfg.ValidateForConnection(); err != nil {
		return nil, err
	}

	bus := opts.EventBus
	if bus == nil {
		bus = events.NewEventBus(constants.EventBusDefaultBuffer)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger("cli", bus)
	}

	client, err := api.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	client.SetUnauthorizedHandler(func(path string) {
		bus.PublishSessionInvalidated(path)
	})

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		if prefsPath, err = prefs.DefaultPath(); err != nil {
			logger.Warn().Err(err).Msg("No preferences location, favorites will not persist")
			prefsPath = ""
		}
	}
	store := prefs.NewStore(prefsPath)
	if err := store.Load(); err != nil {
		logger.Warn().Err(err).Str("path", prefsPath).Msg("Failed to load preferences")
	}
	user := store.User(cfg.UserID())

	model := fsmodel.New(bus)
	loader := fsmodel.NewLoader(model, client, client, logger)
	sel := selection.New(bus)
	shares := NewShareList(client, logger)

	confirmer := opts.Confirmer
	if confirmer == nil {
		confirmer = bulkops.AlwaysConfirm
	}
	ops := bulkops.New(client, loader, sel, bulkops.Options{
		Confirmer: confirmer,
		Favorites: user,
		Shares:    shares,
		EventBus:  bus,
		Logger:    logger,
	})

	poller := scanpoll.New(model, loader, opts.Alerter, cfg.Poller.Interval, bus, logger)

	queue := transfer.NewQueue(bus)
	uploads := upload.New(client, loader, upload.Options{
		Limits:     cfg.Upload,
		Queue:      queue,
		EventBus:   bus,
		Logger:     logger,
		OnProgress: opts.OnUploadProgress,
	})

	return &Workspace{
		Config:     cfg,
		Logger:     logger,
		Events:     bus,
		Client:     client,
		Model:      model,
		Loader:     loader,
		Selection:  sel,
		Ops:        ops,
		Poller:     poller,
		Uploads:    uploads,
		Transfers:  queue,
		DragDrop:   dragdrop.New(model, sel, ops, logger),
		Shares:     shares,
		Prefs:      user,
		prefsStore: store,
	}, nil
}

// Open navigates to folderID: the selection moves to it and the folder is
// loaded with its ancestor chain. It returns the sorted visible children.
func (w *Workspace) Open(ctx context.Context, folderID string) ([]models.Node, error) {
	if folderID == "" {
		folderID = models.RootID
	}
	if _, err := w.Loader.Reveal(ctx, folderID); err != nil {
		return nil, err
	}
	w.Selection.SetFolder(folderID)
	return w.Visible(), nil
}

// Visible returns the children of the current folder in the user's sort
// order.
func (w *Workspace) Visible() []models.Node {
	p := w.Prefs.Prefs()
	children := w.Model.Children(w.Selection.CurrentFolder())
	return fsmodel.Sort(children, fsmodel.ParseSortField(p.SortField), p.Ascending)
}

// Breadcrumbs returns the root-first path to the current folder.
func (w *Workspace) Breadcrumbs() []models.Node {
	return w.Model.Ancestors(w.Selection.CurrentFolder())
}

// StartPolling runs the scan status poller until ctx ends, unless polling
// is disabled in the config.
func (w *Workspace) StartPolling(ctx context.Context) bool {
	if !w.Config.Poller.Enabled {
		return false
	}
	go w.Poller.Run(ctx)
	return true
}

// Close cancels unfinished uploads, saves preferences and closes the bus.
func (w *Workspace) Close() error {
	w.Transfers.CancelAll()
	err := w.prefsStore.Save()
	w.Events.Close()
	return err
}
