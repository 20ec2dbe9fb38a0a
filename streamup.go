package streamup

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"streamup/catalog"
	"streamup/config"
	"streamup/httpc"
	"streamup/notify"
	"streamup/power"
	"streamup/queue"
	"streamup/reachability"
	"streamup/storage"
	"streamup/tus"
	"streamup/videoapi"
)

// Engine assembles the upload stack from a configuration.
type Engine struct {
	cfg *config.Config
	log *slog.Logger

	http       *httpc.Client
	store      *storage.JSONStore
	registry   *videoapi.Client
	scheduler  *queue.Scheduler
	prober     *reachability.Prober
	reconciler *catalog.Reconciler

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine wires every component. A nil logger builds one from the
// configured level.
func NewEngine(cfg *config.Config, log *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel(),
		}))
	}

	queueFile := cfg.QueueFile()
	if err := os.MkdirAll(filepath.Dir(queueFile), 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	store, err := storage.NewJSONStore(queueFile, log)
	if err != nil {
		return nil, err
	}

	httpClient := httpc.New(httpc.DefaultConfig())
	creds := videoapi.StaticCredentials(cfg.Libraries)
	registry := videoapi.New(httpClient, cfg.API.BaseURL, creds, log)

	tusCfg := tus.Config{
		Endpoint:     cfg.Upload.Endpoint,
		ChunkSize:    cfg.Upload.ChunkSizeBytes,
		LockedDelay:  time.Duration(cfg.Upload.LockedDelaySec) * time.Second,
		ProbeDelay:   time.Duration(cfg.Upload.ProbeDelaySec) * time.Second,
		SignatureTTL: time.Duration(cfg.Upload.SignatureTTLHours) * time.Hour,
	}

	notifier := notify.New(log)
	scheduler, err := queue.New(queue.Config{
		AutoResume:    cfg.Queue.AutoResume,
		DeleteTimeout: time.Duration(cfg.Queue.DeleteTimeoutSec) * time.Second,
	}, queue.Deps{
		Store:       store,
		Credentials: creds,
		Factory:     queue.NewSessionFactory(tusCfg, httpClient, registry, creds, log),
		Remote:      registry,
		Guard:       power.New(log),
		Notifier:    notifier,
		Logger:      log,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		log:        log,
		http:       httpClient,
		store:      store,
		registry:   registry,
		scheduler:  scheduler,
		reconciler: catalog.New(scheduler, registry, notifier, log),
	}
	e.prober = reachability.New(reachability.Config{
		Target:   cfg.ProbeTarget(),
		Interval: time.Duration(cfg.Probe.IntervalSec) * time.Second,
		Timeout:  time.Duration(cfg.Probe.TimeoutSec) * time.Second,
	}, httpClient, scheduler.SetOnline, log)

	return e, nil
}

// Start begins admission and background connectivity probing.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.scheduler.Start(runCtx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.prober.Run(runCtx)
	}()
}

// Close stops everything and releases the queue file lock.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	e.scheduler.Stop()
	e.wg.Wait()
	e.http.Close()
	return e.store.Close()
}

// Enqueue appends files to the upload queue for the given library.
func (e *Engine) Enqueue(paths []string, libraryID, collectionID string) ([]*storage.QueueEntry, error) {
	return e.scheduler.Enqueue(paths, libraryID, collectionID)
}

// List returns the queue in FIFO order.
func (e *Engine) List() []*storage.QueueEntry {
	return e.scheduler.List()
}

// Pause suspends one entry.
func (e *Engine) Pause(id string) error { return e.scheduler.Pause(id) }

// Resume promotes a paused entry back to pending.
func (e *Engine) Resume(id string) error { return e.scheduler.Resume(id) }

// PauseAll suspends every pending and uploading entry.
func (e *Engine) PauseAll() { e.scheduler.PauseAll() }

// ResumeAll promotes every paused entry.
func (e *Engine) ResumeAll() { e.scheduler.ResumeAll() }

// Cancel discards an entry, deleting its remote resource when one exists
// and the upload did not complete.
func (e *Engine) Cancel(id string) error { return e.scheduler.Cancel(id) }

// RemoveFromHistory deletes a finished entry from the local record.
func (e *Engine) RemoveFromHistory(id string) error { return e.scheduler.RemoveFromHistory(id) }

// Sync reconciles the local history against the remote catalog.
func (e *Engine) Sync(ctx context.Context) error { return e.reconciler.Sync(ctx) }

// UpdateTitle renames an entry locally and, when the entry already has a
// remote resource, on the registry too.
func (e *Engine) UpdateTitle(ctx context.Context, id, title string) error {
	entry, err := e.scheduler.Get(id)
	if err != nil {
		return err
	}
	if entry.VideoID != "" {
		if err := e.registry.UpdateTitle(ctx, entry.LibraryID, entry.VideoID, title); err != nil {
			return err
		}
	}
	return e.scheduler.SetTitle(id, title)
}

// SetThumbnail uploads a thumbnail image for an entry's remote resource.
func (e *Engine) SetThumbnail(ctx context.Context, id, imagePath string) error {
	entry, err := e.scheduler.Get(id)
	if err != nil {
		return err
	}
	if entry.VideoID == "" {
		return fmt.Errorf("entry %s has no remote resource yet", id)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read thumbnail: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return e.registry.UploadThumbnail(ctx, entry.LibraryID, entry.VideoID, data, mimeType)
}

// Drained reports whether no entry is pending or uploading.
func (e *Engine) Drained() bool {
	for _, entry := range e.scheduler.List() {
		if entry.Status == storage.StatusPending || entry.Status == storage.StatusUploading {
			return false
		}
	}
	return true
}
