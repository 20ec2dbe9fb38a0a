// Package catalog reconciles the local upload history against the remote
// video registry: advisory metadata is refreshed, vanished remote resources
// drop their local entries, and a one-shot "ready" notification fires when
// remote processing finishes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"streamup/storage"
	"streamup/videoapi"
)

// Queue is the slice of the scheduler the reconciler needs.
type Queue interface {
	List() []*storage.QueueEntry
	ApplyRemote(id string, meta storage.RemoteMeta) error
	MarkNotified(id string) bool
	Forget(id string)
}

// Fetcher reads remote video metadata.
type Fetcher interface {
	FetchVideo(ctx context.Context, libraryID, videoID string) (*videoapi.Video, error)
}

// Notifier announces ready videos.
type Notifier interface {
	Notify(title, message string)
}

// Reconciler performs one bulk read-and-merge pass per Sync call.
type Reconciler struct {
	queue    Queue
	fetcher  Fetcher
	notifier Notifier
	log      *slog.Logger

	// Limit caps concurrent metadata fetches.
	Limit int
}

// New creates a reconciler. notifier may be nil.
func New(queue Queue, fetcher Fetcher, notifier Notifier, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		queue:    queue,
		fetcher:  fetcher,
		notifier: notifier,
		log:      log,
		Limit:    4,
	}
}

// Sync refreshes every entry that carries a remote resource id. Individual
// fetch failures do not stop the pass; they are joined into the returned
// error.
func (r *Reconciler) Sync(ctx context.Context) error {
	var (
		mu    sync.Mutex
		fails []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Limit)

	for _, e := range r.queue.List() {
		if e.VideoID == "" || e.Status == storage.StatusUploading {
			continue
		}
		entry := e
		g.Go(func() error {
			if err := r.reconcileEntry(ctx, entry); err != nil {
				r.log.Warn("reconcile entry", "entry", entry.ID, "video", entry.VideoID, "err", err)
				mu.Lock()
				fails = append(fails, fmt.Errorf("entry %s: %w", entry.ID, err))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(fails...)
}

func (r *Reconciler) reconcileEntry(ctx context.Context, entry *storage.QueueEntry) error {
	v, err := r.fetcher.FetchVideo(ctx, entry.LibraryID, entry.VideoID)
	if errors.Is(err, videoapi.ErrVideoNotFound) {
		r.log.Info("remote resource vanished, dropping local entry",
			"entry", entry.ID, "video", entry.VideoID)
		r.queue.Forget(entry.ID)
		return nil
	}
	if err != nil {
		return err
	}

	meta := storage.RemoteMeta{
		Title:             v.Title,
		ThumbnailURL:      v.ThumbnailFileName,
		StatusCode:        v.Status,
		ProcessingPercent: v.EncodeProgress,
		DurationSeconds:   v.Length,
	}
	if v.Status == videoapi.RemoteStatusError {
		meta.ErrorText = "remote processing failed"
	}
	if err := r.queue.ApplyRemote(entry.ID, meta); err != nil {
		return err
	}

	if v.Ready() && r.queue.MarkNotified(entry.ID) {
		title := entry.Title
		if title == "" {
			title = v.Title
		}
		if r.notifier != nil {
			r.notifier.Notify("Video ready", title)
		}
	}
	return nil
}
