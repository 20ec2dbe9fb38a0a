// Package queue owns the upload queue: admission, concurrency, status
// transitions, reachability reaction, and durable persistence. All state is
// guarded by a single mutex; callbacks from in-flight sessions, reachability
// changes, and user actions are serialized through it.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"streamup/storage"
	"streamup/tus"
	"streamup/videoapi"
)

// ErrNotFound is returned when an operation names an unknown entry.
var ErrNotFound = errors.New("queue: entry not found")

// Runner is one transfer attempt for one entry. tus.Session satisfies it;
// tests substitute scripted runners.
type Runner interface {
	Run(ctx context.Context) tus.Outcome
	Abort()
}

// RunnerFactory builds a Runner for an admitted entry.
type RunnerFactory func(in tus.Input, cb tus.Callbacks) Runner

// RemoteRemover is the slice of the video registry the scheduler needs for
// cancellation.
type RemoteRemover interface {
	DeleteVideo(ctx context.Context, libraryID, videoID string) error
}

// ActivityGuard suppresses system idle-sleep while transfers are ongoing.
type ActivityGuard interface {
	Acquire()
	Release()
}

// Notifier delivers user-facing notifications for terminal outcomes.
type Notifier interface {
	Notify(title, message string)
}

// Config holds scheduler configuration.
type Config struct {
	// AutoResume promotes paused entries back to pending on start-up and
	// on connectivity regain.
	AutoResume bool

	// DeleteTimeout bounds the remote delete issued by cancel.
	DeleteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DeleteTimeout <= 0 {
		c.DeleteTimeout = 30 * time.Second
	}
	return c
}

// Deps are the scheduler's collaborators. Store, Credentials, and Factory
// are required; the rest may be nil.
type Deps struct {
	Store       storage.Store
	Credentials videoapi.Credentials
	Factory     RunnerFactory
	Remote      RemoteRemover
	Guard       ActivityGuard
	Notifier    Notifier
	Logger      *slog.Logger
}

type activeSession struct {
	entryID string
	gen     uint64
	runner  Runner
	cancel  context.CancelFunc
}

// Scheduler owns the queue. Exactly one entry holds status uploading at a
// time.
type Scheduler struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps
	log  *slog.Logger

	entries []*storage.QueueEntry

	started bool
	online  bool
	baseCtx context.Context
	stop    context.CancelFunc

	active    *activeSession
	gen       uint64
	guardHeld bool

	wg sync.WaitGroup
}

// New loads the persisted queue and normalizes statuses for start-up. The
// scheduler does not admit work until Start is called.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Store == nil || deps.Credentials == nil || deps.Factory == nil {
		return nil, errors.New("queue: store, credentials, and factory are required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	entries, err := deps.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	s := &Scheduler{
		cfg:     cfg.withDefaults(),
		deps:    deps,
		log:     log,
		entries: entries,
		online:  true,
	}
	s.normalizeStartup()
	return s, nil
}

// normalizeStartup repairs statuses left behind by a previous process. With
// auto-resume on, every non-terminal entry becomes pending; otherwise an
// interrupted upload parks as paused so nothing silently restarts.
func (s *Scheduler) normalizeStartup() {
	now := time.Now()
	for _, e := range s.entries {
		switch {
		case s.cfg.AutoResume && !e.Status.Terminal():
			e.Status = storage.StatusPending
		case e.Status == storage.StatusUploading:
			e.Status = storage.StatusPaused
			t := now
			e.PausedAt = &t
		}
	}
}

// Start enables admission. ctx bounds every session the scheduler launches.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.baseCtx, s.stop = context.WithCancel(ctx)
	s.started = true
	s.persistLocked()
	s.admitLocked()
}

// Stop aborts the active session and waits for background work to settle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.active != nil {
		s.active.runner.Abort()
		s.active.cancel()
	}
	s.started = false
	if s.stop != nil {
		s.stop()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.persistLocked()
	s.updateGuardLocked()
	s.mu.Unlock()
}

// Enqueue appends one entry per file. A file whose target library has no
// usable credential is recorded as a terminal failure without any network
// traffic.
func (s *Scheduler) Enqueue(paths []string, libraryID, collectionID string) ([]*storage.QueueEntry, error) {
	if len(paths) == 0 {
		return nil, errors.New("queue: no files to enqueue")
	}

	_, credErr := s.deps.Credentials.APIKey(libraryID)

	s.mu.Lock()
	defer s.mu.Unlock()

	added := make([]*storage.QueueEntry, 0, len(paths))
	now := time.Now()
	for _, path := range paths {
		e := &storage.QueueEntry{
			ID:           uuid.NewString(),
			FilePath:     path,
			LibraryID:    libraryID,
			CollectionID: collectionID,
			Title:        filepath.Base(path),
			Status:       storage.StatusPending,
			CreatedAt:    now,
		}

		info, err := os.Stat(path)
		switch {
		case err != nil:
			e.Status = storage.StatusFailed
			e.Error = fmt.Sprintf("source file: %v", err)
			t := now
			e.CompletedAt = &t
		case credErr != nil:
			e.Status = storage.StatusFailed
			e.Error = fmt.Sprintf("no credential for library %s", libraryID)
			t := now
			e.CompletedAt = &t
			e.FileSize = info.Size()
		default:
			e.FileSize = info.Size()
		}

		s.entries = append(s.entries, e)
		added = append(added, e.Clone())
		s.log.Info("enqueued", "entry", e.ID, "file", path, "status", e.Status)
	}

	s.persistLocked()
	s.updateGuardLocked()
	s.admitLocked()
	return added, nil
}

// List returns clones of every entry in FIFO order.
func (s *Scheduler) List() []*storage.QueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*storage.QueueEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	sortEntries(out)
	return out
}

// Get returns a clone of one entry.
func (s *Scheduler) Get(id string) (*storage.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findLocked(id)
	if e == nil {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

// Pause suspends one entry. An active session is aborted without touching
// the remote resource.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.findLocked(id)
	if e == nil {
		return ErrNotFound
	}
	return s.pauseLocked(e)
}

func (s *Scheduler) pauseLocked(e *storage.QueueEntry) error {
	if err := storage.ValidateTransition(e.Status, storage.StatusPaused); err != nil {
		return err
	}
	if s.active != nil && s.active.entryID == e.ID {
		s.active.runner.Abort()
		s.active.cancel()
	}
	e.Status = storage.StatusPaused
	t := time.Now()
	e.PausedAt = &t
	s.persistLocked()
	return nil
}

// Resume promotes a paused entry back to pending and retries admission.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.findLocked(id)
	if e == nil {
		return ErrNotFound
	}
	if err := storage.ValidateTransition(e.Status, storage.StatusPending); err != nil {
		return err
	}
	e.Status = storage.StatusPending
	t := time.Now()
	e.PausedAt = &t
	s.persistLocked()
	s.admitLocked()
	return nil
}

// PauseAll suspends every pending and uploading entry.
func (s *Scheduler) PauseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Status == storage.StatusPending || e.Status == storage.StatusUploading {
			// Transition is always legal from these two states.
			_ = s.pauseLocked(e)
		}
	}
}

// ResumeAll promotes every paused entry and retries admission.
func (s *Scheduler) ResumeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, e := range s.entries {
		if e.Status == storage.StatusPaused {
			e.Status = storage.StatusPending
			t := now
			e.PausedAt = &t
		}
	}
	s.persistLocked()
	s.admitLocked()
}

// Cancel discards an entry. A successful upload or an entry without a
// remote resource is removed locally only; anything else issues a remote
// delete and removes the entry locally regardless of the delete's result.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.findLocked(id)
	if e == nil {
		return ErrNotFound
	}
	if e.Status == storage.StatusCanceled {
		// A remote delete is already in flight; removal follows it.
		return nil
	}

	if s.active != nil && s.active.entryID == e.ID {
		s.active.runner.Abort()
		s.active.cancel()
	}

	if e.Status == storage.StatusSuccess || e.VideoID == "" {
		s.removeLocked(e.ID)
		s.persistLocked()
		s.updateGuardLocked()
		s.admitLocked()
		return nil
	}

	e.Status = storage.StatusCanceled
	s.persistLocked()

	libraryID, videoID, entryID := e.LibraryID, e.VideoID, e.ID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deleteAndRemove(libraryID, videoID, entryID)
	}()
	return nil
}

func (s *Scheduler) deleteAndRemove(libraryID, videoID, entryID string) {
	if s.deps.Remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DeleteTimeout)
		defer cancel()
		if err := s.deps.Remote.DeleteVideo(ctx, libraryID, videoID); err != nil {
			// Local removal is unconditional once cancellation was
			// requested.
			s.log.Warn("remote delete failed", "entry", entryID, "video", videoID, "err", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(entryID)
	s.persistLocked()
	s.updateGuardLocked()
	s.admitLocked()
}

// RemoveFromHistory deletes a finished entry from the local record. For
// anything still live it degrades to Cancel.
func (s *Scheduler) RemoveFromHistory(id string) error {
	s.mu.Lock()
	e := s.findLocked(id)
	if e == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	if e.Status.Terminal() && e.Status != storage.StatusCanceled {
		s.removeLocked(id)
		s.persistLocked()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Cancel(id)
}

// SetOnline feeds the reachability signal. Loss forces a protective pause
// of the active transfer; regain promotes auto-pausable entries and retries
// admission.
func (s *Scheduler) SetOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.online == online {
		return
	}
	s.online = online

	if !online {
		s.log.Info("connectivity lost, pausing transfers")
		for _, e := range s.entries {
			if e.Status == storage.StatusUploading {
				_ = s.pauseLocked(e)
			}
		}
		return
	}

	s.log.Info("connectivity regained")
	if s.cfg.AutoResume {
		for _, e := range s.entries {
			if e.Status == storage.StatusPaused && e.PausedAt != nil {
				e.Status = storage.StatusPending
			}
		}
		s.persistLocked()
	}
	s.admitLocked()
}

// SetTitle updates the local display title.
func (s *Scheduler) SetTitle(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findLocked(id)
	if e == nil {
		return ErrNotFound
	}
	e.Title = title
	s.persistLocked()
	return nil
}

// ApplyRemote merges advisory metadata reported by the registry.
func (s *Scheduler) ApplyRemote(id string, meta storage.RemoteMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findLocked(id)
	if e == nil {
		return ErrNotFound
	}
	e.Remote = meta
	s.persistLocked()
	return nil
}

// MarkNotified flips the ready-notification guard. It reports true exactly
// once per entry.
func (s *Scheduler) MarkNotified(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findLocked(id)
	if e == nil || e.Notified {
		return false
	}
	e.Notified = true
	s.persistLocked()
	return true
}

// Forget removes an entry locally without contacting the remote service.
// Used when catalog reconciliation discovers the remote resource is gone.
func (s *Scheduler) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.entryID == id {
		s.active.runner.Abort()
		s.active.cancel()
	}
	s.removeLocked(id)
	s.persistLocked()
	s.updateGuardLocked()
	s.admitLocked()
}

// admitLocked promotes the oldest pending entry to uploading and launches
// its session. Idempotent: a no-op while an upload is active.
func (s *Scheduler) admitLocked() {
	if !s.started || !s.online || s.active != nil {
		return
	}

	var next *storage.QueueEntry
	for _, e := range s.entries {
		if e.Status != storage.StatusPending {
			continue
		}
		if next == nil || e.CreatedAt.Before(next.CreatedAt) ||
			(e.CreatedAt.Equal(next.CreatedAt) && e.ID < next.ID) {
			next = e
		}
	}
	if next == nil {
		s.updateGuardLocked()
		return
	}

	next.Status = storage.StatusUploading
	s.persistLocked()
	s.updateGuardLocked()

	s.gen++
	gen := s.gen
	entryID := next.ID

	in := tus.Input{
		EntryID:      next.ID,
		FilePath:     next.FilePath,
		FileSize:     next.FileSize,
		LibraryID:    next.LibraryID,
		CollectionID: next.CollectionID,
		Title:        next.Title,
		VideoID:      next.VideoID,
		SessionURL:   next.SessionURL,
	}
	cb := tus.Callbacks{
		OnBootstrap: func(videoID, sessionURL string) {
			s.onBootstrap(gen, entryID, videoID, sessionURL)
		},
		OnProgress: func(p tus.Progress) {
			s.onProgress(gen, entryID, p)
		},
	}

	runner := s.deps.Factory(in, cb)
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.active = &activeSession{entryID: entryID, gen: gen, runner: runner, cancel: cancel}

	s.log.Info("admitted", "entry", entryID, "file", next.FilePath)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		out := runner.Run(ctx)
		s.onSessionDone(gen, entryID, out)
	}()
}

func (s *Scheduler) onBootstrap(gen uint64, entryID, videoID, sessionURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.gen != gen {
		return
	}
	e := s.findLocked(entryID)
	if e == nil {
		return
	}
	if videoID != "" {
		e.VideoID = videoID
	}
	if sessionURL != "" {
		e.SessionURL = sessionURL
	}
	// Persist immediately so a crash before the first chunk still resumes
	// without re-creating remote state.
	s.persistLocked()
}

func (s *Scheduler) onProgress(gen uint64, entryID string, p tus.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.gen != gen {
		return
	}
	e := s.findLocked(entryID)
	if e == nil {
		return
	}
	if p.BytesAcked > e.BytesAcked {
		e.BytesAcked = p.BytesAcked
	}
	s.persistLocked()
}

func (s *Scheduler) onSessionDone(gen uint64, entryID string, out tus.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || s.active.gen != gen {
		return
	}
	s.active = nil

	e := s.findLocked(entryID)
	if e == nil {
		// Cancelled and removed while the session was winding down.
		s.updateGuardLocked()
		s.admitLocked()
		return
	}

	now := time.Now()
	switch out.Kind {
	case tus.OutcomeDone:
		// A pause or cancel that raced the last chunk loses: the bytes
		// are on the server, so the upload is a success.
		if e.Status != storage.StatusCanceled {
			e.Status = storage.StatusSuccess
			e.BytesAcked = e.FileSize
			t := now
			e.CompletedAt = &t
			s.notify("Upload complete", e.Title)
			s.log.Info("upload complete", "entry", e.ID, "video", e.VideoID)
		}

	case tus.OutcomeFailed:
		e.Status = storage.StatusFailed
		if out.Err != nil {
			e.Error = out.Err.Error()
		}
		t := now
		e.CompletedAt = &t
		s.notify("Upload failed", e.Title)
		s.log.Warn("upload failed", "entry", e.ID, "err", out.Err)

	case tus.OutcomePaused:
		if e.Status == storage.StatusUploading {
			e.Status = storage.StatusPaused
			t := now
			e.PausedAt = &t
		}
		if out.BytesAcked > e.BytesAcked {
			e.BytesAcked = out.BytesAcked
		}

	case tus.OutcomeAborted:
		// The action that aborted the session already set the next
		// status.
		if out.BytesAcked > e.BytesAcked {
			e.BytesAcked = out.BytesAcked
		}
	}

	s.persistLocked()
	s.updateGuardLocked()
	s.admitLocked()
}

func (s *Scheduler) notify(title, message string) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(title, message)
	}
}

func (s *Scheduler) findLocked(id string) *storage.QueueEntry {
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *Scheduler) removeLocked(id string) {
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// persistLocked saves the queue. The scheduler itself never fails; a save
// error is logged and the in-memory state stays authoritative until the
// next save succeeds.
func (s *Scheduler) persistLocked() {
	if err := s.deps.Store.Save(s.entries); err != nil {
		s.log.Warn("persist queue", "err", err)
	}
}

// updateGuardLocked holds the idle-sleep guard while transfer work exists.
func (s *Scheduler) updateGuardLocked() {
	if s.deps.Guard == nil {
		return
	}
	want := s.active != nil
	if !want {
		for _, e := range s.entries {
			if e.Status == storage.StatusPending || e.Status == storage.StatusUploading {
				want = true
				break
			}
		}
	}
	want = want && s.started
	switch {
	case want && !s.guardHeld:
		s.deps.Guard.Acquire()
		s.guardHeld = true
	case !want && s.guardHeld:
		s.deps.Guard.Release()
		s.guardHeld = false
	}
}

func sortEntries(entries []*storage.QueueEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
