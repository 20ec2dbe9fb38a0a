// Package tus implements the resumable chunked upload protocol against a
// single remote video resource. One Session drives one transfer attempt:
// bootstrap (registry resource + upload session), then the probe / offset
// discovery / chunk transfer loop. A Session is single-use; resuming after
// a pause creates a new Session that reuses the persisted session URL and
// resource id.
package tus

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"streamup/httpc"
	"streamup/retry"
	"streamup/videoapi"
)

// DefaultChunkSize bounds how much of the source file is read and sent per
// request.
const DefaultChunkSize int64 = 4 << 20 // 4 MiB

// Protocol header values.
const (
	tusVersion       = "1.0.0"
	offsetOctetsMIME = "application/offset+octet-stream"
)

// Config holds protocol session configuration.
type Config struct {
	// Endpoint is the fixed resumable-upload endpoint URL.
	Endpoint string

	// ChunkSize is the per-request transfer size. Defaults to 4 MiB.
	ChunkSize int64

	// Schedule is the per-stage retry budget for protocol errors.
	Schedule retry.Schedule

	// LockedDelay is the wait after a locked-resource response before
	// re-discovering the offset. Server contention never consumes the
	// retry budget.
	LockedDelay time.Duration

	// ProbeDelay is the wait between route probe attempts.
	ProbeDelay time.Duration

	// SignatureTTL is the validity window for the per-session signed
	// credential. It must outlive any plausible single-file transfer;
	// the signature is computed once and never refreshed mid-session.
	SignatureTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if len(c.Schedule) == 0 {
		c.Schedule = retry.DefaultSchedule()
	}
	if c.LockedDelay <= 0 {
		c.LockedDelay = 5 * time.Second
	}
	if c.ProbeDelay <= 0 {
		c.ProbeDelay = 1 * time.Second
	}
	if c.SignatureTTL <= 0 {
		c.SignatureTTL = 6 * time.Hour
	}
	return c
}

// Registry is the slice of the video registry the session needs for
// bootstrap.
type Registry interface {
	CreateVideo(ctx context.Context, libraryID, title, collectionID string) (string, error)
}

// Input is the session's immutable snapshot of a queue entry.
type Input struct {
	EntryID      string
	FilePath     string
	FileSize     int64
	LibraryID    string
	CollectionID string
	Title        string

	// VideoID and SessionURL are reused when present so a restarted
	// engine resumes instead of re-creating remote state.
	VideoID    string
	SessionURL string
}

// Progress is a telemetry snapshot reported after each acknowledged chunk.
type Progress struct {
	BytesAcked int64
	Fraction   float64
	// Rate is instantaneous throughput in bytes per second, measured
	// since this session started, not since upload inception.
	Rate float64
	// ETA is remaining bytes over throughput; zero when throughput is
	// unknown.
	ETA time.Duration
}

// Callbacks let the scheduler persist remote linkage and progress while the
// session runs. Both may be nil.
type Callbacks struct {
	// OnBootstrap fires when the remote resource id or session URL
	// becomes known, before the first chunk, so a crash between
	// bootstrap and transfer still resumes without re-creating state.
	OnBootstrap func(videoID, sessionURL string)

	// OnProgress fires after each acknowledged chunk.
	OnProgress func(p Progress)
}

// OutcomeKind classifies how a session ended.
type OutcomeKind int

const (
	// OutcomeDone means every byte was acknowledged by the server.
	OutcomeDone OutcomeKind = iota
	// OutcomeFailed means a terminal error; Err carries the cause.
	OutcomeFailed
	// OutcomePaused is a protective pause after a network-loss-class
	// error. Not a failure; the transfer resumes later from the last
	// acknowledged offset.
	OutcomePaused
	// OutcomeAborted means the session was cancelled from outside
	// (user pause or cancel). The scheduler already holds the entry's
	// next state; the session reports no status of its own.
	OutcomeAborted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeDone:
		return "done"
	case OutcomeFailed:
		return "failed"
	case OutcomePaused:
		return "paused"
	case OutcomeAborted:
		return "aborted"
	}
	return "unknown"
}

// Outcome is the terminal report of a session.
type Outcome struct {
	Kind       OutcomeKind
	Err        error
	BytesAcked int64
}

// Session is a single-use transfer attempt.
type Session struct {
	cfg      Config
	http     *httpc.Client
	registry Registry
	creds    videoapi.Credentials
	in       Input
	cb       Callbacks
	log      *slog.Logger

	aborted    atomic.Bool
	started    time.Time
	baseOffset int64
	acked      int64
}

// NewSession creates a session for one queue entry.
func NewSession(cfg Config, httpClient *httpc.Client, registry Registry, creds videoapi.Credentials, in Input, cb Callbacks, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		cfg:      cfg.withDefaults(),
		http:     httpClient,
		registry: registry,
		creds:    creds,
		in:       in,
		cb:       cb,
		log:      log.With("entry", in.EntryID),
	}
}

// Abort requests cooperative cancellation. The flag is checked before each
// protocol step so a paused session cannot race ahead and report a stale
// result.
func (s *Session) Abort() {
	s.aborted.Store(true)
}

// Run executes the session to a terminal outcome. The caller cancels ctx
// together with Abort to interrupt in-flight requests.
func (s *Session) Run(ctx context.Context) Outcome {
	s.started = time.Now()

	if out := s.checkStop(ctx); out != nil {
		return *out
	}

	// Bootstrap: remote resource first.
	videoID := s.in.VideoID
	if videoID == "" {
		id, err := s.registry.CreateVideo(ctx, s.in.LibraryID, s.in.Title, s.in.CollectionID)
		if err != nil {
			if out := s.checkStop(ctx); out != nil {
				return *out
			}
			// Resource creation failure is not transient-network in
			// nature; surface it immediately, recoverable only by
			// re-enqueuing.
			return s.fail(fmt.Errorf("create remote resource: %w", err))
		}
		videoID = id
		s.log.Info("remote resource created", "video", videoID)
		s.emitBootstrap(videoID, s.in.SessionURL)
	}

	apiKey, err := s.creds.APIKey(s.in.LibraryID)
	if err != nil {
		return s.fail(err)
	}
	auth := videoapi.Presign(s.in.LibraryID, apiKey, videoID, s.cfg.SignatureTTL, time.Now())

	sessionURL := s.in.SessionURL
	if sessionURL == "" {
		url, out := s.createUploadSession(ctx, auth)
		if out != nil {
			return *out
		}
		sessionURL = url
		s.log.Info("upload session created", "video", videoID)
		s.emitBootstrap(videoID, sessionURL)
	}

	return s.transfer(ctx, auth, sessionURL)
}

func (s *Session) emitBootstrap(videoID, sessionURL string) {
	if s.cb.OnBootstrap != nil {
		s.cb.OnBootstrap(videoID, sessionURL)
	}
}

func (s *Session) fail(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err, BytesAcked: s.acked}
}

func (s *Session) pause(err error) Outcome {
	s.log.Info("protective pause", "cause", err)
	return Outcome{Kind: OutcomePaused, Err: nil, BytesAcked: s.acked}
}

func (s *Session) abortOutcome() Outcome {
	return Outcome{Kind: OutcomeAborted, BytesAcked: s.acked}
}

// checkStop returns a non-nil outcome when the session must stop before
// taking another protocol step.
func (s *Session) checkStop(ctx context.Context) *Outcome {
	if s.aborted.Load() || ctx.Err() != nil {
		o := s.abortOutcome()
		return &o
	}
	return nil
}

// waitOrStop sleeps for d, returning early with an abort outcome if the
// session is cancelled meanwhile.
func (s *Session) waitOrStop(ctx context.Context, d time.Duration) *Outcome {
	if err := retry.Sleep(ctx, d); err != nil {
		o := s.abortOutcome()
		return &o
	}
	return s.checkStop(ctx)
}

func (s *Session) protocolHeaders(auth videoapi.PresignedAuth) map[string]string {
	h := auth.Headers()
	h["Tus-Resumable"] = tusVersion
	return h
}

// createUploadSession issues the session-creation call and returns the
// session URL from the location header.
func (s *Session) createUploadSession(ctx context.Context, auth videoapi.PresignedAuth) (string, *Outcome) {
	budget := retry.NewBudget(s.cfg.Schedule)

	filename := s.in.Title
	if filename == "" {
		filename = filepath.Base(s.in.FilePath)
	}

	for {
		if out := s.checkStop(ctx); out != nil {
			return "", out
		}

		headers := s.protocolHeaders(auth)
		headers["Upload-Length"] = strconv.FormatInt(s.in.FileSize, 10)
		headers["Upload-Metadata"] = "filename " + base64.StdEncoding.EncodeToString([]byte(filename))

		resp, err := s.http.Do(ctx, http.MethodPost, s.cfg.Endpoint, nil, headers)
		if err != nil {
			if out := s.checkStop(ctx); out != nil {
				return "", out
			}
			if httpc.IsNetworkLoss(err) {
				o := s.pause(err)
				return "", &o
			}
			if out := s.consume(ctx, budget, "create session", err); out != nil {
				return "", out
			}
			continue
		}

		if resp.Success() {
			loc := resp.Header.Get("Location")
			if loc == "" {
				err := fmt.Errorf("create session: response missing location header")
				if out := s.consume(ctx, budget, "create session", err); out != nil {
					return "", out
				}
				continue
			}
			return loc, nil
		}

		err = fmt.Errorf("create session: %w", resp.Error())
		if out := s.consume(ctx, budget, "create session", err); out != nil {
			return "", out
		}
	}
}

// consume burns one attempt of the stage budget and waits out the delay.
// A non-nil outcome means the budget is exhausted or the session stopped.
func (s *Session) consume(ctx context.Context, budget *retry.Budget, stage string, cause error) *Outcome {
	delay, ok := budget.Next()
	if !ok {
		o := s.fail(&retry.ExhaustedError{Attempts: len(s.cfg.Schedule), Err: cause})
		return &o
	}
	s.log.Warn("protocol error, retrying", "stage", stage, "delay", delay, "err", cause)
	return s.waitOrStop(ctx, delay)
}

// transfer runs the probe / offset discovery / chunk loop until a terminal
// outcome.
func (s *Session) transfer(ctx context.Context, auth videoapi.PresignedAuth, sessionURL string) Outcome {
	probeBudget := retry.NewBudget(s.cfg.Schedule)
	offsetBudget := retry.NewBudget(s.cfg.Schedule)
	chunkBudget := retry.NewBudget(s.cfg.Schedule)

	// knownOffset < 0 means the server's acknowledged offset must be
	// (re)discovered before the next chunk.
	knownOffset := int64(-1)
	probeNeeded := true
	baselined := false

	for {
		if out := s.checkStop(ctx); out != nil {
			return *out
		}

		if probeNeeded {
			if out := s.probeRoute(ctx, auth, sessionURL, probeBudget); out != nil {
				return *out
			}
			probeBudget.Reset()
			probeNeeded = false
		}

		if knownOffset < 0 {
			off, out := s.discoverOffset(ctx, auth, sessionURL, offsetBudget)
			if out != nil {
				return *out
			}
			offsetBudget.Reset()
			knownOffset = off
			if !baselined {
				// Throughput is measured against this session's
				// starting point, not the whole upload's.
				s.baseOffset = off
				baselined = true
			}
			s.acked = off
		}

		if knownOffset >= s.in.FileSize {
			s.acked = s.in.FileSize
			return Outcome{Kind: OutcomeDone, BytesAcked: s.acked}
		}

		chunk, err := readChunk(s.in.FilePath, knownOffset, s.cfg.ChunkSize, s.in.FileSize)
		if err != nil {
			return s.fail(fmt.Errorf("read source file: %w", err))
		}

		headers := s.protocolHeaders(auth)
		headers["Upload-Offset"] = strconv.FormatInt(knownOffset, 10)
		headers["Content-Type"] = offsetOctetsMIME

		resp, err := s.http.Do(ctx, http.MethodPatch, sessionURL, bytes.NewReader(chunk), headers)
		if err != nil {
			if out := s.checkStop(ctx); out != nil {
				return *out
			}
			if httpc.IsNetworkLoss(err) {
				return s.pause(err)
			}
			if out := s.consume(ctx, chunkBudget, "chunk transfer", err); out != nil {
				return *out
			}
			knownOffset = -1
			probeNeeded = true
			continue
		}

		switch {
		case resp.StatusCode == http.StatusLocked:
			// Transient server-side contention: wait and resync, never
			// counted against the retry budget.
			s.log.Debug("upload session locked, waiting", "delay", s.cfg.LockedDelay)
			if out := s.waitOrStop(ctx, s.cfg.LockedDelay); out != nil {
				return *out
			}
			knownOffset = -1

		case resp.Success():
			newOffset, ok := parseOffset(resp.Header)
			if !ok {
				// Ambiguous success: re-discover rather than trusting
				// locally computed arithmetic.
				s.log.Debug("success without offset, re-discovering")
				knownOffset = -1
				continue
			}
			chunkBudget.Reset()
			knownOffset = newOffset
			s.acked = newOffset
			s.reportProgress()

		default:
			err := fmt.Errorf("chunk transfer: %w", resp.Error())
			if out := s.consume(ctx, chunkBudget, "chunk transfer", err); out != nil {
				return *out
			}
			knownOffset = -1
			probeNeeded = true
		}
	}
}

// probeRoute issues zero-payload connectivity checks against the session
// URL until one succeeds. Transient server trouble retries on a short
// fixed delay without touching the stage budget.
func (s *Session) probeRoute(ctx context.Context, auth videoapi.PresignedAuth, sessionURL string, budget *retry.Budget) *Outcome {
	for {
		if out := s.checkStop(ctx); out != nil {
			return out
		}

		resp, err := s.http.Do(ctx, http.MethodOptions, sessionURL, nil, s.protocolHeaders(auth))
		if err != nil {
			if out := s.checkStop(ctx); out != nil {
				return out
			}
			if httpc.IsNetworkLoss(err) {
				o := s.pause(err)
				return &o
			}
			if out := s.consume(ctx, budget, "route probe", err); out != nil {
				return out
			}
			continue
		}

		switch {
		case resp.Success():
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			// Transient; retry shortly, uncounted.
			if out := s.waitOrStop(ctx, s.cfg.ProbeDelay); out != nil {
				return out
			}
		default:
			if out := s.consume(ctx, budget, "route probe", resp.Error()); out != nil {
				return out
			}
		}
	}
}

// discoverOffset queries the server's acknowledged byte offset.
func (s *Session) discoverOffset(ctx context.Context, auth videoapi.PresignedAuth, sessionURL string, budget *retry.Budget) (int64, *Outcome) {
	for {
		if out := s.checkStop(ctx); out != nil {
			return 0, out
		}

		resp, err := s.http.Do(ctx, http.MethodHead, sessionURL, nil, s.protocolHeaders(auth))
		if err != nil {
			if out := s.checkStop(ctx); out != nil {
				return 0, out
			}
			if httpc.IsNetworkLoss(err) {
				o := s.pause(err)
				return 0, &o
			}
			if out := s.consume(ctx, budget, "offset discovery", err); out != nil {
				return 0, out
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusLocked:
			if out := s.waitOrStop(ctx, s.cfg.LockedDelay); out != nil {
				return 0, out
			}

		case resp.Success():
			off, ok := parseOffset(resp.Header)
			if !ok {
				err := fmt.Errorf("offset discovery: missing Upload-Offset header")
				if out := s.consume(ctx, budget, "offset discovery", err); out != nil {
					return 0, out
				}
				continue
			}
			return off, nil

		default:
			if out := s.consume(ctx, budget, "offset discovery", resp.Error()); out != nil {
				return 0, out
			}
		}
	}
}

func (s *Session) reportProgress() {
	if s.cb.OnProgress == nil {
		return
	}

	elapsed := time.Since(s.started).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(s.acked-s.baseOffset) / elapsed
	}

	var eta time.Duration
	if rate > 0 {
		remaining := float64(s.in.FileSize - s.acked)
		eta = time.Duration(remaining / rate * float64(time.Second))
	}

	fraction := 0.0
	if s.in.FileSize > 0 {
		fraction = float64(s.acked) / float64(s.in.FileSize)
	}

	s.cb.OnProgress(Progress{
		BytesAcked: s.acked,
		Fraction:   fraction,
		Rate:       rate,
		ETA:        eta,
	})
}

func parseOffset(h http.Header) (int64, bool) {
	v := h.Get("Upload-Offset")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
