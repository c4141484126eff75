package triage

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"

	"github.com/linnemanlabs/tickettriage/internal/ticket"
)

// Options controls a directory run.
type Options struct {
	InputDir    string
	OutputDir   string
	Ext         string
	Move        bool
	SkipFailed  bool
	FrontMatter bool
}

// Service is the business boundary for triage operations.
type Service struct {
	store    Store
	engine   *Engine
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		engine:   engine,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Process triages every ticket in opts.InputDir, one at a time, in name
// order. Model failures are recorded per ticket and do not stop the run;
// file system errors and context cancellation do. The summary is returned
// even when err is non-nil.
func (s *Service) Process(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	sum := &Summary{
		RunID:     ulid.Make().String(),
		Backend:   s.engine.Backend(),
		Model:     s.engine.Model(),
		StartedAt: start,
	}
	L := s.logger.With("run_id", sum.RunID)

	names, err := ticket.List(opts.InputDir, opts.Ext)
	if err != nil {
		return sum, err
	}
	if err := ticket.EnsureDir(opts.OutputDir); err != nil {
		return sum, err
	}

	L.Info(ctx, "starting ticket triage",
		"backend", sum.Backend,
		"model", sum.Model,
		"input_dir", opts.InputDir,
		"output_dir", opts.OutputDir,
		"tickets", len(names),
	)

	var runErr error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			L.Warn(ctx, "run interrupted, remaining tickets left untriaged", "next_ticket", name)
			runErr = err
			break
		}
		if err := s.processOne(ctx, L, sum.RunID, name, opts); err != nil {
			runErr = err
			break
		}
	}

	results, err := s.store.List(ctx)
	if err != nil && runErr == nil {
		runErr = fmt.Errorf("list results: %w", err)
	}
	for _, r := range results {
		if r.RunID != sum.RunID || !r.Status.Final() {
			continue
		}
		sum.Results = append(sum.Results, r)
		sum.Processed++
		if r.Status == StatusFailed {
			sum.Failed++
		}
		if !r.Written() {
			sum.Skipped++
		}
	}
	sum.Duration = time.Since(start).Seconds()

	if s.metrics != nil {
		s.metrics.ObserveRun(sum)
	}

	L.Info(ctx, "all tickets have been processed",
		"processed", sum.Processed,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"duration", sum.Duration,
	)

	if s.notifier != nil && sum.Processed > 0 {
		// notification is best effort, the triaged files are already on disk
		if err := s.notifier.Send(context.WithoutCancel(ctx), sum); err != nil {
			L.Error(ctx, err, "failed to send run summary")
		}
	}

	return sum, runErr
}

func (s *Service) processOne(ctx context.Context, runL log.Logger, runID, name string, opts Options) error {
	t, err := ticket.Read(opts.InputDir, name)
	if err != nil {
		return err
	}

	id := ulid.Make().String()
	L := runL.With("triage_id", id, "ticket", name)
	L.Info(ctx, "reading ticket", "bytes", len(t.Content))

	fp := Fingerprint(t.Content)
	if prev, ok, err := s.store.GetByFingerprint(ctx, fp); err != nil {
		return fmt.Errorf("lookup fingerprint: %w", err)
	} else if ok && prev.RunID == runID {
		L.Warn(ctx, "ticket content duplicates an earlier ticket", "duplicate_of", prev.Ticket)
	}

	result := &Result{
		ID:          id,
		RunID:       runID,
		Ticket:      name,
		Fingerprint: fp,
		Status:      StatusPending,
		Backend:     s.engine.Backend(),
		Model:       s.engine.Model(),
		CreatedAt:   time.Now(),
	}
	if err := s.store.Put(ctx, result); err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	result.Status = StatusInProgress
	if err := s.store.Put(ctx, result); err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	rr := s.engine.Run(ctx, id, t)

	if err := ctx.Err(); err != nil {
		// an interrupted call leaves the ticket for the next run
		result.Status = StatusPending
		result.Error = err.Error()
		s.putDetached(ctx, L, result)
		L.Warn(ctx, "run interrupted during model call, ticket left untriaged")
		return err
	}

	result.Status = rr.Status
	result.Report = rr.Report
	result.Model = rr.Model
	result.CompletedAt = rr.CompletedAt
	result.Duration = rr.Duration
	result.TokensIn = rr.InputTokensUsed
	result.TokensOut = rr.OutputTokensUsed
	if rr.Err != nil {
		result.Error = rr.Err.Error()
	}

	if rr.Status == StatusFailed && opts.SkipFailed {
		L.Warn(ctx, "ticket left untriaged after failed model call")
	} else {
		content := ticket.Compose(t.Content, rr.Report.Raw)
		if opts.FrontMatter {
			content, err = ticket.WithFrontMatter(content, frontMatterFor(result))
			if err != nil {
				return s.failWrite(ctx, L, result, err)
			}
		}
		path, err := ticket.Write(opts.OutputDir, name, content)
		if err != nil {
			return s.failWrite(ctx, L, result, err)
		}
		result.OutputPath = path
		L.Info(ctx, "wrote triaged ticket", "path", path, "status", result.Status)
	}

	// only a successful triage consumes the source ticket
	if opts.Move && result.Status == StatusComplete && result.Written() {
		if err := ticket.Remove(t); err != nil {
			return err
		}
		result.Moved = true
	}

	if err := s.store.Put(ctx, result); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

// failWrite records a ticket whose triaged copy could not be produced and
// returns err so the run stops.
func (s *Service) failWrite(ctx context.Context, L log.Logger, result *Result, err error) error {
	result.Status = StatusFailed
	result.Error = err.Error()
	result.OutputPath = ""
	s.putDetached(ctx, L, result)
	return err
}

// putDetached stores result even when ctx is already cancelled. Store
// failures are only logged.
func (s *Service) putDetached(ctx context.Context, L log.Logger, result *Result) {
	if err := s.store.Put(context.WithoutCancel(ctx), result); err != nil {
		L.Error(ctx, err, "failed to store result", "status", result.Status)
	}
}

// Fingerprint identifies ticket content independent of its file name.
func Fingerprint(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func frontMatterFor(r *Result) ticket.FrontMatter {
	return ticket.FrontMatter{
		TriageID:  r.ID,
		Backend:   r.Backend,
		Model:     r.Model,
		Status:    string(r.Status),
		Urgency:   r.Report.Urgency,
		Category:  r.Report.Category,
		NewStatus: r.Report.Status,
		TriagedAt: r.CompletedAt.UTC(),
	}
}
