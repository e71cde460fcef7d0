// Package runner performs one complete run: select a sequence, format it,
// publish it and announce the result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DeafMist/oeis-bot/internal/logger"
	"github.com/DeafMist/oeis-bot/internal/mastodon"
	"github.com/DeafMist/oeis-bot/internal/models"
)

// ErrPublish wraps every failure to submit the status.
var ErrPublish = errors.New("publish failed")

// Selector picks the sequence to post.
type Selector interface {
	Select(ctx context.Context) (*models.Sequence, error)
	SelectID(ctx context.Context, id int) (*models.Sequence, error)
}

// Formatter renders a sequence as status text.
type Formatter interface {
	Format(seq *models.Sequence) string
}

// Publisher submits status text.
type Publisher interface {
	PostStatus(ctx context.Context, text, idempotencyKey string) (*mastodon.Status, error)
}

// Announcer is told about every published sequence.
type Announcer interface {
	Announce(ctx context.Context, ev models.PostedEvent) error
}

// Options tune a Runner.
type Options struct {
	// SequenceID pins the run to one sequence instead of a random draw.
	SequenceID int
	// DryRun formats the status but does not publish it.
	DryRun bool
	// Announcer is optional.
	Announcer Announcer
}

// Result describes a finished run.
type Result struct {
	RunID    string
	Sequence *models.Sequence
	Payload  string
	Status   *mastodon.Status
	DryRun   bool
}

// Runner wires the run's collaborators together.
type Runner struct {
	selector  Selector
	formatter Formatter
	publisher Publisher
	opts      Options
	log       *slog.Logger

	newID func() string
	now   func() time.Time
}

// New creates a Runner. publisher may be nil only for dry runs.
func New(sel Selector, formatter Formatter, publisher Publisher, opts Options, log *slog.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		selector:  sel,
		formatter: formatter,
		publisher: publisher,
		opts:      opts,
		log:       log,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Run executes one run. Selection errors are returned wrapped as they are
// (selector.ErrExhausted, oeis.ErrNotFound, ...); publish errors wrap ErrPublish.
// The status is submitted at most once.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID := r.newID()
	log := r.log.With(slog.String("run_id", runID))

	seq, err := r.pick(ctx)
	if err != nil {
		return nil, fmt.Errorf("select sequence: %w", err)
	}

	res := &Result{
		RunID:    runID,
		Sequence: seq,
		Payload:  r.formatter.Format(seq),
		DryRun:   r.opts.DryRun,
	}

	if r.opts.DryRun {
		log.Info("dry run, not publishing",
			slog.String("sequence", seq.ANumber()),
			slog.String("status", res.Payload),
		)
		return res, nil
	}
	if r.publisher == nil {
		return nil, fmt.Errorf("%w: no publisher configured", ErrPublish)
	}

	status, err := r.publisher.PostStatus(ctx, res.Payload, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPublish, seq.ANumber(), err)
	}
	res.Status = status

	log.Info("status published",
		slog.String("sequence", seq.ANumber()),
		slog.String("status_id", status.ID),
		slog.String("status_url", status.URL),
	)

	r.announce(ctx, log, res)
	return res, nil
}

func (r *Runner) pick(ctx context.Context) (*models.Sequence, error) {
	if r.opts.SequenceID > 0 {
		return r.selector.SelectID(ctx, r.opts.SequenceID)
	}
	return r.selector.Select(ctx)
}

// announce never fails the run: the status is already out.
func (r *Runner) announce(ctx context.Context, log *slog.Logger, res *Result) {
	if r.opts.Announcer == nil {
		return
	}

	ev := models.PostedEvent{
		RunID:     res.RunID,
		Sequence:  res.Sequence.ANumber(),
		Number:    res.Sequence.Number,
		Name:      res.Sequence.Name,
		StatusID:  res.Status.ID,
		StatusURL: res.Status.URL,
		PostedAt:  r.now().UTC(),
	}
	if err := r.opts.Announcer.Announce(ctx, ev); err != nil {
		log.Warn("announce posted sequence", slog.Any("err", err), slog.String("sequence", ev.Sequence))
	}
}
