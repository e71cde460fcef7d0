// Package selector draws random sequence numbers until one resolves to an
// entry the exclusion policy accepts.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/DeafMist/oeis-bot/internal/dedupe"
	"github.com/DeafMist/oeis-bot/internal/filter"
	"github.com/DeafMist/oeis-bot/internal/logger"
	"github.com/DeafMist/oeis-bot/internal/models"
	"github.com/DeafMist/oeis-bot/internal/oeis"
)

// maxRedraws bounds how often a number already tried this run is redrawn.
const maxRedraws = 8

var (
	// ErrExhausted is matched by the error returned when no eligible entry was
	// found within the attempt budget.
	ErrExhausted = errors.New("no eligible sequence within attempt budget")
	// ErrExcluded reports that a pinned sequence carries an excluded keyword.
	ErrExcluded = errors.New("sequence excluded by keyword policy")
)

// ExhaustedError describes a run that used up its attempts.
type ExhaustedError struct {
	Attempts    int
	NotFound    int
	FilteredOut int
	Transient   int
	// Last is the most recent transient fetch error, if any.
	Last error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("%s: %d attempts (%d not found, %d filtered, %d transient)",
		ErrExhausted.Error(), e.Attempts, e.NotFound, e.FilteredOut, e.Transient)
	if e.Last != nil {
		msg += ": last error: " + e.Last.Error()
	}
	return msg
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Config bounds the search.
type Config struct {
	MaxID          int
	Attempts       int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// Rand overrides the process seeded source. Tests use it for determinism.
	Rand *rand.Rand
}

// Selector drives the fetch and filter loop.
type Selector struct {
	fetcher oeis.Fetcher
	policy  filter.Policy
	cfg     Config
	intN    func(int) int
	log     *slog.Logger
}

// New creates a Selector. Non-positive MaxID or Attempts are raised to 1.
func New(fetcher oeis.Fetcher, policy filter.Policy, cfg Config, log *slog.Logger) *Selector {
	if cfg.MaxID <= 0 {
		cfg.MaxID = 1
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.BackoffInitial < 0 {
		cfg.BackoffInitial = 0
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = cfg.BackoffInitial
	}
	if log == nil {
		log = logger.Discard()
	}

	intN := rand.IntN
	if cfg.Rand != nil {
		intN = cfg.Rand.IntN
	}

	return &Selector{
		fetcher: fetcher,
		policy:  policy,
		cfg:     cfg,
		intN:    intN,
		log:     log,
	}
}

// Select returns the first eligible sequence drawn from [1, MaxID]. It makes at
// most Attempts fetches and then fails with an *ExhaustedError. Not found and
// filtered entries move straight to the next attempt; transient fetch errors
// wait out a doubling backoff first.
func (s *Selector) Select(ctx context.Context) (*models.Sequence, error) {
	tried := dedupe.NewSet(s.cfg.Attempts)
	result := &ExhaustedError{Attempts: s.cfg.Attempts}
	delay := s.cfg.BackoffInitial

	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id := s.draw(tried)
		tried.MarkSeen(id)

		seq, err := s.fetcher.Fetch(ctx, id)
		switch {
		case errors.Is(err, oeis.ErrNotFound):
			result.NotFound++
			s.log.Debug("sequence not found", slog.String("sequence", models.ANumber(id)), slog.Int("attempt", attempt))
			delay = s.cfg.BackoffInitial
			continue
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.Transient++
			result.Last = err
			s.log.Warn("fetch failed",
				slog.Any("err", err),
				slog.String("sequence", models.ANumber(id)),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
			)
			if attempt == s.cfg.Attempts {
				continue
			}
			if err := wait(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
			if delay > s.cfg.BackoffMax {
				delay = s.cfg.BackoffMax
			}
			continue
		}

		delay = s.cfg.BackoffInitial
		if hits := s.policy.Matches(seq.Keywords); len(hits) > 0 {
			result.FilteredOut++
			s.log.Debug("sequence filtered out",
				slog.String("sequence", seq.ANumber()),
				slog.Any("keywords", hits),
				slog.Int("attempt", attempt),
			)
			continue
		}

		s.log.Info("sequence selected", slog.String("sequence", seq.ANumber()), slog.Int("attempt", attempt))
		return seq, nil
	}

	return nil, result
}

// SelectID fetches exactly id once. Unlike Select a missing or excluded entry is
// final: the error wraps oeis.ErrNotFound or ErrExcluded.
func (s *Selector) SelectID(ctx context.Context, id int) (*models.Sequence, error) {
	seq, err := s.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if hits := s.policy.Matches(seq.Keywords); len(hits) > 0 {
		return nil, fmt.Errorf("%s %v: %w", seq.ANumber(), hits, ErrExcluded)
	}
	return seq, nil
}

func (s *Selector) draw(tried *dedupe.Set) int {
	id := s.intN(s.cfg.MaxID) + 1
	for i := 0; i < maxRedraws && tried.IsSeen(id); i++ {
		id = s.intN(s.cfg.MaxID) + 1
	}
	return id
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
