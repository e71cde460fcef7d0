package selector_test

import (
	"context"
	"errors"
	"math/big"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/DeafMist/oeis-bot/internal/filter"
	"github.com/DeafMist/oeis-bot/internal/models"
	"github.com/DeafMist/oeis-bot/internal/oeis"
	"github.com/DeafMist/oeis-bot/internal/selector"
	"github.com/stretchr/testify/require"
)

type response struct {
	seq *models.Sequence
	err error
}

// scriptedFetcher replays responses in order and repeats the last one.
type scriptedFetcher struct {
	responses []response
	calls     []int
}

func (f *scriptedFetcher) Fetch(_ context.Context, id int) (*models.Sequence, error) {
	f.calls = append(f.calls, id)
	i := len(f.calls) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	r := f.responses[i]
	if r.seq != nil {
		seq := *r.seq
		seq.Number = id
		return &seq, nil
	}
	return nil, r.err
}

func notFound() response {
	return response{err: oeis.ErrNotFound}
}

func record(name string, tags ...string) response {
	return response{seq: &models.Sequence{Name: name, Keywords: tags}}
}

func terms(values ...int64) []*big.Int {
	out := make([]*big.Int, 0, len(values))
	for _, v := range values {
		out = append(out, big.NewInt(v))
	}
	return out
}

func newSelector(f oeis.Fetcher, attempts int) *selector.Selector {
	return selector.New(f, filter.DefaultPolicy(), selector.Config{
		MaxID:          380000,
		Attempts:       attempts,
		BackoffInitial: time.Millisecond,
		BackoffMax:     4 * time.Millisecond,
		Rand:           rand.New(rand.NewPCG(1, 2)),
	}, nil)
}

func TestSelectSkipsNotFoundAndFiltered(t *testing.T) {
	fib := &models.Sequence{Name: "Fibonacci numbers", Terms: terms(1, 1, 2, 3, 5, 8), Keywords: []string{}}
	f := &scriptedFetcher{responses: []response{
		notFound(),
		record("duplicate", "dupe"),
		{seq: fib},
	}}

	seq, err := newSelector(f, 10).Select(context.Background())
	require.NoError(t, err)
	require.Len(t, f.calls, 3)
	require.Equal(t, "Fibonacci numbers", seq.Name)
	require.Equal(t, "1, 1, 2, 3, 5, 8", joinTerms(seq.Terms))
	require.Equal(t, f.calls[2], seq.Number)
}

func TestSelectExhaustsExactlyAtBudget(t *testing.T) {
	for _, attempts := range []int{1, 5, 17} {
		f := &scriptedFetcher{responses: []response{notFound()}}

		seq, err := newSelector(f, attempts).Select(context.Background())
		require.Nil(t, seq)
		require.ErrorIs(t, err, selector.ErrExhausted)
		require.Len(t, f.calls, attempts)

		var exhausted *selector.ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		require.Equal(t, attempts, exhausted.NotFound)
		require.Zero(t, exhausted.Transient)
	}
}

func TestSelectNeverReturnsExcluded(t *testing.T) {
	responses := make([]response, 0, len(filter.DefaultExcluded))
	for _, tag := range filter.DefaultExcluded {
		responses = append(responses, record("rejected", "nonn", tag))
	}
	f := &scriptedFetcher{responses: responses}

	_, err := newSelector(f, len(responses)).Select(context.Background())
	require.ErrorIs(t, err, selector.ErrExhausted)

	var exhausted *selector.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, len(responses), exhausted.FilteredOut)
}

func TestSelectRetriesTransientErrors(t *testing.T) {
	boom := errors.New("connection reset")
	f := &scriptedFetcher{responses: []response{
		{err: boom},
		{err: boom},
		record("Primes", "nonn", "core"),
	}}

	seq, err := newSelector(f, 5).Select(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Primes", seq.Name)
	require.Len(t, f.calls, 3)
}

func TestSelectTransientExhaustionKeepsCause(t *testing.T) {
	boom := errors.New("status 503")
	f := &scriptedFetcher{responses: []response{{err: boom}}}

	_, err := newSelector(f, 3).Select(context.Background())
	require.ErrorIs(t, err, selector.ErrExhausted)
	require.ErrorIs(t, err, boom)
	require.Len(t, f.calls, 3)

	var exhausted *selector.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Transient)
	require.Contains(t, err.Error(), "status 503")
}

func TestSelectStopsOnCancelledContext(t *testing.T) {
	f := &scriptedFetcher{responses: []response{notFound()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSelector(f, 10).Select(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, f.calls)
}

func TestSelectCancelledDuringBackoff(t *testing.T) {
	f := &scriptedFetcher{responses: []response{{err: errors.New("timeout")}}}
	sel := selector.New(f, filter.DefaultPolicy(), selector.Config{
		MaxID:          100,
		Attempts:       5,
		BackoffInitial: time.Minute,
		BackoffMax:     time.Minute,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := sel.Select(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, f.calls, 1)
	require.Less(t, time.Since(start), time.Second)
}

func TestSelectDrawsWithinRange(t *testing.T) {
	f := &scriptedFetcher{responses: []response{notFound()}}
	sel := selector.New(f, filter.DefaultPolicy(), selector.Config{
		MaxID:    3,
		Attempts: 50,
		Rand:     rand.New(rand.NewPCG(7, 7)),
	}, nil)

	_, err := sel.Select(context.Background())
	require.ErrorIs(t, err, selector.ErrExhausted)
	require.Len(t, f.calls, 50)
	for _, id := range f.calls {
		require.GreaterOrEqual(t, id, 1)
		require.LessOrEqual(t, id, 3)
	}
}

func TestSelectAvoidsRepeatsWithinRun(t *testing.T) {
	f := &scriptedFetcher{responses: []response{notFound()}}
	sel := selector.New(f, filter.DefaultPolicy(), selector.Config{
		MaxID:    4,
		Attempts: 4,
		Rand:     rand.New(rand.NewPCG(3, 9)),
	}, nil)

	_, err := sel.Select(context.Background())
	require.ErrorIs(t, err, selector.ErrExhausted)

	seen := map[int]bool{}
	for _, id := range f.calls[:2] {
		require.False(t, seen[id], "id %d fetched twice", id)
		seen[id] = true
	}
}

func TestSelectID(t *testing.T) {
	f := &scriptedFetcher{responses: []response{record("Fibonacci numbers", "core")}}
	seq, err := newSelector(f, 1).SelectID(context.Background(), 45)
	require.NoError(t, err)
	require.Equal(t, 45, seq.Number)
	require.Equal(t, []int{45}, f.calls)

	f = &scriptedFetcher{responses: []response{record("old", "dead")}}
	_, err = newSelector(f, 1).SelectID(context.Background(), 46)
	require.ErrorIs(t, err, selector.ErrExcluded)

	f = &scriptedFetcher{responses: []response{notFound()}}
	_, err = newSelector(f, 1).SelectID(context.Background(), 47)
	require.ErrorIs(t, err, oeis.ErrNotFound)
	require.Len(t, f.calls, 1)
}

func joinTerms(ts []*big.Int) string {
	out := ""
	for i, n := range ts {
		if i > 0 {
			out += ", "
		}
		out += n.String()
	}
	return out
}
