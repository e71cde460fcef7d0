package runner

import (
	"log/slog"
	"net/http"

	"github.com/DeafMist/oeis-bot/internal/config"
	"github.com/DeafMist/oeis-bot/internal/events"
	"github.com/DeafMist/oeis-bot/internal/filter"
	"github.com/DeafMist/oeis-bot/internal/mastodon"
	"github.com/DeafMist/oeis-bot/internal/oeis"
	"github.com/DeafMist/oeis-bot/internal/processing"
	"github.com/DeafMist/oeis-bot/internal/selector"
)

// FromConfig assembles a Runner with the HTTP fetcher, the Mastodon publisher and,
// when brokers are configured, the Kafka announcer. The returned func releases
// the Kafka writer.
func FromConfig(cfg *config.Common, log *slog.Logger) (*Runner, func()) {
	fetcher := oeis.NewClient(&http.Client{}, cfg.OEISBaseURL, cfg.FetchTimeout)
	sel := selector.New(fetcher, filter.NewPolicy(cfg.ExcludedKeywords), selector.Config{
		MaxID:          cfg.MaxSequenceID,
		Attempts:       cfg.Attempts,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
	}, log)

	var publisher Publisher
	if !cfg.DryRun {
		publisher = mastodon.NewClient(nil, mastodon.Config{
			InstanceURL: cfg.InstanceURL,
			AccessToken: cfg.AccessToken,
			Visibility:  cfg.Visibility,
			Timeout:     cfg.PublishTimeout,
		})
	}

	opts := Options{SequenceID: cfg.SequenceID, DryRun: cfg.DryRun}
	closeFn := func() {}
	if len(cfg.KafkaBrokers) > 0 {
		announcer := events.NewKafkaAnnouncer(cfg.KafkaBrokers, cfg.KafkaTopic)
		opts.Announcer = announcer
		closeFn = func() {
			if err := announcer.Close(); err != nil {
				log.Warn("close kafka writer", slog.Any("err", err))
			}
		}
	}

	log.Info("runner configured",
		slog.String("oeis", cfg.OEISBaseURL),
		slog.Int("max_id", cfg.MaxSequenceID),
		slog.Int("attempts", cfg.Attempts),
		slog.Duration("fetch_timeout", cfg.FetchTimeout),
		slog.Any("excluded", cfg.ExcludedKeywords),
		slog.Bool("dry_run", cfg.DryRun),
		slog.Bool("announce", opts.Announcer != nil),
	)

	return New(sel, processing.NewFormatter(cfg.MaxChars, cfg.MaxTerms), publisher, opts, log), closeFn
}
