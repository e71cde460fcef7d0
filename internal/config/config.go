package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// minPostChars leaves room for the header line and the canonical URL of any
// seven digit A-number plus separators.
const minPostChars = 64

// Common contains the parameters of a single run, shared by every binary.
type Common struct {
	OEISBaseURL      string
	MaxSequenceID    int
	Attempts         int
	FetchTimeout     time.Duration
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	ExcludedKeywords []string

	MaxChars   int
	MaxTerms   int
	Visibility string

	InstanceURL    string
	AccessToken    string
	PublishTimeout time.Duration

	SequenceID int
	DryRun     bool

	KafkaBrokers []string
	KafkaTopic   string
}

// Poster holds configuration for the one-shot poster.
type Poster struct {
	Common
}

// Trigger describes the long-running trigger host.
type Trigger struct {
	Common
	BindAddr string
	Schedule string
	Timezone string
}

// LoadPoster builds a Poster config from environment variables.
func LoadPoster() (*Poster, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}
	return &Poster{Common: *common}, nil
}

// LoadTrigger builds a Trigger config from environment variables.
func LoadTrigger() (*Trigger, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Trigger{
		Common:   *common,
		BindAddr: getEnv("TRIGGER_BIND_ADDR", "0.0.0.0:8080"),
		Schedule: strings.TrimSpace(os.Getenv("TRIGGER_SCHEDULE")),
		Timezone: getEnv("TRIGGER_TIMEZONE", "UTC"),
	}

	if c.SequenceID != 0 {
		return nil, fmt.Errorf("POST_SEQUENCE_ID cannot be used with the trigger host")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TRIGGER_TIMEZONE %q: %w", c.Timezone, err)
	}

	return c, nil
}

func loadCommon() (*Common, error) {
	c := &Common{
		OEISBaseURL:      strings.TrimRight(getEnv("OEIS_BASE_URL", "https://oeis.org"), "/"),
		MaxSequenceID:    getInt("OEIS_MAX_ID", 380000),
		Attempts:         getInt("SELECT_ATTEMPTS", 15),
		FetchTimeout:     getDuration("FETCH_TIMEOUT", "10s"),
		BackoffInitial:   getDuration("FETCH_BACKOFF", "1s"),
		BackoffMax:       getDuration("FETCH_BACKOFF_MAX", "10s"),
		ExcludedKeywords: splitAndTrim(getEnv("EXCLUDED_KEYWORDS", "dead,dumb,dupe,less,obsc,probation,uned")),
		MaxChars:         getInt("POST_MAX_CHARS", 500),
		MaxTerms:         getInt("POST_MAX_TERMS", 40),
		Visibility:       getEnv("POST_VISIBILITY", "public"),
		InstanceURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("MASTODON_INSTANCE_URL")), "/"),
		AccessToken:      strings.TrimSpace(os.Getenv("MASTODON_ACCESS_TOKEN")),
		PublishTimeout:   getDuration("PUBLISH_TIMEOUT", "30s"),
		SequenceID:       getInt("POST_SEQUENCE_ID", 0),
		DryRun:           getBool("DRY_RUN", false),
		KafkaBrokers:     splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "oeis_posted"),
	}

	if c.MaxSequenceID <= 0 {
		return nil, fmt.Errorf("OEIS_MAX_ID must be positive")
	}
	if c.Attempts <= 0 {
		return nil, fmt.Errorf("SELECT_ATTEMPTS must be positive")
	}
	if c.FetchTimeout <= 0 {
		return nil, fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.BackoffInitial < 0 || c.BackoffMax < c.BackoffInitial {
		return nil, fmt.Errorf("FETCH_BACKOFF must be non-negative and not exceed FETCH_BACKOFF_MAX")
	}
	if len(c.ExcludedKeywords) == 0 {
		return nil, fmt.Errorf("EXCLUDED_KEYWORDS must contain at least one keyword")
	}
	if c.MaxChars < minPostChars {
		return nil, fmt.Errorf("POST_MAX_CHARS must be at least %d", minPostChars)
	}
	if c.MaxTerms < 0 {
		return nil, fmt.Errorf("POST_MAX_TERMS cannot be negative")
	}
	if c.SequenceID < 0 || c.SequenceID > c.MaxSequenceID {
		return nil, fmt.Errorf("POST_SEQUENCE_ID must be within [1, %d]", c.MaxSequenceID)
	}

	switch c.Visibility {
	case "public", "unlisted", "private", "direct":
	default:
		return nil, fmt.Errorf("POST_VISIBILITY %q is not a Mastodon visibility", c.Visibility)
	}

	if !c.DryRun {
		if c.InstanceURL == "" {
			return nil, fmt.Errorf("MASTODON_INSTANCE_URL must be set")
		}
		if c.AccessToken == "" {
			return nil, fmt.Errorf("MASTODON_ACCESS_TOKEN must be set")
		}
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
