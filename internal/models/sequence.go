package models

import (
	"fmt"
	"math/big"
	"time"
)

// Sequence is one OEIS entry as fetched for a single run.
type Sequence struct {
	Number   int
	Name     string
	Terms    []*big.Int
	Keywords []string
	Offset   string
	Author   string
	Created  time.Time
	Modified time.Time
	URL      string
}

// ANumber renders the identifier the way OEIS does, e.g. A000045.
func (s *Sequence) ANumber() string {
	return ANumber(s.Number)
}

// ANumber formats n as a zero padded A-number.
func ANumber(n int) string {
	return fmt.Sprintf("A%06d", n)
}

// SequenceURL is the canonical page of sequence n.
func SequenceURL(n int) string {
	return "https://oeis.org/" + ANumber(n)
}

// Link returns URL, falling back to the canonical page.
func (s *Sequence) Link() string {
	if s.URL != "" {
		return s.URL
	}
	return SequenceURL(s.Number)
}

// PostedEvent is announced after a sequence has been published.
type PostedEvent struct {
	RunID     string    `json:"run_id"`
	Sequence  string    `json:"sequence"`
	Number    int       `json:"number"`
	Name      string    `json:"name"`
	StatusID  string    `json:"status_id"`
	StatusURL string    `json:"status_url"`
	PostedAt  time.Time `json:"posted_at"`
}
