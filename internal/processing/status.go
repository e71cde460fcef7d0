// Package processing renders sequences as status text that fits a post limit.
package processing

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/DeafMist/oeis-bot/internal/models"
)

const (
	DefaultMaxChars = 500
	DefaultMaxTerms = 40

	ellipsis  = "…"
	separator = "\n\n"
	termSep   = ", "
)

var whitespace = regexp.MustCompile(`\s+`)

// Formatter turns a sequence into status text of at most MaxChars runes.
//
// Content is kept in priority order: the header line with the A-number and the
// URL always stay, then the name, then the terms. When the text is too long
// trailing terms go first, then the whole terms block, and only then is the
// name shortened.
type Formatter struct {
	MaxChars int
	MaxTerms int
}

// NewFormatter returns a Formatter, substituting defaults for non-positive maxChars
// and negative maxTerms.
func NewFormatter(maxChars, maxTerms int) *Formatter {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if maxTerms < 0 {
		maxTerms = DefaultMaxTerms
	}
	return &Formatter{MaxChars: maxChars, MaxTerms: maxTerms}
}

// Format renders seq. The same sequence always yields the same text.
func (f *Formatter) Format(seq *models.Sequence) string {
	header := "OEIS sequence " + seq.ANumber()
	link := seq.Link()
	name := CleanText(seq.Name)

	terms := make([]string, 0, min(len(seq.Terms), f.MaxTerms))
	for _, t := range seq.Terms {
		if len(terms) == f.MaxTerms {
			break
		}
		terms = append(terms, t.String())
	}
	clipped := len(seq.Terms) > len(terms)

	head := header
	if name != "" {
		head += "\n" + name
	}

	// Everything except the terms block.
	base := runeLen(head) + len(separator) + runeLen(link)
	if n := f.fittingTerms(terms, clipped, base); n > 0 {
		return clamp(render(head, termsBlock(terms[:n], clipped || n < len(terms)), link), f.MaxChars)
	}

	if base <= f.MaxChars {
		return render(head, "", link)
	}

	// Room left for the name once header, newline, separator and URL are placed.
	room := f.MaxChars - runeLen(header) - 1 - len(separator) - runeLen(link)
	if short := Truncate(name, room); short != "" {
		return clamp(render(header+"\n"+short, "", link), f.MaxChars)
	}
	return clamp(render(header, "", link), f.MaxChars)
}

// fittingTerms returns the largest number of leading terms whose block fits next
// to base runes of other content.
func (f *Formatter) fittingTerms(terms []string, clipped bool, base int) int {
	// Terms are ASCII, so byte lengths are rune lengths.
	width := 0
	widths := make([]int, len(terms)+1)
	for i, t := range terms {
		if i > 0 {
			width += len(termSep)
		}
		width += len(t)
		widths[i+1] = width
	}

	for n := len(terms); n > 0; n-- {
		cost := len(separator) + widths[n]
		if clipped || n < len(terms) {
			cost += len(termSep) + utf8.RuneCountInString(ellipsis)
		}
		if base+cost <= f.MaxChars {
			return n
		}
	}
	return 0
}

func termsBlock(terms []string, cut bool) string {
	block := strings.Join(terms, termSep)
	if cut {
		block += termSep + ellipsis
	}
	return block
}

func render(head, terms, link string) string {
	var b strings.Builder
	b.WriteString(head)
	if terms != "" {
		b.WriteString(separator)
		b.WriteString(terms)
	}
	b.WriteString(separator)
	b.WriteString(link)
	return b.String()
}

// CleanText collapses runs of whitespace into single spaces and trims the ends.
func CleanText(input string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(input, " "))
}

// Truncate shortens text to at most limit runes, marking the cut with an ellipsis.
// Text that already fits is returned unchanged; a limit below 2 yields "".
func Truncate(text string, limit int) string {
	if runeLen(text) <= limit {
		return text
	}
	if limit < 2 {
		return ""
	}

	runes := []rune(text)[:limit-1]
	cut := strings.TrimRightFunc(string(runes), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':'
	})
	if cut == "" {
		return ""
	}
	return cut + ellipsis
}

func clamp(text string, limit int) string {
	if runeLen(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
