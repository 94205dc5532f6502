// Package tokens provides the token-cost oracle used to size translation
// units.
package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Counter counts BPE tokens with a tiktoken encoding.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// New loads the named encoding. The encoding tables may be fetched over the
// network on first use.
func New(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tokens: get encoding %q: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the number of tokens in s.
func (c *Counter) Count(s string) int {
	if s == "" {
		return 0
	}
	return len(c.enc.Encode(s, nil, nil))
}

// Estimate approximates the token count at four characters per token,
// rounding up.
func Estimate(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

var (
	defaultOnce    sync.Once
	defaultCounter *Counter
	defaultErr     error
)

// Default returns a cost function backed by the cl100k_base counter. When the
// encoding cannot be loaded it returns Estimate together with the load error,
// so callers can warn and carry on.
func Default() (func(string) int, error) {
	defaultOnce.Do(func() {
		defaultCounter, defaultErr = New(DefaultEncoding)
	})
	if defaultErr != nil {
		return Estimate, defaultErr
	}
	return defaultCounter.Count, nil
}

// ForName resolves a cost function by name: "estimate" selects the
// heuristic, anything else is taken as a tiktoken encoding name.
func ForName(name string) (func(string) int, error) {
	switch name {
	case "", DefaultEncoding:
		return Default()
	case "estimate", "chars":
		return Estimate, nil
	default:
		c, err := New(name)
		if err != nil {
			return Estimate, err
		}
		return c.Count, nil
	}
}
