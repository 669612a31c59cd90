// Package deck parses estimate deck specifications into ordered decks of
// duration values. A spec is a comma-separated list of tokens such as
// "30m, 1h, 2h, 4h, 1d, 2d, 1w"; a token may be a compound duration like
// "1h 30m" and a bare number means minutes. Hours are 60 minutes, days 8
// working hours, weeks 5 working days.
package deck

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidDeck = errors.New("invalid estimate deck")

// Value is an estimate normalized to whole minutes.
type Value int

const (
	minutesPerHour = 60
	minutesPerDay  = 8 * minutesPerHour
	minutesPerWeek = 5 * minutesPerDay
)

// Deck is the ordered set of values a session accepts as votes.
type Deck []Value

// Parse validates an estimate spec and returns the deck in appearance order.
// Duplicate values after normalization (e.g. "90m" and "1.5h") are rejected.
func Parse(spec string) (Deck, error) {
	var tokens []string
	for _, tok := range strings.Split(spec, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty spec", ErrInvalidDeck)
	}
	d := make(Deck, 0, len(tokens))
	seen := make(map[Value]string, len(tokens))
	for _, tok := range tokens {
		v, err := ParseValue(tok)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("%w: %q duplicates %q", ErrInvalidDeck, tok, prev)
		}
		seen[v] = tok
		d = append(d, v)
	}
	return d, nil
}

// ParseValue parses a single estimate token. A token is one or more
// whitespace-separated parts, each a positive decimal number with an optional
// m/h/d/w suffix; parts are summed, so "1h 30m" is 90 minutes. The total must
// land on a whole minute.
func ParseValue(token string) (Value, error) {
	parts := strings.Fields(token)
	if len(parts) == 0 {
		return 0, fmt.Errorf("%w: empty token", ErrInvalidDeck)
	}
	var total Value
	for _, part := range parts {
		unit := 1 // minutes
		num := part
		switch part[len(part)-1] {
		case 'm':
			num = part[:len(part)-1]
		case 'h':
			unit, num = minutesPerHour, part[:len(part)-1]
		case 'd':
			unit, num = minutesPerDay, part[:len(part)-1]
		case 'w':
			unit, num = minutesPerWeek, part[:len(part)-1]
		}
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: cannot parse %q", ErrInvalidDeck, token)
		}
		if f <= 0 {
			return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidDeck, token)
		}
		minutes := f * float64(unit)
		if minutes != math.Trunc(minutes) {
			return 0, fmt.Errorf("%w: %q is not a whole number of minutes", ErrInvalidDeck, token)
		}
		total += Value(minutes)
	}
	return total, nil
}

// Contains reports whether v is a member of the deck.
func (d Deck) Contains(v Value) bool {
	for _, m := range d {
		if m == v {
			return true
		}
	}
	return false
}

// Spec renders the deck back into a parseable spec string.
func (d Deck) Spec() string {
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// String renders the value largest unit first, e.g. 90 -> "1h 30m".
func (v Value) String() string {
	if v <= 0 {
		return "0m"
	}
	rest := int(v)
	var parts []string
	for _, u := range []struct {
		minutes int
		suffix  string
	}{
		{minutesPerWeek, "w"},
		{minutesPerDay, "d"},
		{minutesPerHour, "h"},
		{1, "m"},
	} {
		if n := rest / u.minutes; n > 0 {
			parts = append(parts, strconv.Itoa(n)+u.suffix)
			rest -= n * u.minutes
		}
	}
	return strings.Join(parts, " ")
}

// MarshalText renders values as tokens so snapshots stay human readable.
func (v Value) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts any single estimate token.
func (v *Value) UnmarshalText(b []byte) error {
	parsed, err := ParseValue(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
