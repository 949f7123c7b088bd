package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseErrorKind classifies why a feed line was rejected.
type ParseErrorKind int

const (
	// NotASpot marks lines that are not spot reports at all: prompts,
	// announcements, WWV bulletins and truncated spot lines.
	NotASpot ParseErrorKind = iota
	// MalformedFrequency marks spot lines whose frequency is not a positive number.
	MalformedFrequency
	// MalformedCallsign marks spot lines whose spotted callsign has the wrong shape.
	MalformedCallsign
)

func (k ParseErrorKind) String() string {
	switch k {
	case NotASpot:
		return "not_a_spot"
	case MalformedFrequency:
		return "malformed_frequency"
	case MalformedCallsign:
		return "malformed_callsign"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a *ParseError.
var (
	ErrNotASpot           = errors.New("not a spot")
	ErrMalformedFrequency = errors.New("malformed frequency")
	ErrMalformedCallsign  = errors.New("malformed callsign")
)

// ParseError is returned by ParseSpot for every rejected line.
type ParseError struct {
	Kind   ParseErrorKind
	Line   string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("parse spot: %s", e.Kind)
	}
	return fmt.Sprintf("parse spot: %s: %s", e.Kind, e.Detail)
}

// Is maps the error kind onto the package sentinels.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrNotASpot:
		return e.Kind == NotASpot
	case ErrMalformedFrequency:
		return e.Kind == MalformedFrequency
	case ErrMalformedCallsign:
		return e.Kind == MalformedCallsign
	}
	return false
}

const (
	classicPrefix = "DX de "
	ve7ccPrefix   = "CC1"
	ve7ccFields   = 7

	// futureSlack is how far ahead of the receipt time a line time may be
	// before it is treated as belonging to the previous UTC day.
	futureSlack = time.Hour
)

var (
	// lineTimeRe matches the HHMMZ token that ends the comment of a classic spot.
	lineTimeRe = regexp.MustCompile(`^(\d{2})(\d{2})Z$`)

	// locatorRe matches a 4 or 6 character Maidenhead grid locator, e.g. FN42 or JN45ab.
	locatorRe = regexp.MustCompile(`(?i)^[A-R]{2}\d{2}([A-X]{2})?$`)

	// frequencyRe matches the plain decimal kHz values clusters send.
	frequencyRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

	// callsignRe matches the allowed character shape of a callsign, portable
	// suffixes and prefixes included: W1XYZ, EA8/W1XYZ, W1XYZ/P.
	callsignRe = regexp.MustCompile(`^[A-Z0-9]+(/[A-Z0-9]+)*$`)
)

// ParseSpot parses a raw feed line into a Spot. received is used when the line
// does not carry a time of its own and as the date reference for HHMM times.
// Every rejection is a *ParseError; a Spot is only returned when fully valid.
func ParseSpot(line string, received time.Time) (Spot, error) {
	trimmed := strings.TrimSpace(line)
	switch {
	case hasPrefixFold(trimmed, classicPrefix):
		return parseClassic(line, trimmed[len(classicPrefix):], received)
	case strings.HasPrefix(trimmed, ve7ccPrefix) && strings.Contains(trimmed, "^"):
		return parseVE7CC(line, trimmed, received)
	default:
		return Spot{}, &ParseError{Kind: NotASpot, Line: line}
	}
}

// parseClassic handles "DX de SPOTTER: FREQ CALL comment HHMMZ [LOC]".
func parseClassic(line, body string, received time.Time) (Spot, error) {
	// Long spotter names can run straight into the frequency ("VE7CC-1-#:14025.0").
	spotterField, body, ok := strings.Cut(body, ":")
	spotterField = strings.TrimSpace(spotterField)
	if !ok || spotterField == "" || strings.ContainsAny(spotterField, " \t") {
		return Spot{}, &ParseError{Kind: NotASpot, Line: line, Detail: "missing spotter"}
	}
	fields := strings.Fields(body)
	if len(fields) < 2 {
		return Spot{}, &ParseError{Kind: NotASpot, Line: line, Detail: "too few fields"}
	}

	spotter := normalizeSpotter(spotterField)
	freq, err := parseFrequency(fields[0])
	if err != nil {
		return Spot{}, &ParseError{Kind: MalformedFrequency, Line: line, Detail: err.Error()}
	}
	call, err := parseCallsign(fields[1])
	if err != nil {
		return Spot{}, &ParseError{Kind: MalformedCallsign, Line: line, Detail: err.Error()}
	}

	rest := fields[2:]
	var locator string
	if n := len(rest); n > 0 && locatorRe.MatchString(rest[n-1]) {
		locator = strings.ToUpper(rest[n-1])
		rest = rest[:n-1]
	}

	ts := received.UTC()
	if n := len(rest); n > 0 {
		if t, ok := parseLineTime(received, rest[n-1]); ok {
			ts = t
			rest = rest[:n-1]
		}
	}

	comment := strings.Join(rest, " ")
	return newSpot(line, call, spotter, freq, comment, locator, ts), nil
}

// parseVE7CC handles "CC11^FREQ^CALL^DATE^TIME^COMMENT^SPOTTER^...".
func parseVE7CC(line, trimmed string, received time.Time) (Spot, error) {
	parts := strings.Split(trimmed, "^")
	if len(parts) < ve7ccFields {
		return Spot{}, &ParseError{Kind: NotASpot, Line: line, Detail: "too few fields"}
	}

	freq, err := parseFrequency(parts[1])
	if err != nil {
		return Spot{}, &ParseError{Kind: MalformedFrequency, Line: line, Detail: err.Error()}
	}
	call, err := parseCallsign(parts[2])
	if err != nil {
		return Spot{}, &ParseError{Kind: MalformedCallsign, Line: line, Detail: err.Error()}
	}

	ts := received.UTC()
	if t, ok := parseDateTime(parts[3], parts[4]); ok {
		ts = t
	} else if t, ok := parseLineTime(received, parts[4]); ok {
		ts = t
	}

	comment := strings.Join(strings.Fields(parts[5]), " ")
	spotter := normalizeSpotter(parts[6])
	return newSpot(line, call, spotter, freq, comment, "", ts), nil
}

func newSpot(line, call, spotter string, freq float64, comment, locator string, ts time.Time) Spot {
	return Spot{
		Callsign:     call,
		Spotter:      spotter,
		FrequencyKHz: freq,
		Band:         BandForFrequency(freq),
		Mode:         ModeFromComment(comment),
		Comment:      comment,
		Locator:      locator,
		Time:         ts,
		Raw:          line,
	}
}

// parseFrequency parses a plain decimal kHz value and rejects anything that is
// not a positive number. Exponents and hex floats are not frequencies.
func parseFrequency(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty frequency")
	}
	if !frequencyRe.MatchString(s) {
		return 0, fmt.Errorf("frequency %q is not a decimal number", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("frequency %q: %w", s, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("frequency %q is not positive", s)
	}
	return v, nil
}

// parseCallsign uppercases a callsign and checks its basic shape:
// 3-10 characters of A-Z, 0-9 and '/', with at least one letter and one digit.
func parseCallsign(s string) (string, error) {
	call := strings.ToUpper(strings.TrimSpace(s))
	if n := len(call); n < 3 || n > 10 {
		return "", fmt.Errorf("callsign %q must be 3-10 characters", s)
	}
	if !callsignRe.MatchString(call) {
		return "", fmt.Errorf("callsign %q has invalid characters", s)
	}
	if !strings.ContainsFunc(call, unicode.IsDigit) || !strings.ContainsFunc(call, unicode.IsLetter) {
		return "", fmt.Errorf("callsign %q needs letters and digits", s)
	}
	return call, nil
}

// normalizeSpotter strips the trailing colon of a classic spotter field.
func normalizeSpotter(s string) string {
	return strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(s), ":"))
}

// parseLineTime combines the receipt date with an HHMMZ token (e.g. "1510Z" → 15:10 UTC).
// A result more than futureSlack after received belongs to the previous day;
// one more than a day minus futureSlack before it belongs to the next day.
func parseLineTime(received time.Time, token string) (time.Time, bool) {
	m := lineTimeRe.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return time.Time{}, false
	}
	hour, errH := strconv.Atoi(m[1])
	mins, errM := strconv.Atoi(m[2])
	if errH != nil || errM != nil || hour > 23 || mins > 59 {
		return time.Time{}, false
	}

	ref := received.UTC()
	t := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, mins, 0, 0, time.UTC)
	switch {
	case t.Sub(ref) > futureSlack:
		t = t.AddDate(0, 0, -1)
	case ref.Sub(t) > 24*time.Hour-futureSlack:
		t = t.AddDate(0, 0, 1)
	}
	return t, true
}

// parseDateTime parses the separate VE7CC date ("17-Oct-2026") and time ("1234Z") fields.
func parseDateTime(date, hhmm string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	hhmm = strings.TrimSpace(hhmm)
	if date == "" || hhmm == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2-Jan-2006 1504Z", date+" "+hhmm)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
