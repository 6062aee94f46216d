// Package jsonrecover pulls the first complete JSON object out of noisy text.
//
// Model replies rarely come back as bare JSON: they are wrapped in markdown
// fences, preceded by a sentence of commentary, followed by a sign-off, or cut
// short by a token limit. Recover scans the text for balanced top-level brace
// spans and returns the first one that parses as strict JSON. Failure is an
// ordinary Outcome, never a panic or an error return, because malformed model
// output is the common case rather than the exceptional one.
package jsonrecover

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultExcerptLimit is the number of characters kept from the offending
// text when recovery fails.
const DefaultExcerptLimit = 500

// Origin tags where a piece of raw text came from.
type Origin string

const (
	FromModel Origin = "from_model"
	FromFile  Origin = "from_file"
)

// RawText is text handed to the recoverer together with its origin.
type RawText struct {
	Text   string
	Origin Origin
}

// Kind classifies an Outcome.
type Kind int

const (
	Recovered Kind = iota
	NoJSONFound
	UnbalancedBraces
	MalformedJSON
)

func (k Kind) String() string {
	switch k {
	case Recovered:
		return "recovered"
	case NoJSONFound:
		return "no_json_found"
	case UnbalancedBraces:
		return "unbalanced_braces"
	case MalformedJSON:
		return "malformed_json"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrNoJSONFound      = errors.New("no json object found")
	ErrUnbalancedBraces = errors.New("unbalanced braces")
	ErrMalformedJSON    = errors.New("malformed json")
)

var errNotObject = errors.New("top-level value is not an object")

// Error describes a failed recovery. It matches the Err* sentinels with
// errors.Is and also unwraps to the last JSON syntax error, if any.
type Error struct {
	Kind    Kind
	Origin  Origin
	Excerpt string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %q", e.sentinel(), e.Excerpt)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case NoJSONFound:
		return ErrNoJSONFound
	case UnbalancedBraces:
		return ErrUnbalancedBraces
	default:
		return ErrMalformedJSON
	}
}

// Outcome is the result of a recovery attempt. Object is set only when
// Kind == Recovered. On failure Span holds the whole offending substring and
// Excerpt its first ExcerptLimit characters.
type Outcome struct {
	Kind       Kind
	Origin     Origin
	Object     map[string]any
	Span       string
	Excerpt    string
	Candidates int

	cause error
}

// OK reports whether an object was recovered.
func (o Outcome) OK() bool { return o.Kind == Recovered }

// Err returns nil for a recovered object and an *Error otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &Error{Kind: o.Kind, Origin: o.Origin, Excerpt: o.Excerpt, Cause: o.cause}
}

// Decode copies the recovered object into v, which should be a pointer to a
// struct or map. It returns the recovery error when nothing was recovered.
func (o Outcome) Decode(v any) error {
	if err := o.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(o.Object)
	if err != nil {
		return fmt.Errorf("re-marshal recovered object: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode recovered object: %w", err)
	}
	return nil
}

// Options tune a Recoverer.
type Options struct {
	// QuoteAware makes the scanner skip braces that appear inside JSON string
	// literals. Off by default: the plain depth counter is the documented
	// behaviour and the whole-text fallback covers the common case of a single
	// clean object whose strings contain braces.
	QuoteAware bool

	// ExcerptLimit caps the diagnostic excerpt, in characters.
	// Zero means DefaultExcerptLimit.
	ExcerptLimit int
}

// Recoverer is immutable after construction and safe for concurrent use.
type Recoverer struct {
	opts Options
}

func New(opts Options) *Recoverer {
	if opts.ExcerptLimit <= 0 {
		opts.ExcerptLimit = DefaultExcerptLimit
	}
	return &Recoverer{opts: opts}
}

var std = New(Options{})

// Recover runs the default recoverer over text.
func Recover(text string) Outcome {
	return std.Recover(text)
}

// RecoverRaw is Recover for origin-tagged text.
func (r *Recoverer) RecoverRaw(raw RawText) Outcome {
	o := r.Recover(raw.Text)
	o.Origin = raw.Origin
	return o
}

// Recover returns the first balanced top-level {...} span of text that parses
// as a JSON object. Candidates are tried left to right; one that fails to
// parse is skipped and scanning resumes after it. When no candidate parses
// the whole fence-stripped text is tried as a last resort.
func (r *Recoverer) Recover(text string) Outcome {
	s := StripFences(text)

	var (
		depth      int
		start      = -1
		sawOpen    bool
		inString   bool
		escaped    bool
		candidates int
		firstBad   string
		lastErr    error
	)

	for i := 0; i < len(s); i++ {
		c := s[i]

		if r.opts.QuoteAware && depth > 0 {
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			if c == '"' {
				inString = true
				continue
			}
		}

		switch c {
		case '{':
			sawOpen = true
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			// A closer with nothing open is prose, not structure.
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidates++
				span := s[start : i+1]
				obj, err := parseObject(span)
				if err == nil {
					return Outcome{Kind: Recovered, Object: obj, Candidates: candidates}
				}
				if firstBad == "" {
					firstBad = span
				}
				lastErr = err
				start = -1
			}
		}
	}

	if obj, err := parseObject(s); err == nil {
		return Outcome{Kind: Recovered, Object: obj, Candidates: candidates}
	}

	out := Outcome{Candidates: candidates}
	switch {
	case !sawOpen:
		out.Kind = NoJSONFound
		out.Span = s
	case depth > 0:
		out.Kind = UnbalancedBraces
		out.Span = s[start:]
	default:
		out.Kind = MalformedJSON
		out.Span = firstBad
		out.cause = lastErr
	}
	out.Excerpt = r.excerpt(out.Span)
	return out
}

func parseObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotObject
	}
	return obj, nil
}

func (r *Recoverer) excerpt(s string) string {
	if utf8.RuneCountInString(s) <= r.opts.ExcerptLimit {
		return s
	}
	n := 0
	for i := range s {
		if n == r.opts.ExcerptLimit {
			return s[:i]
		}
		n++
	}
	return s
}

var fenceMarker = regexp.MustCompile("(?i)```(?:json)?")

// StripFences removes markdown code-fence markers and trims the result.
// Content between the markers is left untouched.
func StripFences(text string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(text, ""))
}
