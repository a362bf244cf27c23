// Package scpi builds control-plane command lines and parses the analyser's
// textual responses.
package scpi

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rjboer/GoWSA/internal/wsaerr"
)

// Command renders "PATH a,b,c". Arguments are formatted with fmt.Sprint.
func Command(path string, args ...any) string {
	if len(args) == 0 {
		return path
	}
	return path + " " + joinArgs(args)
}

// Query renders "PATH? a,b,c".
func Query(path string, args ...any) string {
	if !strings.HasSuffix(path, "?") {
		path += "?"
	}
	return Command(path, args...)
}

// Hz formats a frequency argument with its unit.
func Hz(v int64) string { return strconv.FormatInt(v, 10) + " Hz" }

// HzF formats a fractional frequency argument with its unit.
func HzF(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) + " Hz" }

// DB formats a gain argument with its unit.
func DB(v int) string { return strconv.Itoa(v) + " dB" }

// Bool renders 1 or 0.
func Bool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, ",")
}

func clean(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// ParseInt parses a single integer response. Integral values written in
// floating notation ("2.4E9") are accepted.
func ParseInt(resp string) (int64, error) {
	s := clean(resp)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, wsaerr.Errorf(wsaerr.RespUnknown, "parse int", "non-integer response %q", resp)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, wsaerr.Errorf(wsaerr.RespUnknown, "parse int", "response %q overflows int64", resp)
	}
	return int64(f), nil
}

// ParseFloat parses a single decimal response.
func ParseFloat(resp string) (float64, error) {
	f, err := strconv.ParseFloat(clean(resp), 64)
	if err != nil {
		return 0, wsaerr.Errorf(wsaerr.RespUnknown, "parse float", "non-numeric response %q", resp)
	}
	return f, nil
}

// Fields splits a positional comma-delimited response into exactly n fields.
func Fields(resp string, n int) ([]string, error) {
	fields := split(resp)
	if len(fields) != n {
		return nil, wsaerr.Errorf(wsaerr.RespUnknown, "parse fields", "expected %d fields, got %d in %q", n, len(fields), resp)
	}
	return fields, nil
}

func split(resp string) []string {
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return nil
	}
	parts := strings.Split(resp, ",")
	for i := range parts {
		parts[i] = clean(parts[i])
	}
	return parts
}

// Tokens walks a positional response one field at a time. It never reads
// past the fields actually present: a missing field is an error naming the
// position and the field that was expected there.
type Tokens struct {
	raw    string
	fields []string
	pos    int
}

// NewTokens tokenizes resp.
func NewTokens(resp string) *Tokens {
	return &Tokens{raw: resp, fields: split(resp)}
}

// Len returns the number of fields in the response.
func (t *Tokens) Len() int { return len(t.fields) }

// Remaining returns the number of unread fields.
func (t *Tokens) Remaining() int { return len(t.fields) - t.pos }

// Next returns the next raw field.
func (t *Tokens) Next(name string) (string, error) {
	if t.pos >= len(t.fields) {
		return "", wsaerr.Errorf(wsaerr.RespUnknown, "parse fields", "missing field %d (%s) in %q", t.pos+1, name, t.raw)
	}
	f := t.fields[t.pos]
	t.pos++
	return f, nil
}

// Int returns the next field as an integer.
func (t *Tokens) Int(name string) (int64, error) {
	f, err := t.Next(name)
	if err != nil {
		return 0, err
	}
	v, err := ParseInt(f)
	if err != nil {
		return 0, wsaerr.Errorf(wsaerr.RespUnknown, "parse fields", "field %d (%s): %q is not an integer", t.pos, name, f)
	}
	return v, nil
}

// Float returns the next field as a decimal.
func (t *Tokens) Float(name string) (float64, error) {
	f, err := t.Next(name)
	if err != nil {
		return 0, err
	}
	v, err := ParseFloat(f)
	if err != nil {
		return 0, wsaerr.Errorf(wsaerr.RespUnknown, "parse fields", "field %d (%s): %q is not numeric", t.pos, name, f)
	}
	return v, nil
}

// Done fails if unread fields remain.
func (t *Tokens) Done() error {
	if t.pos != len(t.fields) {
		return wsaerr.Errorf(wsaerr.RespUnknown, "parse fields", "%d unexpected trailing fields in %q", len(t.fields)-t.pos, t.raw)
	}
	return nil
}
