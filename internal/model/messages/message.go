// Package messages implements the colon-delimited wire format shared by the
// device and remote transports: "name" or "name:p1:p2:...".
package messages

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Delimiter separates the command name from its parameters.
const Delimiter = ":"

// Message is a decoded wire message.
type Message struct {
	Name       string
	Parameters []string
}

// Decode splits raw into a name and its parameters. It never fails: input
// without a delimiter is a bare name with no parameters.
func Decode(raw string) Message {
	if !strings.Contains(raw, Delimiter) {
		return Message{Name: raw}
	}
	tokens := strings.Split(raw, Delimiter)
	return Message{Name: tokens[0], Parameters: tokens[1:]}
}

// Param returns the i-th parameter, or false when it is absent.
func (m Message) Param(i int) (string, bool) {
	if i < 0 || i >= len(m.Parameters) {
		return "", false
	}
	return m.Parameters[i], true
}

// IntParam parses the i-th parameter as an integer. Leading digits of a
// decimal value are accepted ("12.7" yields 12).
func (m Message) IntParam(i int) (int, bool) {
	p, ok := m.Param(i)
	if !ok {
		return 0, false
	}
	return ParseInt(p)
}

// String re-encodes the message.
func (m Message) String() string {
	if len(m.Parameters) == 0 {
		return m.Name
	}
	return m.Name + Delimiter + strings.Join(m.Parameters, Delimiter)
}

// Encode joins name and values with the delimiter. Values must not contain
// the delimiter themselves; no escaping is performed.
func Encode(name string, values ...any) string {
	if len(values) == 0 {
		return name
	}
	var sb strings.Builder
	sb.WriteString(name)
	for _, v := range values {
		sb.WriteString(Delimiter)
		sb.WriteString(FormatValue(v))
	}
	return sb.String()
}

// FormatValue renders a parameter value the way peers expect it: integers in
// decimal, floats in their shortest form, booleans as 1/0.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case interface{ String() string }:
		return t.String()
	default:
		return ""
	}
}

// ParseInt parses a decimal integer, tolerating surrounding whitespace and a
// fractional part, which is truncated. Values beyond the int range saturate
// at math.MinInt or math.MaxInt; NaN is rejected.
func ParseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err == nil {
		return n, true
	}
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(s, "-") {
			return math.MinInt, true
		}
		return math.MaxInt, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt:
		return math.MaxInt, true
	case f <= math.MinInt:
		return math.MinInt, true
	}
	return int(f), true
}
