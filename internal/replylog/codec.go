package replylog

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// The persisted record keeps the "<kind> <answer> <prompt>" space-joined
// shape. Fields are percent-escaped so an answer containing any Unicode
// space cannot shift the prompt; an empty field is written as "-". Records
// are split on the ASCII space only.

const emptyField = "-"

// Encode renders an entry as a single text record.
func Encode(e Entry) string {
	if e.IsZero() {
		return ""
	}
	return strings.Join([]string{
		encodeField(e.Kind),
		encodeField(e.Answer),
		encodeField(e.Prompt),
	}, " ")
}

// Decode parses a text record. Records with fewer than two space-separated
// tokens are treated as empty.
//
// Records with more than three tokens were written unescaped by an older
// writer; their token boundaries are ambiguous, so everything after the kind
// is returned as the answer and the prompt is left empty rather than guessed.
func Decode(record string) (Entry, error) {
	fields := splitRecord(record)
	switch {
	case len(fields) < 2:
		return Entry{}, ErrEmpty
	case len(fields) == 2:
		return Entry{Kind: decodeField(fields[0]), Answer: decodeField(fields[1])}, nil
	case len(fields) == 3:
		return Entry{
			Kind:   decodeField(fields[0]),
			Answer: decodeField(fields[1]),
			Prompt: decodeField(fields[2]),
		}, nil
	default:
		return Entry{Kind: decodeField(fields[0]), Answer: strings.Join(fields[1:], " ")}, nil
	}
}

func encodeField(s string) string {
	if s == "" {
		return emptyField
	}
	if s == emptyField {
		return "%2D"
	}
	var b strings.Builder
	for _, r := range s {
		if r != '%' && !unicode.IsSpace(r) {
			b.WriteRune(r)
			continue
		}
		for _, c := range []byte(string(r)) {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func splitRecord(record string) []string {
	parts := strings.Split(strings.TrimSpace(record), " ")
	fields := parts[:0]
	for _, p := range parts {
		if p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

func decodeField(s string) string {
	if s == emptyField {
		return ""
	}
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}
