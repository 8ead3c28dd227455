package server

import "strings"

// Header is a single header field as it appeared on the wire. Name preserves
// the sender's capitalization; LowerName is the canonical lowercase form used
// for lookups.
type Header struct {
	Name      string
	LowerName string
	Value     string
}

func newHeader(name, value string) Header {
	return Header{Name: name, LowerName: strings.ToLower(name), Value: value}
}

// headerContainsToken reports whether the comma-separated header value
// contains the given token, compared case-insensitively with surrounding
// whitespace ignored.
func headerContainsToken(value, token string) bool {
	for _, t := range strings.Split(value, ",") {
		if strings.EqualFold(strings.Trim(t, " \t"), token) {
			return true
		}
	}
	return false
}

// mergeHeaders builds the by-lowercase-name view of an ordered header list.
// Duplicate fields are joined with ", " in wire order.
func mergeHeaders(headers []Header) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		if prev, ok := m[h.LowerName]; ok {
			m[h.LowerName] = prev + ", " + h.Value
		} else {
			m[h.LowerName] = h.Value
		}
	}
	return m
}
