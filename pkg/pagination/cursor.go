package pagination

import "strings"

// CursorFunc extracts the next cursor from a page's raw next field.
// It returns false when pagination must stop; it never fails.
type CursorFunc func(next string) (string, bool)

// PageToken extracts the page_token query value from a next-page URL.
var PageToken = QueryToken("page_token")

// QueryToken returns a CursorFunc reading the value of param from a URL-like
// next field, up to the next '&' or the end of the string.
//
// Edge cases:
//   - empty next field: no cursor
//   - param missing from the next field: no cursor (malformed, treated as terminal)
//   - param present with an empty value: no cursor
//   - any other character, '#' included, is part of the value
func QueryToken(param string) CursorFunc {
	marker := param + "="
	return func(next string) (string, bool) {
		if next == "" {
			return "", false
		}

		idx := indexParam(next, marker)
		if idx < 0 {
			return "", false
		}

		value := next[idx+len(marker):]
		if amp := strings.IndexByte(value, '&'); amp >= 0 {
			value = value[:amp]
		}
		if value == "" {
			return "", false
		}
		return value, true
	}
}

// indexParam finds marker at a parameter boundary so that e.g. "page_token="
// does not match inside "next_page_token=".
func indexParam(s, marker string) int {
	from := 0
	for {
		i := strings.Index(s[from:], marker)
		if i < 0 {
			return -1
		}
		i += from
		if i == 0 || s[i-1] == '?' || s[i-1] == '&' {
			return i
		}
		from = i + len(marker)
	}
}

// RawCursor treats the next field itself as the cursor (e.g. a timestamp).
func RawCursor(next string) (string, bool) {
	next = strings.TrimSpace(next)
	if next == "" || next == "null" {
		return "", false
	}
	return next, true
}
