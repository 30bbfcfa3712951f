package broker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SearchMatch describes one image whose recognized text contains the query.
type SearchMatch struct {
	ImageIndex int    `json:"imageIndex"`
	Snippet    string `json:"snippet"`
	MatchCount int    `json:"matchCount"`
}

// SearchResult is the full answer to a search call.
type SearchResult struct {
	Query        string        `json:"query"`
	Results      []SearchMatch `json:"results"`
	TotalMatches int           `json:"totalMatches"`
}

// Search runs a case-insensitive substring match over the recognized text of
// every image in the session. An empty query is a caller error, rejected
// before any session data is touched.
func (r *Registry) Search(id, query string) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, ErrEmptyQuery
	}
	needle := strings.ToLower(query)

	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.liveLocked(id)
	if s == nil {
		return SearchResult{}, ErrNotFound
	}

	res := SearchResult{Query: needle, Results: []SearchMatch{}}
	for i, img := range s.Images {
		haystack, offsets := foldLower(img.Text)
		n := strings.Count(haystack, needle)
		if n == 0 {
			continue
		}
		// Lowercasing can change a rune's byte length, so the match offset in
		// the folded text is mapped back to original-text offsets before any
		// slicing.
		at := strings.Index(haystack, needle)
		start := offsets[at]
		end := offsets[at+len(needle)]
		res.Results = append(res.Results, SearchMatch{
			ImageIndex: i,
			Snippet:    snippet(img.Text, start, end-start, r.opts.SnippetRunes),
			MatchCount: n,
		})
		res.TotalMatches += n
	}
	return res, nil
}

// foldLower lowercases text the way strings.ToLower does and returns, per
// byte of the folded result (plus one sentinel), the byte offset in the
// original text of the rune that produced it.
func foldLower(text string) (string, []int) {
	var b strings.Builder
	b.Grow(len(text))
	offsets := make([]int, 0, len(text)+1)
	for i, r := range text {
		lr := unicode.ToLower(r)
		for range utf8.RuneLen(lr) {
			offsets = append(offsets, i)
		}
		b.WriteRune(lr)
	}
	offsets = append(offsets, len(text))
	return b.String(), offsets
}

// snippet returns up to maxRunes of text centered on the match at byte
// offset at, with ellipses marking truncation.
func snippet(text string, at, matchLen, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	if at < 0 {
		at = 0
	}
	if at > len(text) {
		at = len(text)
	}
	if at+matchLen > len(text) {
		matchLen = len(text) - at
	}

	radius := (maxRunes - utf8.RuneCountInString(text[at:at+matchLen])) / 2
	if radius < 0 {
		radius = 0
	}
	start := at
	for i := 0; i < radius && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	end := at + matchLen
	for i := 0; i < radius && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}

	out := text[start:end]
	if start > 0 {
		out = "…" + out
	}
	if end < len(text) {
		out += "…"
	}
	return out
}
