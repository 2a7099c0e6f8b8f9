package retrieval

import (
	"math"
	"strings"
)

var ftsReplacer = strings.NewReplacer(
	"\"", "", "*", "", "(", "", ")", "",
	"+", "", "-", " ", "^", "", ":", "",
	"?", "", "[", "", "]", "", "{", "",
	"}", "", "!", "", ".", "", ",", "",
	";", "", "'", "",
)

// sanitizeFTSQuery strips FTS5 syntax characters and builds an OR query of
// the quoted phrase plus each significant term. Returns "" when nothing
// searchable remains.
func sanitizeFTSQuery(query string) string {
	words := strings.Fields(ftsReplacer.Replace(query))
	if len(words) == 0 {
		return ""
	}

	var parts []string
	if len(words) > 1 {
		parts = append(parts, "\""+strings.Join(words, " ")+"\"")
	}
	seen := make(map[string]bool)
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) > 2 && !isStopWord(lower) && !seen[lower] {
			seen[lower] = true
			parts = append(parts, w)
		}
	}
	if len(parts) == 0 {
		return strings.Join(words, " OR ")
	}
	return strings.Join(parts, " OR ")
}

// normalizeQuery is the cache key for a query embedding.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// round4 rounds a similarity score to four decimals.
func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "what": true, "which": true, "who": true, "whom": true,
	"where": true, "when": true, "how": true, "why": true, "not": true,
	"no": true, "nor": true, "if": true, "then": true, "than": true,
	"so": true, "as": true, "about": true, "into": true, "between": true,
	"under": true, "policy": true, "covered": true, "due": true,
}

func isStopWord(w string) bool {
	return stopWords[strings.ToLower(w)]
}
