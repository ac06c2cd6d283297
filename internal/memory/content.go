package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	engerr "dementia-mcp/internal/errors"
)

const (
	previewLimit   = 500
	maxKeyConcepts = 10
	minConceptLen  = 4
)

// HashContent returns the hex sha-256 digest of the content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// MakePreview truncates content to roughly previewLimit characters at a
// word boundary.
func MakePreview(content string) string {
	if len(content) <= previewLimit {
		return content
	}
	cut := content[:previewLimit]
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n")
}

var stopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "your": true, "their": true, "which": true, "when": true,
	"then": true, "than": true, "them": true, "they": true, "there": true,
	"here": true, "what": true, "were": true, "been": true, "into": true,
	"some": true, "only": true, "also": true, "over": true, "such": true,
	"each": true, "should": true, "would": true, "could": true, "about": true,
	"these": true, "those": true, "where": true, "while": true, "after": true,
	"before": true, "because": true, "being": true, "does": true, "must": true,
	"always": true, "never": true,
}

// ExtractKeyConcepts picks the top terms from content plus any explicit
// tags. Tags always lead; content terms follow by descending frequency.
func ExtractKeyConcepts(content string, tags []string) []string {
	seen := make(map[string]bool)
	concepts := make([]string, 0, maxKeyConcepts)

	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		concepts = append(concepts, t)
		if len(concepts) == maxKeyConcepts {
			return concepts
		}
	}

	freq := make(map[string]int)
	for _, word := range tokenize(content) {
		if len(word) < minConceptLen || stopWords[word] || seen[word] {
			continue
		}
		freq[word]++
	}

	terms := make([]string, 0, len(freq))
	for word := range freq {
		terms = append(terms, word)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	for _, term := range terms {
		concepts = append(concepts, term)
		if len(concepts) == maxKeyConcepts {
			break
		}
	}
	return concepts
}

// priority trigger tokens, matched on word boundaries.
var (
	alwaysCheckTokens = []string{"always", "never", "must"}
	importantTokens   = []string{"important", "critical", "required"}
)

// DetectPriority infers a priority from the content when the caller did not
// supply one.
func DetectPriority(content string) string {
	words := make(map[string]bool)
	for _, w := range tokenize(content) {
		words[w] = true
	}
	for _, token := range alwaysCheckTokens {
		if words[token] {
			return PriorityAlwaysCheck
		}
	}
	for _, token := range importantTokens {
		if words[token] {
			return PriorityImportant
		}
	}
	return PriorityReference
}

// ValidatePriority rejects priorities outside the known set.
func ValidatePriority(priority string) error {
	switch priority {
	case PriorityAlwaysCheck, PriorityImportant, PriorityReference:
		return nil
	default:
		return engerr.Validationf("invalid priority %q", priority).
			WithContext("reason", "invalid_priority")
	}
}

// tokenize lowercases and splits on anything outside [a-z0-9].
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}
