package feed

import (
	"strings"
)

// MaxKeywords caps how many vocabulary terms are attached to one entry
const MaxKeywords = 10

// DefaultVocabulary returns the built-in tagging vocabulary, used when no
// vocabulary file is configured
func DefaultVocabulary() []string {
	return []string{
		"AI", "artificial intelligence", "machine learning", "ML",
		"blockchain", "cryptocurrency", "bitcoin", "ethereum",
		"startup", "venture capital", "funding", "investment",
		"technology", "innovation", "disruption", "digital",
		"cloud", "AWS", "Azure", "Google Cloud",
		"mobile", "app", "application", "software",
		"cybersecurity", "privacy", "data", "analytics",
		"fintech", "healthtech", "edtech", "proptech",
	}
}

// KeywordExtractor tags text against a fixed vocabulary by case-insensitive
// substring containment. No stemming, no scoring.
type KeywordExtractor struct {
	vocabulary []string
	lowered    []string
}

// NewKeywordExtractor creates an extractor over the given vocabulary
func NewKeywordExtractor(vocabulary []string) *KeywordExtractor {
	lowered := make([]string, len(vocabulary))
	for i, term := range vocabulary {
		lowered[i] = strings.ToLower(term)
	}
	return &KeywordExtractor{
		vocabulary: vocabulary,
		lowered:    lowered,
	}
}

// Extract returns up to MaxKeywords vocabulary terms contained in the
// text, in vocabulary order. Each term appears at most once.
func (e *KeywordExtractor) Extract(text string) []string {
	if text == "" {
		return []string{}
	}

	textLower := strings.ToLower(text)

	found := make([]string, 0, MaxKeywords)
	for i, term := range e.lowered {
		if strings.Contains(textLower, term) {
			found = append(found, e.vocabulary[i])
			if len(found) == MaxKeywords {
				break
			}
		}
	}

	return found
}
