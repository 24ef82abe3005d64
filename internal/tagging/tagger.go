// Package tagging infers coarse topic labels for articles from keyword rules.
package tagging

import "strings"

// Tagger assigns topics to an article by scanning its title and content for
// known keywords. Rules map a topic to the keywords that imply it.
type Tagger struct {
	rules map[string][]string
}

// New creates a tagger loaded with the built-in news topic rules.
func New() *Tagger {
	return &Tagger{
		rules: map[string][]string{
			"AI":         {"artificial intelligence", " ai ", "machine learning", "llm", "neural network", "chatgpt", "openai"},
			"Technology": {"software", "startup", "app ", "smartphone", "gadget", "cloud", "open source", "programming"},
			"Business":   {"earnings", "stock", "market", "acquisition", "merger", "revenue", "ipo", "layoff"},
			"Science":    {"research", "study finds", "scientists", "physics", "biology", "astronomy", "nasa"},
			"Politics":   {"election", "senate", "congress", "parliament", "policy", "legislation", "president"},
			"Health":     {"health", "vaccine", "disease", "medical", "fda", "clinical trial", "mental health"},
			"Climate":    {"climate", "emissions", "renewable", "solar", "wildfire", "carbon"},
			"Security":   {"breach", "ransomware", "vulnerability", "exploit", "phishing", "cyberattack"},
			"Sports":     {"championship", "tournament", "league", "playoff", "olympic", "world cup"},
			"Finance":    {"crypto", "bitcoin", "interest rate", "inflation", "federal reserve", "bond"},
			"Gaming":     {"video game", "gaming", "playstation", "xbox", "nintendo", "steam"},
			"Tutorial":   {"how to", "guide", "step by step", "getting started", "walkthrough"},
			"Review":     {"review", "hands-on", "first look", "versus", "comparison"},
		},
	}
}

// InferTopics returns every topic whose keywords appear in the title or
// content. Matching is case-insensitive; order is not guaranteed.
func (t *Tagger) InferTopics(title, content string) []string {
	haystack := " " + strings.ToLower(title) + " " + strings.ToLower(content) + " "

	var topics []string
	for topic, keywords := range t.rules {
		for _, keyword := range keywords {
			if strings.Contains(haystack, keyword) {
				topics = append(topics, topic)
				break
			}
		}
	}
	return topics
}
