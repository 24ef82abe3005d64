package embeddings

// Per-1K-token rates in USD by provider and model. Providers or models not
// listed cost nothing, which covers self-hosted backends.
var ratesPer1K = map[string]map[string]float64{
	"openai": {
		"text-embedding-3-small": 0.00002,
		"text-embedding-3-large": 0.00013,
		"text-embedding-ada-002": 0.00010,
	},
	"voyage": {
		"voyage-3":      0.00006,
		"voyage-3-lite": 0.00002,
	},
}

// CostUSD prices a call's token usage. Unknown provider/model pairs are free.
func CostUSD(provider, model string, totalTokens int) float64 {
	models, ok := ratesPer1K[provider]
	if !ok {
		return 0
	}
	rate, ok := models[model]
	if !ok {
		return 0
	}
	return rate * float64(totalTokens) / 1000
}
