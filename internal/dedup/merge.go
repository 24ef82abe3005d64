package dedup

import "github.com/madpin/Neureed-sub002/internal/models"

// MergeContent combines a feed-native body with an extracted body per the
// configured strategy. Unknown strategies behave like replace.
func MergeContent(sourceBody, extractedBody, strategy string) string {
	switch strategy {
	case models.MergePrepend:
		return extractedBody + "\n\n" + sourceBody
	case models.MergeAppend:
		return sourceBody + "\n\n" + extractedBody
	default:
		return extractedBody
	}
}

// ApplyExtraction overlays extracted page metadata onto a candidate and
// merges the bodies. The candidate's own values survive wherever extraction
// produced nothing.
func ApplyExtraction(candidate models.Candidate, extracted *models.ExtractedContent, strategy string) models.Candidate {
	merged := candidate

	if extracted.Title != "" {
		merged.Title = extracted.Title
	}
	if extracted.Excerpt != "" {
		merged.Excerpt = extracted.Excerpt
	}
	if extracted.Author != "" {
		merged.Author = extracted.Author
	}
	if extracted.PublishedAt != nil {
		merged.PublishedAt = extracted.PublishedAt
	}
	if extracted.ImageURL != "" {
		merged.ImageURL = extracted.ImageURL
	}
	if extracted.Content != "" {
		merged.Content = MergeContent(candidate.Content, extracted.Content, strategy)
	}

	return merged
}
