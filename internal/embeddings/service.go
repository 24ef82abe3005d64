package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/models"
)

// maxInputRunes truncates article text before embedding; bodies past this
// point add cost without improving retrieval.
const maxInputRunes = 8000

// ArticleStore is the persistence surface the service needs.
type ArticleStore interface {
	ListWithoutEmbeddings(ctx context.Context, limit int) ([]models.Article, error)
	SetEmbedding(ctx context.Context, articleID string, embedding []float32) error
}

// Ledger records backend usage.
type Ledger interface {
	Append(ctx context.Context, entry *models.CostLedgerEntry) error
}

// Service backfills embeddings for articles that have none, in sequential
// paced batches, pricing every backend call into the ledger.
type Service struct {
	backend     Backend
	store       ArticleStore
	ledger      Ledger
	logger      *logging.Logger
	pacingDelay time.Duration
}

func NewService(backend Backend, store ArticleStore, ledger Ledger, logger *logging.Logger, pacingDelay time.Duration) *Service {
	return &Service{
		backend:     backend,
		store:       store,
		ledger:      ledger,
		logger:      logger,
		pacingDelay: pacingDelay,
	}
}

// ProcessArticlesWithoutEmbeddings embeds up to batchSize*maxBatches
// articles, oldest first. Batches run sequentially with a pacing delay
// between them; a page shorter than batchSize means the backlog is drained
// and the run stops early. Per-article store failures are counted, not fatal.
func (s *Service) ProcessArticlesWithoutEmbeddings(ctx context.Context, batchSize, maxBatches int) (*models.EmbeddingBatchResult, error) {
	if batchSize <= 0 {
		batchSize = 20
	}
	if maxBatches <= 0 {
		maxBatches = 10
	}

	result := &models.EmbeddingBatchResult{}

	for batch := 0; batch < maxBatches; batch++ {
		if batch > 0 && s.pacingDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.pacingDelay):
			}
		}

		articles, err := s.store.ListWithoutEmbeddings(ctx, batchSize)
		if err != nil {
			return result, fmt.Errorf("list articles without embeddings: %w", err)
		}
		if len(articles) == 0 {
			break
		}

		texts := make([]string, len(articles))
		for i, article := range articles {
			texts[i] = embeddingText(article)
		}

		vectors, usage, err := s.backend.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return result, fmt.Errorf("generate embeddings: %w", err)
		}

		s.recordUsage(ctx, usage)
		result.TotalTokens += usage.TotalTokens
		result.BatchesProcessed++

		for i, article := range articles {
			if err := s.store.SetEmbedding(ctx, article.ID, vectors[i]); err != nil {
				result.Failed++
				s.logger.Warn("failed to store embedding",
					logging.WithField("article_id", article.ID),
					logging.WithField("error", err.Error()))
				continue
			}
			result.Processed++
		}

		if len(articles) < batchSize {
			break
		}
	}

	s.logger.Info("embedding backfill done",
		logging.WithField("processed", result.Processed),
		logging.WithField("failed", result.Failed),
		logging.WithField("batches", result.BatchesProcessed),
		logging.WithField("tokens", result.TotalTokens))

	return result, nil
}

// EmbedArticles embeds a specific set of articles, used by the refresh
// pipeline for newly created ones.
func (s *Service) EmbedArticles(ctx context.Context, articles []models.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	texts := make([]string, len(articles))
	for i, article := range articles {
		texts[i] = embeddingText(article)
	}

	vectors, usage, err := s.backend.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("generate embeddings: %w", err)
	}
	s.recordUsage(ctx, usage)

	stored := 0
	for i, article := range articles {
		if err := s.store.SetEmbedding(ctx, article.ID, vectors[i]); err != nil {
			s.logger.Warn("failed to store embedding",
				logging.WithField("article_id", article.ID),
				logging.WithField("error", err.Error()))
			continue
		}
		stored++
	}
	return stored, nil
}

func (s *Service) recordUsage(ctx context.Context, usage Usage) {
	entry := &models.CostLedgerEntry{
		Provider:     s.backend.Provider(),
		Model:        s.backend.Model(),
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
		CostUSD:      CostUSD(s.backend.Provider(), s.backend.Model(), usage.TotalTokens),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append cost ledger entry",
			logging.WithField("provider", entry.Provider),
			logging.WithField("error", err.Error()))
	}
}

func embeddingText(article models.Article) string {
	text := article.Title + "\n\n" + article.Content
	runes := []rune(text)
	if len(runes) > maxInputRunes {
		text = string(runes[:maxInputRunes])
	}
	return strings.TrimSpace(text)
}
