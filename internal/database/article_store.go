package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/madpin/Neureed-sub002/internal/models"
)

// ArticleStore persists articles in Postgres.
type ArticleStore struct {
	db *DB
}

func NewArticleStore(db *DB) *ArticleStore {
	return &ArticleStore{db: db}
}

const articleColumns = `id, feed_id, title, url, guid, content_hash, content, excerpt,
	author, image_url, published_at, created_at, starred, summary, key_points, topics, embedding`

// FindByGUID resolves an article by (feed, guid). GUID must be non-empty.
func (s *ArticleStore) FindByGUID(ctx context.Context, feedID, guid string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE feed_id = $1 AND guid = $2 AND guid <> ''`,
		feedID, guid,
	)
	return scanArticle(row)
}

// FindByURL resolves an article by canonical URL, system-wide.
func (s *ArticleStore) FindByURL(ctx context.Context, url string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+articleColumns+` FROM articles WHERE LOWER(url) = LOWER($1)`,
		url,
	)
	return scanArticle(row)
}

// FindByContentHash resolves an article by (feed, content hash), for feeds
// whose items carry no GUIDs.
func (s *ArticleStore) FindByContentHash(ctx context.Context, feedID, hash string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE feed_id = $1 AND content_hash = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		feedID, hash,
	)
	return scanArticle(row)
}

// Insert stores a new article and fills in its generated id and timestamps.
func (s *ArticleStore) Insert(ctx context.Context, a *models.Article) error {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO articles (
			feed_id, title, url, guid, content_hash, content, excerpt,
			author, image_url, published_at, summary, key_points, topics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		a.FeedID, a.Title, a.URL, a.GUID, a.ContentHash, a.Content, a.Excerpt,
		a.Author, a.ImageURL, a.PublishedAt, a.Summary,
		pq.Array(orEmpty(a.KeyPoints)), pq.Array(orEmpty(a.Topics)),
	)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// Update refreshes the mutable content fields of a stored article.
func (s *ArticleStore) Update(ctx context.Context, a *models.Article) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET
			title = $2, content_hash = $3, content = $4, excerpt = $5,
			author = $6, image_url = $7, published_at = $8
		WHERE id = $1`,
		a.ID, a.Title, a.ContentHash, a.Content, a.Excerpt,
		a.Author, a.ImageURL, a.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}
	return requireRow(res)
}

// ListWithoutEmbeddings pages through articles lacking a vector, oldest
// first so backfill drains in ingestion order.
func (s *ArticleStore) ListWithoutEmbeddings(ctx context.Context, limit int) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+articleColumns+` FROM articles
		WHERE embedding IS NULL
		ORDER BY created_at
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list articles without embeddings: %w", err)
	}
	defer rows.Close()

	return collectArticles(rows)
}

// SetEmbedding stores the computed vector for an article.
func (s *ArticleStore) SetEmbedding(ctx context.Context, articleID string, embedding []float32) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET embedding = $2 WHERE id = $1`,
		articleID, pq.Array(embedding),
	)
	if err != nil {
		return fmt.Errorf("set article embedding: %w", err)
	}
	return requireRow(res)
}

// ListOlderThan returns ids of a feed's articles published before the
// cutoff, optionally excluding starred ones.
func (s *ArticleStore) ListOlderThan(ctx context.Context, feedID string, cutoff time.Time, preserveStarred bool) ([]string, error) {
	query := `SELECT id FROM articles WHERE feed_id = $1 AND published_at < $2`
	if preserveStarred {
		query += ` AND NOT starred`
	}

	rows, err := s.db.QueryContext(ctx, query, feedID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list articles older than cutoff: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ListExcess returns ids of the oldest articles beyond the per-feed cap,
// ordered so the newest maxArticles survive.
func (s *ArticleStore) ListExcess(ctx context.Context, feedID string, maxArticles int, preserveStarred bool) ([]string, error) {
	query := `SELECT id FROM articles WHERE feed_id = $1`
	if preserveStarred {
		query += ` AND NOT starred`
	}
	query += ` ORDER BY published_at DESC, created_at DESC OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, feedID, maxArticles)
	if err != nil {
		return nil, fmt.Errorf("list excess articles: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// DeleteByIDs removes the given articles and reports how many went away.
func (s *ArticleStore) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CountByFeed counts a feed's stored articles.
func (s *ArticleStore) CountByFeed(ctx context.Context, feedID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE feed_id = $1`, feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return count, nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	var keyPoints, topics pq.StringArray
	var embedding pq.Float32Array

	err := row.Scan(
		&a.ID,
		&a.FeedID,
		&a.Title,
		&a.URL,
		&a.GUID,
		&a.ContentHash,
		&a.Content,
		&a.Excerpt,
		&a.Author,
		&a.ImageURL,
		&a.PublishedAt,
		&a.CreatedAt,
		&a.Starred,
		&a.Summary,
		&keyPoints,
		&topics,
		&embedding,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}

	a.KeyPoints = []string(keyPoints)
	a.Topics = []string(topics)
	a.Embedding = []float32(embedding)

	return &a, nil
}

func collectArticles(rows *sql.Rows) ([]models.Article, error) {
	articles := make([]models.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

func collectIDs(rows *sql.Rows) ([]string, error) {
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}
