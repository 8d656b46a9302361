package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dctmfoo/AIResearchScribe/models"

	"gorm.io/gorm"
)

// ListQuery selects one page of articles with the given archive state.
type ListQuery struct {
	Archived bool
	Page     int
	Limit    int
}

// Pagination describes where a page sits in the full result set.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// ArticlePage is one page of articles, newest first.
type ArticlePage struct {
	Articles   []models.Article `json:"articles"`
	Pagination Pagination       `json:"pagination"`
}

// MediaURLs carries freshly signed media URLs for one article.
type MediaURLs struct {
	ImageURL       *string
	ImageExpiresAt *time.Time
	AudioURL       *string
	AudioExpiresAt *time.Time
}

// ArticleStore is the persistence gateway for articles and citations.
type ArticleStore struct {
	DB *gorm.DB
}

// NewArticleStore creates the gateway on an open connection.
func NewArticleStore(db *gorm.DB) *ArticleStore {
	return &ArticleStore{DB: db}
}

// CreateArticle inserts the article and its citations in one transaction.
func (s *ArticleStore) CreateArticle(ctx context.Context, article *models.Article, citations []models.Citation) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(article).Error; err != nil {
			return err
		}
		if len(citations) == 0 {
			return nil
		}
		for i := range citations {
			citations[i].ID = 0
			citations[i].ArticleID = article.ID
		}
		return tx.Create(&citations).Error
	})
	if err != nil {
		return dbError("create article", err)
	}
	return nil
}

// ListArticles returns the requested page. Pages past the end are empty but
// still report the correct totals.
func (s *ArticleStore) ListArticles(ctx context.Context, q ListQuery) (*ArticlePage, error) {
	filtered := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&models.Article{}).Where("archived = ?", q.Archived)
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, dbError("count articles", err)
	}

	articles := []models.Article{}
	if err := filtered().
		Order("created_at desc").
		Order("id desc").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&articles).Error; err != nil {
		return nil, dbError("list articles", err)
	}

	return &ArticlePage{
		Articles: articles,
		Pagination: Pagination{
			Total:      total,
			Page:       q.Page,
			Limit:      q.Limit,
			TotalPages: totalPages(total, q.Limit),
		},
	}, nil
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// GetArticle loads one article.
func (s *ArticleStore) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	if err := s.DB.WithContext(ctx).First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, dbError("get article", err)
	}
	return &article, nil
}

// GetCitations returns the citations of an article in insertion order.
// An unknown article simply has none.
func (s *ArticleStore) GetCitations(ctx context.Context, articleID uint) ([]models.Citation, error) {
	citations := []models.Citation{}
	if err := s.DB.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("id asc").
		Find(&citations).Error; err != nil {
		return nil, dbError("get citations", err)
	}
	return citations, nil
}

// SetArchived sets the archive flag of one article. Setting the current value again is not an error.
func (s *ArticleStore) SetArchived(ctx context.Context, id uint, archived bool) (*models.Article, error) {
	var article models.Article
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&article, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&article).Update("archived", archived).Error; err != nil {
			return err
		}
		return tx.First(&article, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, dbError("set archived", err)
	}
	return &article, nil
}

// BulkSetArchived applies the flag to every existing id. Duplicate ids are
// collapsed and unknown ids skipped; ErrNotFound only when nothing matched.
func (s *ArticleStore) BulkSetArchived(ctx context.Context, ids []uint, archived bool) ([]models.Article, error) {
	unique := UniqueIDs(ids)
	if len(unique) == 0 {
		return nil, ErrNotFound
	}

	var articles []models.Article
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var matched []uint
		if err := tx.Model(&models.Article{}).Where("id IN ?", unique).Pluck("id", &matched).Error; err != nil {
			return err
		}
		if len(matched) == 0 {
			return ErrNotFound
		}
		if err := tx.Model(&models.Article{}).Where("id IN ?", matched).Update("archived", archived).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", matched).Order("id asc").Find(&articles).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, dbError("bulk set archived", err)
	}
	return articles, nil
}

// UniqueIDs drops duplicates and zero ids and returns the rest sorted.
func UniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ArticlesWithExpiringMedia finds articles whose stored media URLs expire before the cutoff.
func (s *ArticleStore) ArticlesWithExpiringMedia(ctx context.Context, before time.Time, limit int) ([]models.Article, error) {
	var articles []models.Article
	if err := s.DB.WithContext(ctx).
		Where("(image_key <> '' AND image_url_expires_at < ?) OR (audio_key <> '' AND audio_url_expires_at < ?)", before, before).
		Order("id asc").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, dbError("find expiring media", err)
	}
	return articles, nil
}

// UpdateMediaURLs stores re-signed URLs. The article's updatedAt is left alone
// since re-signing does not change its content.
func (s *ArticleStore) UpdateMediaURLs(ctx context.Context, id uint, urls MediaURLs) error {
	updates := map[string]any{}
	if urls.ImageURL != nil {
		updates["image_url"] = *urls.ImageURL
		updates["image_url_expires_at"] = urls.ImageExpiresAt
	}
	if urls.AudioURL != nil {
		updates["audio_url"] = *urls.AudioURL
		updates["audio_url_expires_at"] = urls.AudioExpiresAt
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.DB.WithContext(ctx).Model(&models.Article{}).Where("id = ?", id).UpdateColumns(updates)
	if res.Error != nil {
		return dbError("update media urls", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
