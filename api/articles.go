package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dctmfoo/AIResearchScribe/models"
	"github.com/dctmfoo/AIResearchScribe/services"
	"github.com/dctmfoo/AIResearchScribe/storage"

	"github.com/gin-gonic/gin"
)

const (
	defaultPage  = 1
	defaultLimit = 9
	maxLimit     = 100
)

// ArticleGenerator runs the generation pipeline.
type ArticleGenerator interface {
	Generate(ctx context.Context, req services.GenerateRequest) (*models.Article, error)
}

// ArticleStore reads and archives persisted articles.
type ArticleStore interface {
	ListArticles(ctx context.Context, q storage.ListQuery) (*storage.ArticlePage, error)
	GetArticle(ctx context.Context, id uint) (*models.Article, error)
	GetCitations(ctx context.Context, articleID uint) ([]models.Citation, error)
	SetArchived(ctx context.Context, id uint, archived bool) (*models.Article, error)
	BulkSetArchived(ctx context.Context, ids []uint, archived bool) ([]models.Article, error)
}

// SpeechSynthesizer reads article content aloud on demand.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, content string) ([]byte, error)
}

type generateRequest struct {
	Topic  string `json:"topic"`
	Length string `json:"length"`
}

type archiveRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

type bulkArchiveRequest struct {
	ArticleIDs []uint `json:"articleIds" binding:"required"`
	Archived   *bool  `json:"archived" binding:"required"`
}

func (h *Handler) generateArticle(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	article, err := h.Generator.Generate(c.Request.Context(), services.GenerateRequest{
		Topic:  req.Topic,
		Length: req.Length,
		UserID: currentUserID(c),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *Handler) listArticles(c *gin.Context) {
	page, ok := positiveQuery(c, "page", defaultPage)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}
	limit, ok := positiveQuery(c, "limit", defaultLimit)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	limit = min(limit, maxLimit)

	archived := false
	if raw := c.Query("showArchived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "showArchived must be true or false"})
			return
		}
		archived = v
	}

	result, err := h.Articles.ListArticles(c.Request.Context(), storage.ListQuery{Archived: archived, Page: page, Limit: limit})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	article, err := h.Articles.GetArticle(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *Handler) getCitations(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	citations, err := h.Articles.GetCitations(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, citations)
}

func (h *Handler) getBibliography(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	article, err := h.Articles.GetArticle(ctx, id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	citations, err := h.Articles.GetCitations(ctx, id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, services.BuildBibliography(article.Content, citations))
}

func (h *Handler) synthesizeSpeech(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	article, err := h.Articles.GetArticle(ctx, id)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	audio, err := h.Speech.Synthesize(ctx, article.Content)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (h *Handler) archiveArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "archived (boolean) is required"})
		return
	}
	article, err := h.Articles.SetArchived(c.Request.Context(), id, *req.Archived)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

func (h *Handler) bulkArchiveArticles(c *gin.Context) {
	var req bulkArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "articleIds (array) and archived (boolean) are required"})
		return
	}
	if len(req.ArticleIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "articleIds must not be empty"})
		return
	}
	for _, id := range req.ArticleIDs {
		if id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "articleIds must be positive integers"})
			return
		}
	}

	articles, err := h.Articles.BulkSetArchived(c.Request.Context(), req.ArticleIDs, *req.Archived)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, articles)
}

// articleID parses the :id path parameter and answers 400 itself when it is not a positive integer.
func articleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return 0, false
	}
	return uint(id), true
}

func positiveQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, false
	}
	return v, true
}
