package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/models"
	"github.com/dctmfoo/AIResearchScribe/providers"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ArticleRepository persists a finished article together with its citations.
type ArticleRepository interface {
	CreateArticle(ctx context.Context, article *models.Article, citations []models.Citation) error
}

// MediaAcquirer produces the optional image and audio of an article.
type MediaAcquirer interface {
	AcquireImage(ctx context.Context, prompt, title string) (*StoredMedia, error)
	AcquireAudio(ctx context.Context, content, title string) (*StoredMedia, error)
}

// GenerateRequest is one user's ask for a new article.
type GenerateRequest struct {
	Topic  string
	Length string
	UserID *uint
}

// ArticleService runs the generation pipeline:
// prompt, text, validation, image, audio, persistence.
// Only text and validation failures are fatal; image and audio are best effort.
type ArticleService struct {
	Text     providers.TextGenerator
	Media    MediaAcquirer
	Articles ArticleRepository
	Logger   *zap.Logger

	ProviderName   string
	Models         map[string]string
	PersistTimeout time.Duration

	textRetry *Retrier
}

// NewArticleService wires the orchestrator.
func NewArticleService(cfg *config.Config, providerName string, text providers.TextGenerator, media MediaAcquirer, articles ArticleRepository, logger *zap.Logger) *ArticleService {
	log := logger.With(zap.String("component", "orchestrator"))
	return &ArticleService{
		Text:         text,
		Media:        media,
		Articles:     articles,
		Logger:       log,
		ProviderName: providerName,
		Models: map[string]string{
			"textModel":   cfg.TextModel,
			"imageModel":  cfg.ImageModel,
			"speechModel": cfg.SpeechModel,
		},
		PersistTimeout: cfg.StorageTimeout,
		textRetry:      NewRetrier(RetryConfigFromConfig(cfg, cfg.ProviderTimeout), IsRetryable, log),
	}
}

// Generate turns a topic into a persisted article. The returned article has its
// id set; citations are stored but not attached.
func (s *ArticleService) Generate(ctx context.Context, req GenerateRequest) (*models.Article, error) {
	topic := strings.TrimSpace(req.Topic)
	if utf8.RuneCountInString(topic) < MinTopicLength {
		return nil, &InvalidInputError{Field: "topic", Reason: fmt.Sprintf("must be at least %d characters", MinTopicLength)}
	}
	length, err := ParseArticleLength(req.Length)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log := s.Logger.With(zap.String("topic", topic), zap.String("length", string(length)))
	log.Info("Starting article generation")

	prompt := BuildResearchPrompt(topic, length)
	log.Debug("Stage completed", zap.String("stage", string(StagePrompt)))

	var raw string
	err = s.textRetry.Do(ctx, "text generation", func(ctx context.Context) error {
		out, err := s.Text.GenerateText(ctx, prompt, "Write the article about: "+topic)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, s.fail(log, start, StageText, &ProviderError{Stage: StageText, Retryable: IsRetryable(err), Err: err})
	}
	log.Debug("Stage completed", zap.String("stage", string(StageText)), zap.Int("response_chars", len(raw)))

	draft, err := ParseDraft(raw)
	if err != nil {
		return nil, s.fail(log, start, StageValidate, err)
	}
	log.Debug("Stage completed", zap.String("stage", string(StageValidate)), zap.Int("citations", len(draft.Citations)))

	article := &models.Article{
		Topic:      topic,
		Length:     string(length),
		Title:      draft.Title,
		Content:    draft.Content,
		Summary:    draft.Summary,
		UserID:     req.UserID,
		Generation: s.generationInfo(),
	}

	if image, err := s.Media.AcquireImage(ctx, BuildImagePrompt(draft.Title), draft.Title); err != nil {
		s.degrade(log, article, StageImage, err)
	} else {
		article.ImageURL = &image.URL
		article.ImageKey = image.Key
		article.ImageURLExpiresAt = image.ExpiresAt
		log.Debug("Stage completed", zap.String("stage", string(StageImage)), zap.String("key", image.Key))
	}

	if audio, err := s.Media.AcquireAudio(ctx, draft.Content, draft.Title); err != nil {
		s.degrade(log, article, StageAudio, err)
	} else {
		article.AudioURL = &audio.URL
		article.AudioKey = audio.Key
		article.AudioURLExpiresAt = audio.ExpiresAt
		log.Debug("Stage completed", zap.String("stage", string(StageAudio)), zap.String("key", audio.Key))
	}

	article.Generation["durationMs"] = time.Since(start).Milliseconds()

	// persist the finished draft even when the caller has gone away
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout())
	defer cancel()
	if err := s.Articles.CreateArticle(persistCtx, article, toCitations(draft.Citations)); err != nil {
		return nil, s.fail(log, start, StagePersist, err)
	}

	articlesGeneratedCounter.Inc()
	generationDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	log.Info("Article generated",
		zap.Uint("id", article.ID),
		zap.Bool("has_image", article.ImageURL != nil),
		zap.Bool("has_audio", article.AudioURL != nil),
		zap.Duration("duration", time.Since(start)))
	return article, nil
}

func (s *ArticleService) fail(log *zap.Logger, start time.Time, stage Stage, err error) error {
	stageFailuresCounter.WithLabelValues(string(stage)).Inc()
	generationDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
	log.Error("Article generation failed", zap.String("stage", string(stage)), zap.Error(err))
	return err
}

func (s *ArticleService) degrade(log *zap.Logger, article *models.Article, stage Stage, err error) {
	stageFailuresCounter.WithLabelValues(string(stage)).Inc()
	log.Warn("Optional stage failed, continuing without it", zap.String("stage", string(stage)), zap.Error(err))
	article.Generation[string(stage)+"Error"] = failureReason(stage, err)
}

func (s *ArticleService) generationInfo() datatypes.JSONMap {
	info := datatypes.JSONMap{"provider": s.ProviderName}
	for k, v := range s.Models {
		info[k] = v
	}
	return info
}

func (s *ArticleService) persistTimeout() time.Duration {
	if s.PersistTimeout <= 0 {
		return 30 * time.Second
	}
	return s.PersistTimeout
}

// failureReason is the client-safe description of an optional stage failure.
func failureReason(stage Stage, err error) string {
	var (
		provErr *ProviderError
		dlErr   *DownloadError
		upErr   *UploadError
	)
	switch {
	case errors.As(err, &provErr):
		return provErr.UserMessage()
	case errors.As(err, &dlErr):
		return "image download failed"
	case errors.As(err, &upErr):
		return "storage upload failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return string(stage) + " failed"
	}
}

func toCitations(drafts []DraftCitation) []models.Citation {
	out := make([]models.Citation, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, models.Citation{
			Source: d.Source,
			Author: d.Author,
			Year:   d.Year,
			URL:    d.URL,
			Quote:  d.Quote,
		})
	}
	return out
}
