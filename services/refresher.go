package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/models"
	"github.com/dctmfoo/AIResearchScribe/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	refreshBatchSize   = 500
	refreshConcurrency = 5
	refreshRunTimeout  = 10 * time.Minute
)

// MediaURLStore finds and updates articles whose signed URLs are about to expire.
type MediaURLStore interface {
	ArticlesWithExpiringMedia(ctx context.Context, before time.Time, limit int) ([]models.Article, error)
	UpdateMediaURLs(ctx context.Context, id uint, urls storage.MediaURLs) error
}

// URLSigner issues signed GET URLs for stored objects.
type URLSigner interface {
	SignURL(ctx context.Context, key string) (*StoredMedia, error)
}

// URLRefresher re-signs image and audio URLs before they expire.
type URLRefresher struct {
	Store  MediaURLStore
	Signer URLSigner
	Logger *zap.Logger

	// Window is how far ahead of expiry a URL gets re-signed.
	Window      time.Duration
	BatchSize   int
	Concurrency int

	now func() time.Time
}

// NewURLRefresher creates the refresher with the configured window.
func NewURLRefresher(cfg *config.Config, store MediaURLStore, signer URLSigner, logger *zap.Logger) *URLRefresher {
	return &URLRefresher{
		Store:       store,
		Signer:      signer,
		Logger:      logger.With(zap.String("component", "url_refresher")),
		Window:      cfg.URLRefreshWindow,
		BatchSize:   refreshBatchSize,
		Concurrency: refreshConcurrency,
		now:         time.Now,
	}
}

// Schedule registers the refresher on the cron scheduler.
func (r *URLRefresher) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshRunTimeout)
		defer cancel()

		r.Logger.Info("Running scheduled URL refresh...")
		count, err := r.Run(ctx)
		if err != nil {
			r.Logger.Error("URL refresh failed", zap.Error(err))
			return
		}
		r.Logger.Info("URL refresh completed", zap.Int("refreshed", count))
	})
}

// Run re-signs one batch of expiring URLs and returns how many articles were updated.
// Failures of single articles are logged and retried on the next run.
func (r *URLRefresher) Run(ctx context.Context) (int, error) {
	cutoff := r.now().Add(r.Window)
	articles, err := r.Store.ArticlesWithExpiringMedia(ctx, cutoff, r.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return 0, nil
	}

	var refreshed atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.Concurrency)
	for _, article := range articles {
		article := article
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.refresh(ctx, article, cutoff); err != nil {
				r.Logger.Warn("Could not refresh media URLs", zap.Uint("article_id", article.ID), zap.Error(err))
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	err = g.Wait()

	n := refreshed.Load()
	mediaURLsRefreshedCounter.Add(float64(n))
	return int(n), err
}

func (r *URLRefresher) refresh(ctx context.Context, article models.Article, cutoff time.Time) error {
	var urls storage.MediaURLs
	if article.ImageKey != "" && expiresBefore(article.ImageURLExpiresAt, cutoff) {
		media, err := r.Signer.SignURL(ctx, article.ImageKey)
		if err != nil {
			return err
		}
		urls.ImageURL, urls.ImageExpiresAt = &media.URL, media.ExpiresAt
	}
	if article.AudioKey != "" && expiresBefore(article.AudioURLExpiresAt, cutoff) {
		media, err := r.Signer.SignURL(ctx, article.AudioKey)
		if err != nil {
			return err
		}
		urls.AudioURL, urls.AudioExpiresAt = &media.URL, media.ExpiresAt
	}
	return r.Store.UpdateMediaURLs(ctx, article.ID, urls)
}

func expiresBefore(t *time.Time, cutoff time.Time) bool {
	return t == nil || t.Before(cutoff)
}
