package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/providers"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	// AudioStorageObject uploads MP3s next to the images.
	AudioStorageObject = "object"
	// AudioStorageInline embeds MP3s in the article as data URLs.
	AudioStorageInline = "inline"

	maxImageBytes     = 20 << 20
	maxSlugLength     = 80
	mediaCacheControl = "public, max-age=31536000"
	inlineAudioPrefix = "data:audio/mpeg;base64,"
	downloadUserAgent = "AIResearchScribe/1.0 (+media-fetch)"
	defaultImageType  = "image/png"
	defaultAudioType  = "audio/mpeg"
)

// ErrMediaTooLarge is returned when a downloaded asset exceeds the size cap.
var ErrMediaTooLarge = errors.New("media exceeds size limit")

// ObjectStore is the slice of object storage the media pipeline writes to.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// StoredMedia points at an uploaded (or inlined) asset.
type StoredMedia struct {
	URL       string
	Key       string     // empty for inline audio
	ExpiresAt *time.Time // nil for inline audio
}

// userAgentTransport sets a stable User-Agent on every outgoing request.
type userAgentTransport struct {
	Transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", downloadUserAgent)
	return t.Transport.RoundTrip(req)
}

// NewHTTPClient returns the client used to fetch provider-hosted assets.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{Transport: http.DefaultTransport},
	}
}

// MediaService re-hosts generated images and produces speech audio.
type MediaService struct {
	Images     providers.ImageGenerator
	Speech     providers.SpeechSynthesizer
	Store      ObjectStore
	HTTPClient *http.Client
	Sanitizer  *Sanitizer
	Logger     *zap.Logger

	SignedURLTTL time.Duration
	AudioStorage string

	providerRetry *Retrier
	storageRetry  *Retrier
	now           func() time.Time
}

// NewMediaService wires the media pipeline with the configured timeouts and retry policy.
func NewMediaService(cfg *config.Config, images providers.ImageGenerator, speech providers.SpeechSynthesizer, store ObjectStore, logger *zap.Logger) *MediaService {
	log := logger.With(zap.String("component", "media"))
	return &MediaService{
		Images:        images,
		Speech:        speech,
		Store:         store,
		HTTPClient:    NewHTTPClient(cfg.StorageTimeout),
		Sanitizer:     NewSanitizer(),
		Logger:        log,
		SignedURLTTL:  cfg.SignedURLTTL,
		AudioStorage:  strings.ToLower(cfg.AudioStorage),
		providerRetry: NewRetrier(RetryConfigFromConfig(cfg, cfg.ProviderTimeout), IsRetryable, log),
		storageRetry:  NewRetrier(RetryConfigFromConfig(cfg, cfg.StorageTimeout), IsRetryable, log),
		now:           time.Now,
	}
}

// AcquireImage generates an image, copies it into object storage and returns a signed URL.
func (m *MediaService) AcquireImage(ctx context.Context, prompt, title string) (*StoredMedia, error) {
	var sourceURL string
	err := m.providerRetry.Do(ctx, "image generation", func(ctx context.Context) error {
		u, err := m.Images.GenerateImage(ctx, prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(u) == "" {
			return errors.New("provider returned no image url")
		}
		sourceURL = u
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Stage: StageImage, Retryable: IsRetryable(err), Err: err}
	}

	var (
		data        []byte
		contentType string
	)
	err = m.storageRetry.Do(ctx, "image download", func(ctx context.Context) error {
		d, ct, err := m.download(ctx, sourceURL)
		if err != nil {
			return err
		}
		data, contentType = d, ct
		return nil
	})
	if err != nil {
		return nil, err
	}

	key := m.objectKey(title, "png")
	m.Logger.Debug("Uploading image", zap.String("key", key), zap.Int("bytes", len(data)))
	return m.upload(ctx, key, data, contentType)
}

// AcquireAudio synthesizes speech for the article body and stores it according to AudioStorage.
func (m *MediaService) AcquireAudio(ctx context.Context, content, title string) (*StoredMedia, error) {
	audio, err := m.Synthesize(ctx, content)
	if err != nil {
		return nil, err
	}

	if m.AudioStorage == AudioStorageInline {
		return &StoredMedia{URL: inlineAudioPrefix + base64.StdEncoding.EncodeToString(audio)}, nil
	}

	key := m.objectKey(title, "mp3")
	m.Logger.Debug("Uploading audio", zap.String("key", key), zap.Int("bytes", len(audio)))
	return m.upload(ctx, key, audio, defaultAudioType)
}

// Synthesize returns MP3 bytes for the readable text of content. Nothing is stored.
func (m *MediaService) Synthesize(ctx context.Context, content string) ([]byte, error) {
	text := m.SpeechText(content)
	if text == "" {
		return nil, &InvalidInputError{Field: "content", Reason: "has no readable text"}
	}

	var audio []byte
	err := m.providerRetry.Do(ctx, "speech synthesis", func(ctx context.Context) error {
		a, err := m.Speech.SynthesizeSpeech(ctx, text)
		if err != nil {
			return err
		}
		audio = a
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Stage: StageAudio, Retryable: IsRetryable(err), Err: err}
	}
	return audio, nil
}

// SpeechText strips markup from content and cuts it to the provider input limit.
func (m *MediaService) SpeechText(content string) string {
	return truncateText(m.Sanitizer.StripTags(content), MaxSpeechInput)
}

// SignURL issues a fresh signed GET URL for an uploaded object.
func (m *MediaService) SignURL(ctx context.Context, key string) (*StoredMedia, error) {
	expiresAt := m.now().Add(m.SignedURLTTL)
	url, err := m.Store.PresignGet(ctx, key, m.SignedURLTTL)
	if err != nil {
		return nil, &UploadError{Key: key, Err: fmt.Errorf("presign: %w", err)}
	}
	return &StoredMedia{URL: url, Key: key, ExpiresAt: &expiresAt}, nil
}

func (m *MediaService) upload(ctx context.Context, key string, data []byte, contentType string) (*StoredMedia, error) {
	err := m.storageRetry.Do(ctx, "object upload", func(ctx context.Context) error {
		if err := m.Store.Put(ctx, key, data, contentType, mediaCacheControl); err != nil {
			return &UploadError{Key: key, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.SignURL(ctx, key)
}

// download fetches a provider-hosted asset, capped at maxImageBytes.
func (m *MediaService) download(ctx context.Context, link string) ([]byte, string, error) {
	display := redactQuery(link)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, "", &DownloadError{URL: display, StatusCode: http.StatusBadRequest, Err: err}
	}
	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return nil, "", &DownloadError{URL: display, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &DownloadError{URL: display, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", &DownloadError{URL: display, Err: err}
	}
	if len(data) > maxImageBytes {
		return nil, "", &DownloadError{URL: display, Err: ErrMediaTooLarge}
	}
	if len(data) == 0 {
		return nil, "", &DownloadError{URL: display, Err: errors.New("empty body")}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = defaultImageType
	}
	return data, contentType, nil
}

// objectKey builds {unixMillis}-{slug}.{ext}.
func (m *MediaService) objectKey(title, ext string) string {
	s := slug.Make(title)
	if len(s) > maxSlugLength {
		s = strings.Trim(s[:maxSlugLength], "-")
	}
	if s == "" {
		s = "article"
	}
	return fmt.Sprintf("%d-%s.%s", m.now().UnixMilli(), s, ext)
}

// redactQuery drops the query string, which carries the provider's access signature.
func redactQuery(link string) string {
	base, _, _ := strings.Cut(link, "?")
	return base
}
