package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/models"
	"github.com/dctmfoo/AIResearchScribe/storage"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		TextModel:        "gpt-4o",
		ImageModel:       "dall-e-3",
		SpeechModel:      "tts-1",
		ProviderTimeout:  2 * time.Second,
		StorageTimeout:   2 * time.Second,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		SignedURLTTL:     7 * 24 * time.Hour,
		URLRefreshWindow: 24 * time.Hour,
		AudioStorage:     AudioStorageObject,
		JWTSecret:        "test-secret",
		JWTTTL:           time.Hour,
	}
}

// fakeProvider counts every call so tests can assert which stages ran.
type fakeProvider struct {
	GenerateTextFunc     func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	GenerateImageFunc    func(ctx context.Context, prompt string) (string, error)
	SynthesizeSpeechFunc func(ctx context.Context, text string) ([]byte, error)

	mu          sync.Mutex
	textCalls   int
	imageCalls  int
	speechCalls int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.textCalls++
	f.mu.Unlock()
	if f.GenerateTextFunc == nil {
		return "", errors.New("GenerateText not stubbed")
	}
	return f.GenerateTextFunc(ctx, systemPrompt, userPrompt)
}

func (f *fakeProvider) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.imageCalls++
	f.mu.Unlock()
	if f.GenerateImageFunc == nil {
		return "", errors.New("GenerateImage not stubbed")
	}
	return f.GenerateImageFunc(ctx, prompt)
}

func (f *fakeProvider) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.speechCalls++
	f.mu.Unlock()
	if f.SynthesizeSpeechFunc == nil {
		return nil, errors.New("SynthesizeSpeech not stubbed")
	}
	return f.SynthesizeSpeechFunc(ctx, text)
}

func (f *fakeProvider) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls + f.imageCalls + f.speechCalls
}

type putCall struct {
	Key          string
	Data         []byte
	ContentType  string
	CacheControl string
}

type fakeObjectStore struct {
	PutFunc        func(ctx context.Context, key string, data []byte, contentType, cacheControl string) error
	PresignGetFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)

	mu   sync.Mutex
	puts []putCall
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error {
	f.mu.Lock()
	f.puts = append(f.puts, putCall{Key: key, Data: data, ContentType: contentType, CacheControl: cacheControl})
	f.mu.Unlock()
	if f.PutFunc != nil {
		return f.PutFunc(ctx, key, data, contentType, cacheControl)
	}
	return nil
}

func (f *fakeObjectStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.PresignGetFunc != nil {
		return f.PresignGetFunc(ctx, key, ttl)
	}
	return "https://bucket.example/" + key + "?X-Amz-Signature=sig", nil
}

type fakeArticleRepo struct {
	CreateArticleFunc func(ctx context.Context, article *models.Article, citations []models.Citation) error

	calls     int
	article   *models.Article
	citations []models.Citation
}

func (f *fakeArticleRepo) CreateArticle(ctx context.Context, article *models.Article, citations []models.Citation) error {
	f.calls++
	f.article = article
	f.citations = citations
	if f.CreateArticleFunc != nil {
		return f.CreateArticleFunc(ctx, article, citations)
	}
	article.ID = 42
	return nil
}

type fakeMedia struct {
	AcquireImageFunc func(ctx context.Context, prompt, title string) (*StoredMedia, error)
	AcquireAudioFunc func(ctx context.Context, content, title string) (*StoredMedia, error)

	imageCalls int
	audioCalls int
}

func (f *fakeMedia) AcquireImage(ctx context.Context, prompt, title string) (*StoredMedia, error) {
	f.imageCalls++
	return f.AcquireImageFunc(ctx, prompt, title)
}

func (f *fakeMedia) AcquireAudio(ctx context.Context, content, title string) (*StoredMedia, error) {
	f.audioCalls++
	return f.AcquireAudioFunc(ctx, content, title)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}}
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.Username]; ok {
		return storage.ErrConflict
	}
	user.ID = uint(len(f.users) + 1)
	f.users[user.Username] = user
	return nil
}

func (f *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}
