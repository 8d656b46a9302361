package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/models"
	"github.com/dctmfoo/AIResearchScribe/services"
	"github.com/dctmfoo/AIResearchScribe/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGenerator struct {
	GenerateFunc func(ctx context.Context, req services.GenerateRequest) (*models.Article, error)

	calls int
	last  services.GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req services.GenerateRequest) (*models.Article, error) {
	f.calls++
	f.last = req
	if f.GenerateFunc == nil {
		return nil, errors.New("Generate not stubbed")
	}
	return f.GenerateFunc(ctx, req)
}

type fakeArticleStore struct {
	ListArticlesFunc    func(ctx context.Context, q storage.ListQuery) (*storage.ArticlePage, error)
	GetArticleFunc      func(ctx context.Context, id uint) (*models.Article, error)
	GetCitationsFunc    func(ctx context.Context, articleID uint) ([]models.Citation, error)
	SetArchivedFunc     func(ctx context.Context, id uint, archived bool) (*models.Article, error)
	BulkSetArchivedFunc func(ctx context.Context, ids []uint, archived bool) ([]models.Article, error)
}

func (f *fakeArticleStore) ListArticles(ctx context.Context, q storage.ListQuery) (*storage.ArticlePage, error) {
	return f.ListArticlesFunc(ctx, q)
}

func (f *fakeArticleStore) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	return f.GetArticleFunc(ctx, id)
}

func (f *fakeArticleStore) GetCitations(ctx context.Context, articleID uint) ([]models.Citation, error) {
	return f.GetCitationsFunc(ctx, articleID)
}

func (f *fakeArticleStore) SetArchived(ctx context.Context, id uint, archived bool) (*models.Article, error) {
	return f.SetArchivedFunc(ctx, id, archived)
}

func (f *fakeArticleStore) BulkSetArchived(ctx context.Context, ids []uint, archived bool) ([]models.Article, error) {
	return f.BulkSetArchivedFunc(ctx, ids, archived)
}

type fakeSpeech struct {
	SynthesizeFunc func(ctx context.Context, content string) ([]byte, error)
}

func (f *fakeSpeech) Synthesize(ctx context.Context, content string) ([]byte, error) {
	return f.SynthesizeFunc(ctx, content)
}

// fakeAuth knows two tokens: "valid" is user 7, "other" is user 8.
type fakeAuth struct {
	RegisterFunc func(ctx context.Context, username, password string) (string, error)
	LoginFunc    func(ctx context.Context, username, password string) (string, error)
}

func (f *fakeAuth) ParseToken(token string) (*services.Claims, error) {
	switch token {
	case "Bearer valid":
		return &services.Claims{UserID: 7, Username: "ada"}, nil
	case "Bearer other":
		return &services.Claims{UserID: 8, Username: "grace"}, nil
	}
	return nil, services.ErrInvalidToken
}

func (f *fakeAuth) Register(ctx context.Context, username, password string) (string, error) {
	return f.RegisterFunc(ctx, username, password)
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (string, error) {
	return f.LoginFunc(ctx, username, password)
}

func testConfig() *config.Config {
	return &config.Config{
		FrontendOrigins:        []string{"http://localhost:5173"},
		MetricsAPIKey:          "metrics-key",
		RateLimitWindow:        time.Hour,
		RateLimitAnonymous:     2,
		RateLimitAuthenticated: 3,
	}
}

type testServer struct {
	router    *gin.Engine
	generator *fakeGenerator
	articles  *fakeArticleStore
	speech    *fakeSpeech
	auth      *fakeAuth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLimiter(t, NewMemoryLimiter(testConfig().RateLimitWindow))
}

// newTestServerWithLimiter builds the router with limiter; nil turns rate limiting off.
func newTestServerWithLimiter(t *testing.T, limiter Limiter) *testServer {
	t.Helper()
	cfg := testConfig()
	s := &testServer{
		generator: &fakeGenerator{},
		articles:  &fakeArticleStore{},
		speech:    &fakeSpeech{},
		auth:      &fakeAuth{},
	}
	s.router = NewRouter(cfg, &Handler{
		Generator: s.generator,
		Articles:  s.articles,
		Speech:    s.speech,
		Auth:      s.auth,
		Limiter:   limiter,
		Logger:    zap.NewNop(),
	})
	return s
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func sampleArticle(id uint) *models.Article {
	img := "https://bucket.example/1-tides.png?sig"
	return &models.Article{ID: id, Title: "Tides", Content: "<p>The Moon (Newton, 1687).</p>", Summary: "Gravity.", ImageURL: &img}
}
