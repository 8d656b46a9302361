package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/providers"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// maxSpeechBytes caps the audio we are willing to buffer for one request.
const maxSpeechBytes = 25 << 20

// Client implements providers.Provider on top of the OpenAI API.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
	api    *goopenai.Client
}

var _ providers.Provider = (*Client)(nil)

// NewClient creates the OpenAI provider. OPENAI_BASE_URL allows compatible gateways.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	apiCfg := goopenai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		apiCfg.BaseURL = cfg.OpenAIBaseURL
	}
	return &Client{
		Config: cfg,
		Logger: logger.With(zap.String("provider", "openai")),
		api:    goopenai.NewClientWithConfig(apiCfg),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "openai"
}

// GenerateText asks the chat model for a JSON object answer.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.Logger.Debug("Requesting chat completion", zap.String("model", c.Config.TextModel))

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.Config.TextModel,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	c.Logger.Debug("Chat completion finished",
		zap.Int("response_chars", len(content)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return content, nil
}

// GenerateImage requests a single image and returns its provider-hosted URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Model:          c.Config.ImageModel,
		N:              1,
		Size:           c.Config.ImageSize,
		ResponseFormat: goopenai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("image generation returned no url")
	}
	return resp.Data[0].URL, nil
}

// SynthesizeSpeech returns MP3 bytes for the given plain text.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.Config.SpeechModel),
		Voice:          goopenai.SpeechVoice(c.Config.SpeechVoice),
		Input:          text,
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(io.LimitReader(resp, maxSpeechBytes))
	if err != nil {
		return nil, classify(err)
	}
	if len(audio) == 0 {
		return nil, errors.New("speech synthesis returned no audio")
	}
	return audio, nil
}

// classify tags errors that are worth another attempt with providers.ErrTransient.
func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if retryableStatus(apiErr.HTTPStatusCode) {
			return fmt.Errorf("%w: %w", providers.ErrTransient, err)
		}
		return err
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 || retryableStatus(reqErr.HTTPStatusCode) {
			return fmt.Errorf("%w: %w", providers.ErrTransient, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", providers.ErrTransient, err)
	}
	return err
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
