package providers

import (
	"context"
	"errors"
)

// ErrTransient marks provider failures worth retrying (rate limits, 5xx, dropped connections).
var ErrTransient = errors.New("transient provider failure")

// TextGenerator drafts article JSON from a system prompt and a user message.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageGenerator returns a short-lived URL of a freshly generated image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// SpeechSynthesizer turns plain text into MP3 audio.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

// Provider is the full capability set of an AI backend.
type Provider interface {
	TextGenerator
	ImageGenerator
	SpeechSynthesizer

	// Name returns the unique provider name (e.g. "openai").
	Name() string
}
