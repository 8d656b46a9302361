package services

import (
	"fmt"
)

// Stage names one step of the generation pipeline.
type Stage string

const (
	StagePrompt   Stage = "prompt"
	StageText     Stage = "text"
	StageValidate Stage = "validate"
	StageImage    Stage = "image"
	StageAudio    Stage = "audio"
	StagePersist  Stage = "persist"
)

// InvalidInputError reports a request parameter the pipeline refuses to work with.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError is a failed or unusable call to the text, image or speech provider.
// Retryable reports whether resubmitting the same request may succeed.
type ProviderError struct {
	Stage     Stage
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to API clients for this stage.
func (e *ProviderError) UserMessage() string {
	switch e.Stage {
	case StageText:
		return "article generation failed"
	case StageImage:
		return "image generation failed"
	case StageAudio:
		return "speech generation failed"
	default:
		return "generation provider failed"
	}
}

// SchemaValidationError means the provider answered but the payload is not a usable article.
type SchemaValidationError struct {
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	if e.Field == "" {
		return "malformed provider response: " + e.Reason
	}
	return fmt.Sprintf("malformed provider response: %s %s", e.Field, e.Reason)
}

// DownloadError is a failed fetch of a provider-hosted asset.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// UploadError is a failed write to (or signing against) object storage.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
