// Package stt delegates speech recognition to an OpenAI-compatible
// transcription endpoint.
package stt

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Recognizer turns one audio file into text.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) (string, error)
}

type Config struct {
	// BaseURL points at any OpenAI-compatible server, e.g. a local
	// whisper deployment. Empty means api.openai.com.
	BaseURL  string
	APIKey   string
	Model    string
	Language string
}

// OpenAI implements Recognizer with the audio transcription API.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
}

func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		language: cfg.Language,
	}
}

func (o *OpenAI) Recognize(ctx context.Context, audioPath string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: audioPath,
		Language: o.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", audioPath, err)
	}
	return strings.TrimSpace(resp.Text), nil
}
