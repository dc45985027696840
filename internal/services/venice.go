package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/narration-engine/pkg/chat"
)

const (
	veniceBaseURL = "https://api.venice.ai/api/v1"
	msgNoResponse = "(no response)"

	DefaultVeniceTemperature = 0.8
	DefaultVeniceMaxTokens   = 2048

	DefaultImageWidth  = 1024
	DefaultImageHeight = 768
	veniceSpeechModel  = "tts-kokoro"
	maxSpeechInput     = 4096
)

// VeniceService implements LLMService, ImageGenerator and SpeechSynthesizer
// for Venice AI
type VeniceService struct {
	apiKey      string
	modelName   string
	imageModel  string
	speechVoice string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
}

var (
	_ LLMService        = (*VeniceService)(nil)
	_ ImageGenerator    = (*VeniceService)(nil)
	_ SpeechSynthesizer = (*VeniceService)(nil)
)

type VeniceParameters struct {
	IncludeVeniceSystemPrompt bool   `json:"include_venice_system_prompt"`
	EnableWebSearch           string `json:"enable_web_search"`
}

// VeniceChatRequest represents the request structure for Venice AI chat completions
type VeniceChatRequest struct {
	Model            string             `json:"model"`
	Messages         []chat.ChatMessage `json:"messages"`
	Temperature      float64            `json:"temperature,omitempty"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	Stream           bool               `json:"stream"`
	VeniceParameters VeniceParameters   `json:"venice_parameters"`
}

// VeniceChatChoice represents a single choice in the Venice AI response
type VeniceChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// VeniceChatResponse represents the response structure for Venice AI chat completions
type VeniceChatResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []VeniceChatChoice `json:"choices"`
	Error   *veniceError       `json:"error,omitempty"`
}

type veniceError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// VeniceImageRequest is the body of POST /image/generate
type VeniceImageRequest struct {
	Model        string `json:"model"`
	Prompt       string `json:"prompt"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	StylePreset  string `json:"style_preset,omitempty"`
	Format       string `json:"format"`
	ReturnBinary bool   `json:"return_binary"`
	SafeMode     bool   `json:"safe_mode"`
}

// VeniceImageResponse carries base64 encoded images
type VeniceImageResponse struct {
	ID     string       `json:"id"`
	Images []string     `json:"images"`
	Error  *veniceError `json:"error,omitempty"`
}

// VeniceSpeechRequest is the body of POST /audio/speech
type VeniceSpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// NewVeniceService creates a new Venice AI service
func NewVeniceService(apiKey, modelName string, timeout time.Duration, logger *slog.Logger) *VeniceService {
	return &VeniceService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   veniceBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// WithMedia sets the image model and speech voice used for enrichment.
func (v *VeniceService) WithMedia(imageModel, speechVoice string) *VeniceService {
	v.imageModel = imageModel
	v.speechVoice = speechVoice
	return v
}

// WithBaseURL points the service at a different API root.
func (v *VeniceService) WithBaseURL(url string) *VeniceService {
	v.baseURL = strings.TrimRight(url, "/")
	return v
}

// post sends a JSON body and returns the raw response body on 200.
func (v *VeniceService) post(ctx context.Context, path string, payload any) ([]byte, string, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// Chat generates a narrator response using Venice AI
func (v *VeniceService) Chat(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	body, _, err := v.post(ctx, "/chat/completions", VeniceChatRequest{
		Model:       v.modelName,
		Messages:    messages,
		Temperature: DefaultVeniceTemperature,
		MaxTokens:   DefaultVeniceMaxTokens,
		VeniceParameters: VeniceParameters{
			IncludeVeniceSystemPrompt: false,
			EnableWebSearch:           "off",
		},
	})
	if err != nil {
		return "", err
	}

	var veniceResp VeniceChatResponse
	if err := json.Unmarshal(body, &veniceResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if veniceResp.Error != nil {
		return "", fmt.Errorf("API error: %s", veniceResp.Error.Message)
	}

	if len(veniceResp.Choices) == 0 {
		return msgNoResponse, nil
	}

	return veniceResp.Choices[0].Message.Content, nil
}

// GenerateImage renders an image and returns it as a data URL.
func (v *VeniceService) GenerateImage(ctx context.Context, ir ImageRequest) (string, error) {
	if strings.TrimSpace(ir.Prompt) == "" {
		return "", fmt.Errorf("image prompt is empty")
	}
	if ir.Width == 0 {
		ir.Width = DefaultImageWidth
	}
	if ir.Height == 0 {
		ir.Height = DefaultImageHeight
	}

	body, _, err := v.post(ctx, "/image/generate", VeniceImageRequest{
		Model:       v.imageModel,
		Prompt:      ir.Prompt,
		Width:       ir.Width,
		Height:      ir.Height,
		StylePreset: ir.Style,
		Format:      "webp",
		SafeMode:    true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate image: %w", err)
	}

	var imgResp VeniceImageResponse
	if err := json.Unmarshal(body, &imgResp); err != nil {
		return "", fmt.Errorf("failed to parse image response: %w", err)
	}
	if imgResp.Error != nil {
		return "", fmt.Errorf("API error: %s", imgResp.Error.Message)
	}
	if len(imgResp.Images) == 0 || imgResp.Images[0] == "" {
		return "", fmt.Errorf("image response contained no images")
	}

	v.logger.Debug("Venice image generated", "image_id", imgResp.ID, "model", v.imageModel)
	return "data:image/webp;base64," + imgResp.Images[0], nil
}

// Synthesize renders narration audio and returns it as a data URL.
func (v *VeniceService) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("speech input is empty")
	}
	if r := []rune(text); len(r) > maxSpeechInput {
		text = string(r[:maxSpeechInput])
	}

	body, contentType, err := v.post(ctx, "/audio/speech", VeniceSpeechRequest{
		Model:          veniceSpeechModel,
		Input:          text,
		Voice:          v.speechVoice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return "", fmt.Errorf("failed to synthesize speech: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("speech response was empty")
	}
	if contentType == "" || strings.HasPrefix(contentType, "application/json") {
		contentType = "audio/mpeg"
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}
