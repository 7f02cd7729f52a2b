// Package openai talks to the OpenAI REST API for transcription and
// transcript analysis.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/domain"
	"github.com/aousabdo/meetingsage/internal/ports"
)

// maxTranscribeBytes is the Whisper endpoint's upload limit.
const maxTranscribeBytes = 25 * 1024 * 1024

const defaultBaseURL = "https://api.openai.com/v1"

// Config carries client settings. Zero values fall back to API defaults.
type Config struct {
	APIKey       string
	BaseURL      string
	WhisperModel string
	ChatModel    string
	// MaxRetries bounds retries after the first attempt. Only network
	// failures and 5xx responses are retried.
	MaxRetries int
	HTTPClient *http.Client
}

// Client implements speech-to-text and transcript analysis over the
// OpenAI API.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = "whisper-1"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-3.5-turbo"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		cfg:  cfg,
		http: httpClient,
		log:  log.With().Str("component", "openai").Logger(),
	}
}

// Transcribe uploads an audio file to the Whisper endpoint and returns the
// transcript text.
func (c *Client) Transcribe(ctx context.Context, path string) (domain.Transcription, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Transcription{}, fmt.Errorf("audio file: %w", err)
	}
	if info.Size() > maxTranscribeBytes {
		return domain.Transcription{}, fmt.Errorf("%s is %d bytes: %w", filepath.Base(path), info.Size(), ports.ErrFileTooLarge)
	}

	build := func() (*http.Request, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, err
		}
		if err := mw.WriteField("model", c.cfg.WhisperModel); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", bytes.NewReader(body.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	}

	raw, err := c.doWithRetry(build)
	if err != nil {
		return domain.Transcription{}, fmt.Errorf("transcription: %w", err)
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.Transcription{}, fmt.Errorf("decoding transcription response: %w", err)
	}

	c.log.Info().Int("chars", len(resp.Text)).Msg("transcription complete")
	return domain.Transcription{Text: resp.Text, CreatedAt: time.Now()}, nil
}

const analysisSystemPrompt = `You are an assistant that analyzes meeting transcripts. ` +
	`Respond with a JSON object containing exactly two keys: "summary" (a concise ` +
	`paragraph covering the key points and decisions) and "action_items" (an array of ` +
	`objects with "description", "assigned_to", "due_date" in YYYY-MM-DD format or ` +
	`null, and "status" which is always "pending").`

// Analyze asks the chat model for a structured summary with action items.
func (c *Client) Analyze(ctx context.Context, transcript, title string) (domain.Analysis, error) {
	user := fmt.Sprintf("Meeting title: %s\n\nTranscript:\n%s", title, transcript)
	raw, err := c.chat(ctx, analysisSystemPrompt, user, true)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("analysis: %w", err)
	}

	var parsed struct {
		Summary     string `json:"summary"`
		ActionItems []struct {
			Description string `json:"description"`
			AssignedTo  string `json:"assigned_to"`
			DueDate     string `json:"due_date"`
			Status      string `json:"status"`
		} `json:"action_items"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return domain.Analysis{}, fmt.Errorf("decoding analysis: %w", err)
	}

	analysis := domain.Analysis{Summary: strings.TrimSpace(parsed.Summary)}
	for _, item := range parsed.ActionItems {
		desc := strings.TrimSpace(item.Description)
		if desc == "" {
			continue
		}
		ai := domain.ActionItem{
			Description: desc,
			AssignedTo:  strings.TrimSpace(item.AssignedTo),
			Status:      domain.CoerceActionItemStatus(item.Status),
		}
		if due, err := time.Parse("2006-01-02", strings.TrimSpace(item.DueDate)); err == nil {
			ai.DueDate = &due
		}
		analysis.ActionItems = append(analysis.ActionItems, ai)
	}
	return analysis, nil
}

// Summarize returns a plain narrative summary without structure. Used as a
// fallback when structured analysis fails.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	system := "Summarize the following meeting transcript in a concise paragraph."
	summary, err := c.chat(ctx, system, transcript, false)
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// ExtractParticipants asks the chat model for speaker names. Failures yield
// the single placeholder "Unknown" rather than an error so a meeting record
// can always be written.
func (c *Client) ExtractParticipants(ctx context.Context, transcript string) ([]string, error) {
	system := `List the names of the meeting participants mentioned in the transcript, ` +
		`separated by commas. If no names can be identified, respond with "Unknown".`
	raw, err := c.chat(ctx, system, transcript, false)
	if err != nil {
		c.log.Warn().Err(err).Msg("participant extraction failed")
		return []string{"Unknown"}, nil
	}

	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		names = []string{"Unknown"}
	}
	return names, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

// chat runs one chat completion and returns the first choice's content.
func (c *Client) chat(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	payload := chatRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   1000,
		Temperature: 0.3,
	}
	if jsonMode {
		payload.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	raw, err := c.doWithRetry(build)
	if err != nil {
		return "", err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// doWithRetry executes a request with bounded retries. Requests are rebuilt
// per attempt so bodies can be re-read. Network failures and 5xx responses
// retry; everything else fails immediately.
func (c *Client) doWithRetry(build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn().Int("attempt", attempt).Err(lastErr).Msg("retrying request")
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		apiErr := apiError(resp.StatusCode, body)
		if resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}
		return nil, apiErr
	}
	return nil, lastErr
}

// apiError classifies an error response. Quota and billing failures map to
// the typed sentinel so callers can present them distinctly.
func apiError(status int, body []byte) error {
	text := string(body)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "exceeded your current quota") {
		return fmt.Errorf("openai: %w", ports.ErrQuotaExceeded)
	}

	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return fmt.Errorf("openai: status %d: %s", status, parsed.Error.Message)
	}
	return fmt.Errorf("openai: status %d: %s", status, strings.TrimSpace(text))
}
