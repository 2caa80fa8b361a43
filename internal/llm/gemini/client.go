package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"nci-backend/internal/llm"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel   = "gemini-2.5-flash"
	defaultTimeout = 120 * time.Second
)

// Options configures a Client.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	Validation llm.Validation
	HTTPClient *http.Client
}

// Client implements llm.Client using the Gemini generateContent REST API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	validation llm.Validation
	httpClient *http.Client
}

// NewClient constructs a Gemini client. A missing API key is not an error
// here; Analyze reports it before any network call.
func NewClient(opts Options) *Client {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	validation := opts.Validation
	if validation == "" {
		validation = llm.ValidationStrict
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		baseURL:    baseURL,
		validation: validation,
		httpClient: httpClient,
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// buildRequest assembles the request body: binary part first, then text.
func buildRequest(input llm.Input) generateRequest {
	parts := make([]part, 0, 2)
	if input.File != nil {
		parts = append(parts, part{InlineData: &inlineData{MimeType: input.File.MimeType, Data: input.File.Data}})
	}
	if input.Text != "" {
		parts = append(parts, part{Text: input.Text})
	}
	return generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: llm.SystemInstruction()}}},
		Contents:          []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   llm.ResponseSchema(),
		},
	}
}

// Analyze scores the input against all criteria.
func (c *Client) Analyze(ctx context.Context, input llm.Input) (llm.Result, error) {
	if !input.HasContent() {
		return llm.Result{}, llm.ErrNoContent
	}
	if c.apiKey == "" {
		return llm.Result{}, llm.ErrMissingCredential
	}

	payload, err := json.Marshal(buildRequest(input))
	if err != nil {
		return llm.Result{}, err
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return llm.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return llm.Result{}, fmt.Errorf("gemini request timeout: %w", err)
		}
		return llm.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Result{}, err
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return llm.Result{}, fmt.Errorf("gemini http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return llm.Result{}, fmt.Errorf("gemini response parse: %w", err)
	}
	if parsed.Error != nil {
		return llm.Result{}, fmt.Errorf("gemini http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Status)
	}
	if resp.StatusCode >= 400 {
		return llm.Result{}, fmt.Errorf("gemini http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return llm.Result{}, fmt.Errorf("gemini blocked prompt: %s", parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return llm.Result{}, llm.ErrEmptyResponse
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	c.logUsage(parsed)

	return llm.ParseResult([]byte(text.String()), c.validation)
}

func (c *Client) logUsage(resp generateResponse) {
	if resp.UsageMetadata == nil {
		log.Printf("llm response provider=gemini model=%s prompt_hash=%s", c.model, llm.PromptHash())
		return
	}
	log.Printf("llm response provider=gemini model=%s prompt_hash=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		c.model, llm.PromptHash(), resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount, resp.UsageMetadata.TotalTokenCount)
}

var _ llm.Client = (*Client)(nil)
