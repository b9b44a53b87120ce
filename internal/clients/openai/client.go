package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumira/lumira-backend/internal/logger"
	"github.com/lumira/lumira-backend/internal/pkg/httpx"
	"github.com/lumira/lumira-backend/internal/types"
	"github.com/lumira/lumira-backend/internal/utils"
)

// ImageCost is the default flat per-image price added to a run's spend;
// OPENAI_IMAGE_COST overrides it.
const ImageCost = 0.04

// TextResult is one model reply plus the usage it cost. Content is the
// decoded JSON body of the reply.
type TextResult struct {
	Content      map[string]any
	InputTokens  int
	OutputTokens int
	SpentAmount  float64
}

type ImageResult struct {
	URL         string
	SpentAmount float64
}

// Client wraps the OpenAI HTTP API. Prompt templates and model pricing come
// from the store, so operators can retune generation without a deploy.
type Client interface {
	GenerateJSON(ctx context.Context, prompt *types.Prompt, model *types.GPTModel, vars map[string]string) (*TextResult, error)
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	imageModel string
	imageSize  string
	imageCost  float64
	httpClient *http.Client

	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(utils.GetEnv("OPENAI_API_KEY", "", log))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimRight(utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log), "/")
	imageModel := utils.GetEnv("OPENAI_IMAGE_MODEL", "dall-e-3", log)
	imageSize := utils.GetEnv("OPENAI_IMAGE_SIZE", "1024x1024", log)
	imageCost := utils.GetEnvAsFloat("OPENAI_IMAGE_COST", ImageCost, log)
	timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 180, log)
	maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 4, log)

	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		imageModel: imageModel,
		imageSize:  imageSize,
		imageCost:  imageCost,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.Jitter(sleepFor)

		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

// RenderTemplate fills {name} slots in a prompt template. Unknown slots are
// left in place so a broken template is visible in the output.
func RenderTemplate(text string, vars map[string]string) string {
	for k, v := range vars {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}
	return text
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *client) GenerateJSON(ctx context.Context, prompt *types.Prompt, model *types.GPTModel, vars map[string]string) (*TextResult, error) {
	if prompt == nil || model == nil {
		return nil, fmt.Errorf("prompt and model required")
	}

	payload := map[string]any{
		"model": model.Name,
		"messages": []map[string]string{
			{"role": "user", "content": RenderTemplate(prompt.Text, vars)},
		},
		"response_format": map[string]string{"type": "json_object"},
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	content := map[string]any{}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &content); err != nil {
		return nil, fmt.Errorf("openai reply is not valid JSON: %w", err)
	}

	return &TextResult{
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		SpentAmount:  model.InputPrice*float64(resp.Usage.PromptTokens) + model.OutputPrice*float64(resp.Usage.CompletionTokens),
	}, nil
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	payload := map[string]any{
		"model":  c.imageModel,
		"prompt": prompt,
		"size":   c.imageSize,
		"n":      1,
	}

	var resp imageResponse
	if err := c.do(ctx, http.MethodPost, "/v1/images/generations", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, fmt.Errorf("openai returned no image")
	}

	return &ImageResult{URL: resp.Data[0].URL, SpentAmount: c.imageCost}, nil
}
