package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Completer sends one system/user prompt pair to a chat model and returns
// the reply text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Client is the Completer backed by a configured Provider. It retries
// network errors and 5xx responses with exponential backoff; a 429 pauses
// every caller sharing the client until the provider's retry delay expires.
type Client struct {
	prov       Provider
	maxRetries int
	logger     *zap.Logger
	http       *http.Client
	rl         *rateLimitState

	// backoff is the unit of the exponential wait between attempts.
	backoff time.Duration
	// retryDelay maps a 429 body to the pause length.
	retryDelay func([]byte) time.Duration

	genaiOnce   sync.Once
	genaiClient *genai.Client
	genaiErr    error
}

// NewClient returns a Client for prov. maxRetries <= 0 means 3. A nil
// logger disables diagnostic output.
func NewClient(prov Provider, maxRetries int, logger *zap.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if prov.Timeout <= 0 {
		prov.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		prov:       prov,
		maxRetries: maxRetries,
		logger:     logger,
		http:       makeHTTPClient(prov.Proxy, prov.Timeout),
		rl:         &rateLimitState{},
		backoff:    time.Second,
		retryDelay: parseRetryDelay,
	}
}

// Provider returns the provider configuration the client talks to.
func (c *Client) Provider() Provider {
	return c.prov
}

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.prov.ID == ProviderGoogle && c.useGenAI() {
		return c.callGenAI(ctx, systemPrompt, userPrompt)
	}
	return c.callHTTP(ctx, systemPrompt, userPrompt, formatFor(c.prov))
}

// useGenAI reports whether the Google provider should go through the genai
// SDK. A non-default base URL (a mirror or a test server) is spoken to with
// the plain generateContent wire format instead.
func (c *Client) useGenAI() bool {
	base := strings.TrimRight(c.prov.BaseURL, "/")
	return base == "" || base == googleBaseURL
}

// ---------------------------------------------------------------------------
// HTTP-based provider call (Groq, OpenCode, Anthropic, Custom OpenAI, Ollama)
// ---------------------------------------------------------------------------

func (c *Client) callHTTP(ctx context.Context, systemPrompt, userPrompt string, format apiFormat) (string, error) {
	endpoint, headers, body, err := buildHTTPRequest(c.prov, systemPrompt, userPrompt, format)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Wait if globally paused (rate limit from another worker)
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return "", err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		c.logger.Debug("provider request",
			zap.String("provider", c.prov.Name),
			zap.Int("attempt", attempt+1),
			zap.String("endpoint", endpoint))

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if attempt < c.maxRetries {
				c.logger.Debug("request failed, retrying", zap.Error(err), zap.Int("attempt", attempt+1))
				if err := c.sleep(ctx, c.backoffFor(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("API request failed: %w", err)
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := c.retryDelay(respBody)
			c.logger.Debug("rate limited, pausing all workers",
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			c.rl.pause(delay)
			if attempt < c.maxRetries {
				continue
			}
			return "", fmt.Errorf("rate limited after %d retries: %s", c.maxRetries, truncate(string(respBody), 500))
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < c.maxRetries && resp.StatusCode >= 500 {
				c.logger.Debug("server error, retrying", zap.Int("status", resp.StatusCode))
				if err := c.sleep(ctx, c.backoffFor(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		}

		return extractResponseText(respBody)
	}

	return "", fmt.Errorf("exhausted all %d retries", c.maxRetries)
}

func (c *Client) backoffFor(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * c.backoff
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ---------------------------------------------------------------------------
// Google AI through the genai SDK
// ---------------------------------------------------------------------------

func (c *Client) sdk(ctx context.Context) (*genai.Client, error) {
	c.genaiOnce.Do(func() {
		c.genaiClient, c.genaiErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     c.prov.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: c.http,
		})
		if c.genaiErr != nil {
			c.genaiErr = fmt.Errorf("failed to create GenAI client: %w", c.genaiErr)
		}
	})
	return c.genaiClient, c.genaiErr
}

func (c *Client) callGenAI(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](temperature),
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return "", err
		}

		c.logger.Debug("genai request",
			zap.String("model", c.prov.Model),
			zap.Int("attempt", attempt+1))

		resp, err := client.Models.GenerateContent(ctx, c.prov.Model, genai.Text(userPrompt), cfg)
		if err == nil {
			text := resp.Text()
			if text == "" {
				return "", fmt.Errorf("GenAI returned an empty response")
			}
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var apiErr genai.APIError
		if !errors.As(err, &apiErr) {
			return "", fmt.Errorf("GenAI request failed: %w", err)
		}
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			delay := retryDelayFromDetails(apiErr.Details)
			c.logger.Debug("rate limited, pausing all workers", zap.Duration("delay", delay))
			c.rl.pause(delay)
		case apiErr.Code >= 500:
			if attempt < c.maxRetries {
				if err := c.sleep(ctx, c.backoffFor(attempt)); err != nil {
					return "", err
				}
			}
		default:
			return "", fmt.Errorf("GenAI request failed: %w", err)
		}
		if attempt == c.maxRetries {
			return "", fmt.Errorf("GenAI request failed after %d retries: %w", c.maxRetries, err)
		}
	}

	return "", fmt.Errorf("exhausted all %d retries", c.maxRetries)
}
