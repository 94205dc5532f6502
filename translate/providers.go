// Package translate is the chat backend used by the document pipeline: a
// provider catalogue (Google AI via genai, Groq, OpenCode, Anthropic,
// Custom OpenAI, Ollama), the system prompts, a global 429 pause shared by
// parallel workers, and a Backend that runs document units through a
// provider with checkpointed results.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderGoogle       = "google"
	ProviderGroq         = "groq"
	ProviderOpenCode     = "opencode"
	ProviderAnthropic    = "anthropic"
	ProviderCustomOpenAI = "custom-openai"
	ProviderOllama       = "ollama"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for an AI translation service.
type Provider struct {
	// ID is the provider identifier (google, groq, opencode, etc.).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini)",
			BaseURL: googleBaseURL,
			Timeout: 120 * time.Second,
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Timeout: 60 * time.Second,
		},
		ProviderOpenCode: {
			ID:      ProviderOpenCode,
			Name:    "OpenCode",
			BaseURL: "https://opencode.ai/zen/v1",
			Timeout: 120 * time.Second,
		},
		ProviderAnthropic: {
			ID:      ProviderAnthropic,
			Name:    "Anthropic",
			BaseURL: "https://api.anthropic.com/v1",
			Timeout: 120 * time.Second,
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Timeout: 120 * time.Second,
		},
	}
}

const googleBaseURL = "https://generativelanguage.googleapis.com"

// ProviderIDs returns the catalogue IDs in menu order.
func ProviderIDs() []string {
	return []string{
		ProviderGoogle,
		ProviderGroq,
		ProviderOpenCode,
		ProviderAnthropic,
		ProviderCustomOpenAI,
		ProviderOllama,
	}
}

// ---------------------------------------------------------------------------
// Rate limit state (global pause for parallel workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := time.Now().Add(duration)
	if end.After(r.pauseEnd) {
		r.pauseEnd = end
	}
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP client with real proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// ---------------------------------------------------------------------------
// API format types
// ---------------------------------------------------------------------------

type apiFormat int

const (
	formatOpenAIChat      apiFormat = iota // OpenAI chat/completions
	formatGeminiNative                     // Google Gemini generateContent
	formatGeminiProxy                      // Gemini body posted to {base}/models/{model}
	formatAnthropic                        // Anthropic messages
	formatOpenAIResponses                  // OpenAI responses API
)

const temperature = 0.3

// ---------------------------------------------------------------------------
// Request builders for each API format
// ---------------------------------------------------------------------------

func buildOpenAIChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	messages := make([]msg, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, msg{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, msg{Role: "user", Content: userPrompt})
	req := struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		Stream      bool    `json:"stream"`
	}{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	}
	return json.Marshal(req)
}

func buildGeminiRequest(systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}
	type genConfig struct {
		Temperature float64 `json:"temperature"`
	}
	req := struct {
		Contents          []content `json:"contents"`
		GenerationConfig  genConfig `json:"generationConfig"`
		SystemInstruction *content  `json:"systemInstruction,omitempty"`
	}{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt}}},
		},
		GenerationConfig: genConfig{Temperature: temperature},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return json.Marshal(req)
}

func buildAnthropicRequest(model, systemPrompt, userPrompt string) ([]byte, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	req := struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    string `json:"system,omitempty"`
		Messages  []msg  `json:"messages"`
	}{
		Model:     model,
		MaxTokens: 8192,
		System:    systemPrompt,
		Messages:  []msg{{Role: "user", Content: userPrompt}},
	}
	return json.Marshal(req)
}

func buildOpenAIResponsesRequest(model, instructions, input string) ([]byte, error) {
	req := struct {
		Model        string `json:"model"`
		Instructions string `json:"instructions,omitempty"`
		Input        string `json:"input"`
	}{
		Model:        model,
		Instructions: instructions,
		Input:        input,
	}
	return json.Marshal(req)
}

// buildHTTPRequest constructs the endpoint, headers, and body for an HTTP provider.
func buildHTTPRequest(prov Provider, systemPrompt, userPrompt string, format apiFormat) (string, map[string]string, []byte, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	base := strings.TrimRight(prov.BaseURL, "/")

	var endpoint string
	var body []byte
	var err error

	switch format {
	case formatGeminiNative, formatGeminiProxy:
		if format == formatGeminiNative {
			endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, prov.Model)
		} else {
			endpoint = fmt.Sprintf("%s/models/%s", base, prov.Model)
		}
		if prov.APIKey != "" {
			headers["x-goog-api-key"] = prov.APIKey
		}
		body, err = buildGeminiRequest(systemPrompt, userPrompt, temperature)

	case formatAnthropic:
		endpoint = base + "/messages"
		if prov.APIKey != "" {
			headers["x-api-key"] = prov.APIKey
		}
		headers["anthropic-version"] = "2023-06-01"
		body, err = buildAnthropicRequest(prov.Model, systemPrompt, userPrompt)

	case formatOpenAIResponses:
		endpoint = base + "/responses"
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildOpenAIResponsesRequest(prov.Model, systemPrompt, userPrompt)

	default: // formatOpenAIChat
		endpoint = base
		if !strings.HasSuffix(base, "/chat/completions") {
			endpoint = base + "/chat/completions"
		}
		if prov.APIKey != "" {
			headers["Authorization"] = "Bearer " + prov.APIKey
		}
		body, err = buildOpenAIChatRequest(prov.Model, systemPrompt, userPrompt, temperature)
	}

	if err != nil {
		return "", nil, nil, err
	}
	return endpoint, headers, body, nil
}

// formatFor picks the wire format for a provider. OpenCode proxies several
// vendors and is dispatched on the model prefix.
func formatFor(prov Provider) apiFormat {
	switch prov.ID {
	case ProviderGoogle:
		return formatGeminiNative
	case ProviderAnthropic:
		return formatAnthropic
	case ProviderOpenCode:
		switch {
		case strings.HasPrefix(prov.Model, "gemini-"):
			return formatGeminiProxy
		case strings.HasPrefix(prov.Model, "claude-"):
			return formatAnthropic
		case strings.HasPrefix(prov.Model, "gpt-"):
			return formatOpenAIResponses
		}
	}
	return formatOpenAIChat
}

// ---------------------------------------------------------------------------
// Response parsers (multi-format)
// ---------------------------------------------------------------------------

// extractResponseText tries all known response formats and returns the text.
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok && errObj != nil {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("API error: %s", msg)
			}
		}
		return "", fmt.Errorf("API error: %v", errObj)
	}

	// OpenAI chat: choices[0].message.content
	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
		}
	}

	// Gemini: candidates[0].content.parts[*].text
	if candidates, ok := raw["candidates"].([]any); ok && len(candidates) > 0 {
		if candidate, ok := candidates[0].(map[string]any); ok {
			if content, ok := candidate["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok {
					var sb strings.Builder
					for _, p := range parts {
						if part, ok := p.(map[string]any); ok {
							if text, ok := part["text"].(string); ok {
								sb.WriteString(text)
							}
						}
					}
					if sb.Len() > 0 {
						return sb.String(), nil
					}
				}
			}
		}
	}

	// Anthropic: content[].type=="text" -> .text
	if contentArr, ok := raw["content"].([]any); ok {
		for _, c := range contentArr {
			if block, ok := c.(map[string]any); ok && block["type"] == "text" {
				if text, ok := block["text"].(string); ok {
					return text, nil
				}
			}
		}
	}

	// OpenAI responses: output[].type=="message" -> .content[].type=="output_text" -> .text
	if output, ok := raw["output"].([]any); ok {
		for _, o := range output {
			item, ok := o.(map[string]any)
			if !ok || item["type"] != "message" {
				continue
			}
			contentArr, _ := item["content"].([]any)
			for _, c := range contentArr {
				if block, ok := c.(map[string]any); ok && block["type"] == "output_text" {
					if text, ok := block["text"].(string); ok {
						return text, nil
					}
				}
			}
		}
	}

	// Simple response field (Ollama generate, normalized proxies)
	if resp, ok := raw["response"].(string); ok {
		return resp, nil
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// ---------------------------------------------------------------------------
// Rate limit: parse 429 response for retry delay
// ---------------------------------------------------------------------------

const defaultRetryDelay = 65 * time.Second // 60s + 5s buffer

// parseRetryDelay extracts the retry delay from a 429 response body.
// Looks for Google's RetryInfo detail with a retryDelay field.
func parseRetryDelay(body []byte) time.Duration {
	var errResp struct {
		Error struct {
			Details []map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return defaultRetryDelay
	}
	return retryDelayFromDetails(errResp.Error.Details)
}

// retryDelayFromDetails reads a RetryInfo entry ("retryDelay": "30s") from
// Google-style error details.
func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, detail := range details {
		typ, _ := detail["@type"].(string)
		delay, _ := detail["retryDelay"].(string)
		if !strings.Contains(typ, "RetryInfo") || delay == "" {
			continue
		}
		if secs, err := strconv.ParseFloat(strings.TrimSuffix(delay, "s"), 64); err == nil {
			return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
		}
	}
	return defaultRetryDelay
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
