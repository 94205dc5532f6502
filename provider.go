package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/minios-linux/doctrans/i18n"
	"github.com/minios-linux/doctrans/settings"
	"github.com/minios-linux/doctrans/translate"
)

// providerMenu is the ordered provider list shown by completion and auth.
var providerMenu = []struct {
	id   string
	name string
	desc string
	auth string // "api-key", "optional", "none"
}{
	{translate.ProviderGoogle, "Google AI Studio", "Gemini API key, free tier available", "api-key"},
	{translate.ProviderGroq, "Groq Cloud", "fast inference, free tier available", "api-key"},
	{translate.ProviderOpenCode, "OpenCode", "multi-provider proxy", "optional"},
	{translate.ProviderAnthropic, "Anthropic", "Claude models, API key required", "api-key"},
	{translate.ProviderCustomOpenAI, "Custom OpenAI", "any OpenAI-compatible endpoint", "api-key"},
	{translate.ProviderOllama, "Ollama", "local server, no auth needed", "none"},
}

// modelExamples lists a few model names per provider for completion and
// error messages.
var modelExamples = map[string][]string{
	translate.ProviderGoogle:       {"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"},
	translate.ProviderGroq:         {"llama-3.3-70b-versatile", "mixtral-8x7b-32768"},
	translate.ProviderOpenCode:     {"big-pickle", "gemini-2.5-flash", "claude-sonnet-4.5", "gpt-5"},
	translate.ProviderAnthropic:    {"claude-sonnet-4-5", "claude-haiku-4-5"},
	translate.ProviderOllama:       {"llama3.2", "qwen2.5", "mistral"},
	translate.ProviderCustomOpenAI: {"gpt-4o", "gpt-4o-mini"},
}

// providerFlags holds the provider selection shared by translate and run.
type providerFlags struct {
	provider, model, apiKey, baseURL string
	proxy                            string
	timeout                          time.Duration
	maxRetries                       int
}

func (f *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "AI provider: "+strings.Join(translate.ProviderIDs(), ", "))
	cmd.Flags().StringVar(&f.model, "model", "", "Model name")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key (or "+settings.EnvAPIKey+" env var)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Custom API base URL")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Request timeout (0 = provider default)")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().IntVar(&f.maxRetries, "max-retries", 3, "Maximum retries on rate limit (429) and server errors")

	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		completions := make([]string, 0, len(providerMenu))
		for _, p := range providerMenu {
			completions = append(completions, fmt.Sprintf("%s\t%s — %s", p.id, p.name, p.desc))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	// Model completion (provider-aware)
	_ = cmd.RegisterFlagCompletionFunc("model", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		p, _ := cmd.Flags().GetString("provider")
		return modelExamples[p], cobra.ShellCompDirectiveNoFileComp
	})
}

// merge fills unset provider flags from the project file.
func (f providerFlags) merge(provider, model, baseURL string) providerFlags {
	if f.provider == "" {
		f.provider = provider
	}
	if f.model == "" {
		f.model = model
	}
	if f.baseURL == "" {
		f.baseURL = baseURL
	}
	return f
}

// buildProvider resolves and validates the provider selected by f.
func (f providerFlags) buildProvider() (translate.Provider, error) {
	if f.provider == "" {
		return translate.Provider{}, fmt.Errorf("%s\n\n"+
			"Available providers:\n"+
			"  Cloud APIs (require API key):\n"+
			"    google         Google AI (Gemini)\n"+
			"    groq           Groq\n"+
			"    anthropic      Anthropic (Claude)\n"+
			"    opencode       OpenCode\n\n"+
			"  Local services (no API key):\n"+
			"    ollama         Ollama local server\n\n"+
			"  Custom:\n"+
			"    custom-openai  Custom OpenAI-compatible endpoint\n\n"+
			"Example: doctrans translate docs/en docs/ru --provider groq --model llama-3.3-70b-versatile",
			i18n.T("No provider specified. Use --provider to choose an AI translation service."))
	}
	key := settings.ResolveAPIKey(strings.ToLower(f.provider), f.apiKey)
	prov := resolveProvider(f.provider, f.baseURL, key, f.model, f.proxy, f.timeout)
	if err := validateProvider(prov, key); err != nil {
		return prov, err
	}
	return prov, nil
}

func resolveProvider(name, baseURL, apiKey, model, proxy string, timeout time.Duration) translate.Provider {
	defaults := translate.DefaultProviders()

	var prov translate.Provider

	if p, ok := defaults[strings.ToLower(name)]; ok {
		prov = p
	} else {
		prov = translate.Provider{
			ID:      translate.ProviderCustomOpenAI,
			Name:    name,
			BaseURL: name,
			Timeout: 60 * time.Second,
		}
	}

	if baseURL != "" {
		prov.BaseURL = baseURL
	} else if prov.ID == translate.ProviderCustomOpenAI || prov.ID == translate.ProviderOllama {
		// Check credentials store for base URL
		if storedURL := settings.GetBaseURL(prov.ID); storedURL != "" {
			prov.BaseURL = storedURL
		}
	}
	if apiKey != "" {
		prov.APIKey = apiKey
	}
	if model != "" {
		prov.Model = model
	}
	if proxy != "" {
		prov.Proxy = proxy
	}
	if timeout > 0 {
		prov.Timeout = timeout
	}

	return prov
}

// ollamaTagsURL maps the OpenAI-compatible endpoint of an Ollama server to
// its native model list.
func ollamaTagsURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	return baseURL + "/api/tags"
}

func validateProvider(prov translate.Provider, apiKey string) error {
	if prov.Model == "" {
		examples := strings.Join(modelExamples[prov.ID], ", ")
		if examples == "" {
			examples = "check provider documentation"
		}

		return fmt.Errorf("--model is required for provider '%s'\n\n"+
			"Example models for %s:\n  %s\n\n"+
			"Usage: --provider %s --model MODEL_NAME",
			prov.ID, prov.Name, examples, prov.ID)
	}

	switch prov.ID {
	case translate.ProviderGoogle:
		if apiKey == "" {
			return fmt.Errorf("provider 'google' requires an API key\n\n" +
				"Option 1: Store an API key:\n" +
				"  doctrans auth login --provider google\n\n" +
				"Option 2: Pass key directly:\n" +
				"  --api-key YOUR_KEY or export GOOGLE_API_KEY=YOUR_KEY\n\n" +
				"Get an API key from: https://aistudio.google.com/apikey")
		}

	case translate.ProviderGroq:
		if apiKey == "" {
			return fmt.Errorf("provider 'groq' requires an API key\n\n" +
				"Option 1: Store your API key:\n" +
				"  doctrans auth login --provider groq\n\n" +
				"Option 2: Pass key directly:\n" +
				"  --api-key YOUR_KEY or export GROQ_API_KEY=YOUR_KEY\n\n" +
				"Get a free API key from: https://console.groq.com/keys")
		}

	case translate.ProviderAnthropic:
		if apiKey == "" {
			return fmt.Errorf("provider 'anthropic' requires an API key\n\n" +
				"Option 1: Store your API key:\n" +
				"  doctrans auth login --provider anthropic\n\n" +
				"Option 2: Pass key directly:\n" +
				"  --api-key YOUR_KEY or export ANTHROPIC_API_KEY=YOUR_KEY")
		}

	case translate.ProviderOpenCode:
		// OpenCode can work without API key for some models

	case translate.ProviderCustomOpenAI:
		if prov.BaseURL == "" {
			return fmt.Errorf("provider 'custom-openai' requires an endpoint URL\n\n" +
				"Option 1: Configure via auth:\n" +
				"  doctrans auth login --provider custom-openai\n\n" +
				"Option 2: Pass directly:\n" +
				"  --base-url https://api.example.com/v1")
		}

	case translate.ProviderOllama:
		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(ollamaTagsURL(prov.BaseURL))
		if err != nil {
			return fmt.Errorf("provider 'ollama' requires Ollama server to be running\n\n" +
				"Start Ollama with: ollama serve\n" +
				"Install from: https://ollama.com\n" +
				"Alternative providers:\n" +
				"  --provider groq            (free tier, requires API key)\n" +
				"  --provider google          (requires API key)")
		}
		resp.Body.Close()
	}

	return nil
}
