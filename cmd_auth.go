package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/doctrans/i18n"
	"github.com/minios-linux/doctrans/settings"
	"github.com/minios-linux/doctrans/translate"
)

// stdin is read by the interactive prompts.
var stdin io.Reader = os.Stdin

// ---------------------------------------------------------------------------
// auth (API keys and endpoints)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider authentication",
		Long: `Manage API keys and endpoints for the AI providers.

API key providers (paste your key):
  google        Google AI Studio (Gemini API key)
  groq          Groq Cloud (free tier available)
  anthropic     Anthropic (Claude)
  opencode      OpenCode proxy
  custom-openai Custom OpenAI-compatible endpoint

No auth required:
  ollama        Local Ollama server (endpoint can be stored)

Examples:
  doctrans auth login                         Interactive provider selection
  doctrans auth login --provider google       Store Google AI API key
  doctrans auth logout --provider google      Remove Google API key
  doctrans auth logout                        Remove all credentials
  doctrans auth list                          Show all stored credentials`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func authProviderCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	completions := make([]string, 0, len(providerMenu))
	for _, p := range providerMenu {
		completions = append(completions, fmt.Sprintf("%s\t%s", p.id, p.name))
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

func newAuthLoginCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key or endpoint for a provider",
		Long: `Store an API key (and, for custom-openai and ollama, an endpoint URL).

If --provider is not specified, you will be prompted to choose.`,
		Run: func(cmd *cobra.Command, args []string) {
			scanner := bufio.NewScanner(stdin)

			// If no provider specified, prompt user
			if provider == "" {
				fmt.Fprintln(os.Stderr, "")
				fmt.Fprintf(os.Stderr, "%s%s%s\n\n", colorBlue, i18n.T("Select provider to authenticate:"), colorReset)
				for i, p := range providerMenu {
					fmt.Fprintf(os.Stderr, "  %d. %s%-13s%s %s\n", i+1, colorYellow, p.id, colorReset, p.desc)
				}
				fmt.Fprintln(os.Stderr)
				fmt.Fprintf(os.Stderr, "Enter choice (number or name): ")

				if !scanner.Scan() {
					logError("%s", i18n.T("No input received"))
					os.Exit(1)
				}
				var ok bool
				if provider, ok = pickProvider(strings.TrimSpace(scanner.Text())); !ok {
					logError("%s", i18n.T("Invalid choice. Use: doctrans auth login --provider PROVIDER"))
					os.Exit(1)
				}
			}

			var err error
			switch provider {
			case translate.ProviderGoogle, translate.ProviderGroq, translate.ProviderOpenCode, translate.ProviderAnthropic:
				err = authLoginAPIKey(scanner, provider)
			case translate.ProviderCustomOpenAI, translate.ProviderOllama:
				err = authLoginEndpoint(scanner, provider)
			default:
				err = fmt.Errorf("unknown provider '%s'. Run 'doctrans auth login' for options", provider)
			}
			if err != nil {
				logError("%v", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to authenticate")
	_ = cmd.RegisterFlagCompletionFunc("provider", authProviderCompletion)

	return cmd
}

// pickProvider maps a menu answer (number or ID) to a provider ID.
func pickProvider(choice string) (string, bool) {
	for i, p := range providerMenu {
		if choice == fmt.Sprintf("%d", i+1) || choice == p.id {
			return p.id, true
		}
	}
	return "", false
}

func providerName(id string) string {
	for _, p := range providerMenu {
		if p.id == id {
			return p.name
		}
	}
	return id
}

// apiKeyHelp is where each provider hands out keys.
var apiKeyHelp = map[string]string{
	translate.ProviderGoogle:    "https://aistudio.google.com/apikey",
	translate.ProviderGroq:      "https://console.groq.com/keys",
	translate.ProviderAnthropic: "https://console.anthropic.com/settings/keys",
}

func authLoginAPIKey(scanner *bufio.Scanner, providerID string) error {
	name := providerName(providerID)

	fmt.Fprintf(os.Stderr, "\n%s%s — API Key Setup%s\n", colorBlue, name, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintln(os.Stderr)

	if url := apiKeyHelp[providerID]; url != "" {
		fmt.Fprintf(os.Stderr, "  Get your API key from: %s%s%s\n\n", colorGreen, url, colorReset)
	}

	// Check if already configured
	existing := settings.GetAPIKey(providerID)
	if existing != "" {
		fmt.Fprintf(os.Stderr, "  Current key: %s%s%s\n", colorYellow, settings.MaskKey(existing), colorReset)
		fmt.Fprintf(os.Stderr, "  Enter new key to replace, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "  Enter API key: ")
	}

	if !scanner.Scan() {
		return fmt.Errorf("no input received")
	}
	key := strings.TrimSpace(scanner.Text())

	if key == "" {
		if existing != "" {
			logInfo("%s", i18n.T("Keeping existing key"))
			return nil
		}
		return fmt.Errorf("no API key provided")
	}

	if err := settings.SetAPIKey(providerID, key); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	logSuccess(i18n.T("%s API key saved!"), name)
	fmt.Fprintf(os.Stderr, "\n  You can now use: doctrans translate SRC DST --provider %s --model %s\n\n",
		providerID, firstOr(modelExamples[providerID], "MODEL_NAME"))
	return nil
}

// authLoginEndpoint stores an endpoint URL and an optional key.
func authLoginEndpoint(scanner *bufio.Scanner, providerID string) error {
	fmt.Fprintf(os.Stderr, "\n%s%s Endpoint%s\n", colorBlue, providerName(providerID), colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintln(os.Stderr)

	example := "https://api.example.com/v1"
	if providerID == translate.ProviderOllama {
		example = translate.DefaultProviders()[providerID].BaseURL
	}

	// Base URL
	existing := settings.Get(providerID)
	if existing != nil && existing.BaseURL != "" {
		fmt.Fprintf(os.Stderr, "  Current endpoint: %s%s%s\n", colorYellow, existing.BaseURL, colorReset)
		fmt.Fprintf(os.Stderr, "  Enter new endpoint URL, or press Enter to keep: ")
	} else {
		fmt.Fprintf(os.Stderr, "  Enter endpoint URL (e.g., %s): ", example)
	}

	if !scanner.Scan() {
		return fmt.Errorf("no input received")
	}
	baseURL := strings.TrimSpace(scanner.Text())

	if baseURL == "" && existing != nil && existing.BaseURL != "" {
		baseURL = existing.BaseURL
	}
	if baseURL == "" {
		return fmt.Errorf("endpoint URL is required")
	}

	// API key (optional for some endpoints)
	apiKey := ""
	if providerID == translate.ProviderCustomOpenAI {
		if existing != nil && existing.Key != "" {
			fmt.Fprintf(os.Stderr, "  Current key: %s%s%s\n", colorYellow, settings.MaskKey(existing.Key), colorReset)
			fmt.Fprintf(os.Stderr, "  Enter new API key, or press Enter to keep (leave empty for none): ")
		} else {
			fmt.Fprintf(os.Stderr, "  Enter API key (or press Enter if not required): ")
		}

		if !scanner.Scan() {
			return fmt.Errorf("no input received")
		}
		apiKey = strings.TrimSpace(scanner.Text())
		if apiKey == "" && existing != nil {
			apiKey = existing.Key
		}
	}

	if err := settings.SetAPIKeyWithBaseURL(providerID, apiKey, baseURL); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	logSuccess(i18n.T("%s endpoint saved!"), providerName(providerID))
	fmt.Fprintf(os.Stderr, "\n  You can now use: doctrans translate SRC DST --provider %s --model MODEL_NAME\n\n", providerID)
	return nil
}

func firstOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return items[0]
}

func newAuthLogoutCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long: `Remove stored credentials for one or all providers.

If --provider is not specified, credentials for ALL providers are removed.

Examples:
  doctrans auth logout                        Remove all credentials
  doctrans auth logout --provider google      Remove only Google API key`,
		Run: func(cmd *cobra.Command, args []string) {
			if provider != "" {
				if _, ok := translate.DefaultProviders()[provider]; !ok {
					logError(i18n.T("Unknown provider '%s'. Run 'doctrans auth list' to see providers."), provider)
					os.Exit(1)
				}
				if err := settings.Remove(provider); err != nil {
					logError(i18n.T("Failed to remove %s credentials: %v"), provider, err)
					os.Exit(1)
				}
				logSuccess(i18n.T("%s credentials removed"), provider)
				return
			}

			if err := settings.RemoveAll(); err != nil {
				logError(i18n.T("Failed to remove credentials: %v"), err)
				os.Exit(1)
			}
			logSuccess("%s", i18n.T("All stored credentials removed"))
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider to logout (default: all)")
	_ = cmd.RegisterFlagCompletionFunc("provider", authProviderCompletion)

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored credentials and status",
		Run: func(cmd *cobra.Command, args []string) {
			printCredentials(os.Stderr)
		},
	}
}

func printCredentials(w io.Writer) {
	fmt.Fprintf(w, "\n%sStored Credentials%s\n", colorBlue, colorReset)
	fmt.Fprintln(w, strings.Repeat("─", 60))
	fmt.Fprintf(w, "  File: %s\n", settings.FilePath())
	if dir, err := settings.DataDir(); err == nil {
		fmt.Fprintf(w, "  Data directory: %s\n", dir)
	}

	fmt.Fprintf(w, "\n  %sProviders%s\n", colorYellow, colorReset)
	for _, p := range providerMenu {
		entry := settings.Get(p.id)
		switch {
		case entry != nil && entry.Key != "":
			status := fmt.Sprintf("%sconfigured%s (key: %s)", colorGreen, colorReset, settings.MaskKey(entry.Key))
			if entry.BaseURL != "" {
				status += fmt.Sprintf("\n  %14s endpoint: %s", "", entry.BaseURL)
			}
			fmt.Fprintf(w, "  %-14s %s\n", p.id, status)
		case entry != nil && entry.BaseURL != "":
			// custom-openai and ollama may have just a URL, no key
			status := fmt.Sprintf("%sconfigured%s (no key)", colorGreen, colorReset)
			status += fmt.Sprintf("\n  %14s endpoint: %s", "", entry.BaseURL)
			fmt.Fprintf(w, "  %-14s %s\n", p.id, status)
		case p.auth == "none":
			fmt.Fprintf(w, "  %-14s no key needed\n", p.id)
		default:
			fmt.Fprintf(w, "  %-14s %snot configured%s\n", p.id, colorRed, colorReset)
		}
	}

	// Environment variables
	fmt.Fprintf(w, "\n  %sEnvironment Variables%s\n", colorYellow, colorReset)
	envKey := os.Getenv(settings.EnvAPIKey)
	if envKey != "" {
		fmt.Fprintf(w, "  %s: %s%s%s (overrides stored keys)\n", settings.EnvAPIKey, colorGreen, settings.MaskKey(envKey), colorReset)
	} else {
		fmt.Fprintf(w, "  %s: %snot set%s\n", settings.EnvAPIKey, colorRed, colorReset)
	}
	for _, p := range providerMenu {
		env := settings.EnvVarForProvider(p.id)
		if env == "" || os.Getenv(env) == "" {
			continue
		}
		fmt.Fprintf(w, "  %s: %s%s%s\n", env, colorGreen, settings.MaskKey(os.Getenv(env)), colorReset)
	}
	fmt.Fprintln(w)
}
