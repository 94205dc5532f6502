// doctrans: document translation through the slice/recover pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/minios-linux/doctrans/i18n"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
)

// newLogger builds the diagnostic logger. Library packages log at Debug, so
// nothing but warnings shows up unless --verbose is given.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// interruptContext returns a context cancelled on SIGINT. Work already
// finished stays in the checkpoint, so an interrupted run resumes later.
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			logWarning("%s", i18n.T("Interrupted, saving progress..."))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "doctrans",
		Short: "Translate long documents with AI, one slice at a time",
		Long: `doctrans — translate long documents with AI, one slice at a time.

Documents are cut into token-bounded units; code blocks (markdown) and code
(Lean 4) are kept out of the requests and put back verbatim. Every finished
unit is checkpointed, so an interrupted run resumes where it stopped.

Commands:
  translate   Translate a file or folder
  run         Translate the targets declared in .doctrans.yaml
  split       Show how a document is sliced, without calling AI
  status      Show checkpoint progress
  auth        Manage provider API keys
  prompts     Manage system prompts

AI Providers:
  google         Google AI (Gemini) — API key
  groq           Groq — API key required
  opencode       OpenCode (multi-format dispatcher)
  anthropic      Anthropic (Claude) — API key required
  ollama         Ollama local server
  custom-openai  Custom OpenAI-compatible endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")

	root.AddCommand(
		newTranslateCmd(),
		newRunCmd(),
		newSplitCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newPromptsCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("doctrans version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// progressBar renders a colored bar followed by the percentage.
func progressBar(percent, width int) string {
	percent = max(0, min(percent, 100))
	filled := percent * width / 100

	color := colorRed
	switch {
	case percent >= 100:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s%s%s %3d%%", color, bar, colorReset, percent)
}

// fileExists returns true if the file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
