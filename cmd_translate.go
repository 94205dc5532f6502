package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/minios-linux/doctrans/checkpoint"
	"github.com/minios-linux/doctrans/config"
	"github.com/minios-linux/doctrans/i18n"
	"github.com/minios-linux/doctrans/langmeta"
	"github.com/minios-linux/doctrans/slicer"
	"github.com/minios-linux/doctrans/translate"
)

// ---------------------------------------------------------------------------
// translate (file or folder)
// ---------------------------------------------------------------------------

type translateArgs struct {
	src, dst string
	prov     providerFlags

	kind, lang, marker, prompt, tokenizer string
	lowerBound                            int
	async, fresh                          bool

	checkpointDir, checkpointPrefix, checkpointStore string

	ext                                  string
	skipExisting, recursive, incremental bool
	maxConcurrent, maxRequests           int
	requestDelay                         time.Duration
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate SRC DST",
		Short: "Translate a document or a folder of documents",
		Long: `Translate a document, or every matching document of a folder, with AI.

SRC may be a file or a folder. In folder mode the layout of SRC is mirrored
into DST. Finished units are checkpointed under --checkpoint-dir, so an
interrupted run resumes without repeating requests.

The kind is detected from the file extension unless --kind is given; the
target language is taken from the last element of DST ("docs/ru",
"guide.de.md") unless --lang is given.

Examples:
  # Translate a markdown folder into Russian with Groq
  doctrans translate docs/en docs/ru --provider groq --model llama-3.3-70b-versatile

  # Translate one Lean file with Google AI
  doctrans translate Basic.lean zh/Basic.lean --lang zh-CN --provider google --model gemini-2.5-flash

  # Collect at most 50 replies per document, then run again to continue
  doctrans translate docs/en docs/de --async --max-requests 50 --provider ollama --model qwen2.5`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			a.src, a.dst = args[0], args[1]
			runTranslate(a)
		},
	}

	a.prov.register(cmd)

	// Document
	cmd.Flags().StringVar(&a.kind, "kind", "", "Document kind: markdown, lean, text (default: detected)")
	cmd.Flags().StringVar(&a.lang, "lang", "", "Target language code (default: detected from DST)")
	cmd.Flags().IntVar(&a.lowerBound, "lower-bound", 0, "Token size at which a unit is sealed (0 = 300, or 800 for lean)")
	cmd.Flags().StringVar(&a.marker, "marker", slicer.DefaultMarker, "Placeholder for code blocks while slicing")
	cmd.Flags().StringVar(&a.tokenizer, "tokenizer", "", "Token counter: tiktoken encoding name or \"estimate\" (default: cl100k_base)")
	cmd.Flags().StringVar(&a.prompt, "prompt", "", "Custom system prompt (use {{targetLang}} placeholder)")

	// Driver
	cmd.Flags().BoolVar(&a.async, "async", false, "Submit units, then assemble only if every reply was collected")
	cmd.Flags().BoolVar(&a.fresh, "fresh", false, "Discard checkpointed replies before translating")
	cmd.Flags().IntVar(&a.maxConcurrent, "max-concurrent", 3, "Maximum requests in flight")
	cmd.Flags().IntVar(&a.maxRequests, "max-requests", 0, "Maximum new requests per document with --async (0 = no cap)")
	cmd.Flags().DurationVar(&a.requestDelay, "request-delay", 0, "Delay between launching requests")

	// Checkpoints
	cmd.Flags().StringVar(&a.checkpointDir, "checkpoint-dir", config.DefaultCheckpointDir, "Directory holding checkpoint logs")
	cmd.Flags().StringVar(&a.checkpointPrefix, "checkpoint-prefix", "", "Prefix of every checkpoint key")
	cmd.Flags().StringVar(&a.checkpointStore, "checkpoint-store", string(checkpoint.KindJSONL), "Checkpoint store: jsonl, sqlite")

	// Folder mode
	cmd.Flags().StringVar(&a.ext, "ext", "", "Extension of the documents to translate (default from kind)")
	cmd.Flags().BoolVar(&a.skipExisting, "skip-existing", false, "Skip documents whose output already exists")
	cmd.Flags().BoolVar(&a.recursive, "recursive", true, "Descend into subfolders")
	cmd.Flags().BoolVar(&a.incremental, "incremental", false, "Only re-translate sources changed since the last run (doctrans.lock)")

	_ = cmd.RegisterFlagCompletionFunc("kind", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"markdown\tMarkdown, fenced code kept verbatim",
			"lean\tLean 4, comments translated, code kept verbatim",
			"text\tPlain text",
		}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("checkpoint-store", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"jsonl\tOne JSON Lines file per document", "sqlite\tSingle SQLite database"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// buildJob turns the translate flags into a job.
func (a translateArgs) buildJob() (job, error) {
	grammar, err := resolveKind(a.kind, a.src, a.recursive)
	if err != nil {
		return job{}, err
	}
	store, err := checkpoint.ParseKind(a.checkpointStore)
	if err != nil {
		return job{}, err
	}

	cfg := slicer.DefaultConfig(grammar)
	if a.lowerBound > 0 {
		cfg.LowerBound = a.lowerBound
	}
	if a.marker != "" {
		cfg.Marker = a.marker
	}

	lang := a.lang
	if lang == "" {
		lang = config.DetectLanguage(a.dst)
	}
	ext := a.ext
	if ext == "" {
		ext = grammar.DefaultExt()
	}

	checkpointDir := a.checkpointDir
	if !filepath.IsAbs(checkpointDir) {
		checkpointDir = filepath.Join(rootDir, checkpointDir)
	}

	return job{
		name:             filepath.Base(filepath.Clean(a.src)),
		src:              a.src,
		dst:              a.dst,
		lang:             lang,
		grammar:          grammar,
		cfg:              cfg,
		async:            a.async,
		fresh:            a.fresh,
		ext:              ext,
		recursive:        a.recursive,
		skipExisting:     a.skipExisting,
		incremental:      a.incremental,
		checkpointDir:    checkpointDir,
		checkpointPrefix: a.checkpointPrefix,
		checkpointStore:  store,
		prompt:           a.prompt,
		maxConcurrent:    a.maxConcurrent,
		maxRequests:      a.maxRequests,
		requestDelay:     a.requestDelay,
	}, nil
}

func runTranslate(a translateArgs) {
	j, err := a.buildJob()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	prov, err := a.prov.buildProvider()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	prompts, _, err := translate.LoadPromptsFromDefaultLocation()
	if err != nil {
		logError(i18n.T("Loading prompts: %v"), err)
		os.Exit(1)
	}

	logger := newLogger(verbose)
	defer logger.Sync() //nolint:errcheck

	logInfo(i18n.T("Provider: %s (%s), Model: %s"), prov.Name, prov.ID, prov.Model)
	logInfo(i18n.T("Kind: %s, lower bound: %d, mode: %s"), j.grammar, j.cfg.LowerBound, driverMode(j.async))
	if j.lang != "" {
		logInfo(i18n.T("Target language: %s"), langmeta.Label(j.lang))
	} else {
		logWarning("%s", i18n.T("No target language detected; use --lang to name it in the prompt"))
	}

	ctx, cancel := interruptContext()
	defer cancel()

	env := &jobEnv{
		client:  translate.NewClient(prov, a.prov.maxRetries, logger),
		model:   prov.Model,
		prompts: prompts,
		cost:    costFunc(a.tokenizer),
		lockDir: rootDir,
		logger:  logger,
	}

	stats, err := j.run(ctx, env)
	if !j.report(ctx, stats, err) {
		os.Exit(1)
	}
}

func driverMode(async bool) string {
	if async {
		return "async"
	}
	return "sync"
}
