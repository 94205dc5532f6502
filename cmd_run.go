package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/doctrans/checkpoint"
	"github.com/minios-linux/doctrans/config"
	"github.com/minios-linux/doctrans/i18n"
	"github.com/minios-linux/doctrans/slicer"
	"github.com/minios-linux/doctrans/translate"
)

// ---------------------------------------------------------------------------
// run (targets from .doctrans.yaml)
// ---------------------------------------------------------------------------

type runArgs struct {
	prov      providerFlags
	targets   []string
	langs     string
	tokenizer string
	async     bool
	fresh     bool
}

func newRunCmd() *cobra.Command {
	var a runArgs

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Translate the targets declared in .doctrans.yaml",
		Long: `Translate every target declared in .doctrans.yaml, once per language.

Provider settings come from the project file; flags override them. Targets
run one after another and the first failing document stops the run.

Examples:
  doctrans run
  doctrans run --target docs --lang ru
  doctrans run --provider ollama --model qwen2.5`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runProject(a)
		},
	}

	a.prov.register(cmd)
	cmd.Flags().StringSliceVar(&a.targets, "target", nil, "Only run the named targets (repeatable)")
	cmd.Flags().StringVar(&a.langs, "lang", "", "Only translate these languages (comma-separated)")
	cmd.Flags().StringVar(&a.tokenizer, "tokenizer", "", "Token counter: tiktoken encoding name or \"estimate\"")
	cmd.Flags().BoolVar(&a.async, "async", false, "Force the async driver for every target")
	cmd.Flags().BoolVar(&a.fresh, "fresh", false, "Discard checkpointed replies before translating")

	_ = cmd.RegisterFlagCompletionFunc("target", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		pf, err := config.LoadProjectFile(rootDir)
		if err != nil || pf == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return pf.TargetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// loadProject loads .doctrans.yaml from the project root, failing when it
// does not exist.
func loadProject() (*config.ProjectFile, error) {
	pf, err := config.LoadProjectFile(rootDir)
	if err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, fmt.Errorf("no %s found in %s", config.ProjectFileName, rootDir)
	}
	if len(pf.Targets) == 0 {
		return nil, fmt.Errorf("%s declares no targets", config.ProjectFileName)
	}
	return pf, nil
}

// projectJobs expands the project file into jobs, filtered by target name
// and language.
func projectJobs(pf *config.ProjectFile, names, langs []string) ([]job, error) {
	for _, name := range names {
		if !slices.Contains(pf.TargetNames(), name) {
			return nil, fmt.Errorf("unknown target %q (declared: %s)", name, strings.Join(pf.TargetNames(), ", "))
		}
	}

	resolved, err := pf.Resolve(rootDir)
	if err != nil {
		return nil, err
	}
	checkpointDir, err := pf.AbsCheckpointDir(rootDir)
	if err != nil {
		return nil, err
	}
	store, err := checkpoint.ParseKind(pf.CheckpointStore)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, rt := range resolved {
		t := rt.Target
		if len(names) > 0 && !slices.Contains(names, t.Name) {
			continue
		}
		lang := rt.Language
		if lang == "" {
			lang = config.DetectLanguage(rt.AbsTarget)
		}
		if len(langs) > 0 && !slices.Contains(langs, lang) {
			continue
		}

		grammar, err := slicer.ParseGrammar(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", t.Name, err)
		}
		cfg := slicer.DefaultConfig(grammar)
		cfg.LowerBound = t.LowerBound

		jobs = append(jobs, job{
			name:             t.Name,
			src:              rt.AbsSource,
			dst:              rt.AbsTarget,
			lang:             lang,
			grammar:          grammar,
			cfg:              cfg,
			async:            t.Async,
			ext:              t.Ext,
			recursive:        *t.Recursive,
			skipExisting:     *t.SkipExisting,
			incremental:      t.Incremental,
			checkpointDir:    checkpointDir,
			checkpointPrefix: rt.CheckpointPrefix(),
			checkpointStore:  store,
			prompt:           t.Prompt,
			maxConcurrent:    pf.MaxConcurrent,
			maxRequests:      pf.MaxRequests,
		})
	}
	return jobs, nil
}

func runProject(a runArgs) {
	pf, err := loadProject()
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	jobs, err := projectJobs(pf, a.targets, splitList(a.langs))
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if len(jobs) == 0 {
		logWarning("%s", i18n.T("Nothing to translate: no target matches the selection"))
		return
	}

	prov, err := a.prov.merge(pf.Provider, pf.Model, pf.BaseURL).buildProvider()
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
	logInfo(i18n.T("Targets: %d job(s) from %s"), len(jobs), filepath.Join(rootDir, config.ProjectFileName))

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

	for _, j := range jobs {
		if a.async {
			j.async = true
		}
		j.fresh = a.fresh
		logInfo(i18n.T("Target %s: %s → %s"), j.name, j.src, j.dst)

		stats, err := j.run(ctx, env)
		if !j.report(ctx, stats, err) {
			os.Exit(1)
		}
		if ctx.Err() != nil {
			return
		}
	}
	logSuccess("%s", i18n.T("Translation complete!"))
}
