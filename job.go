package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/minios-linux/doctrans/checkpoint"
	"github.com/minios-linux/doctrans/config"
	"github.com/minios-linux/doctrans/i18n"
	"github.com/minios-linux/doctrans/langmeta"
	"github.com/minios-linux/doctrans/lockfile"
	"github.com/minios-linux/doctrans/pipeline"
	"github.com/minios-linux/doctrans/slicer"
	"github.com/minios-linux/doctrans/tokens"
	"github.com/minios-linux/doctrans/translate"
)

// job is one source translated into one language, from either the translate
// flags or a .doctrans.yaml target.
type job struct {
	name     string
	src, dst string
	lang     string
	grammar  slicer.Grammar
	cfg      slicer.Config

	async, fresh bool

	// Folder mode
	ext                     string
	recursive, skipExisting bool
	incremental             bool

	checkpointDir    string
	checkpointPrefix string
	checkpointStore  checkpoint.Kind

	// prompt overrides the system prompt from prompts.json.
	prompt string

	maxConcurrent int
	maxRequests   int
	requestDelay  time.Duration
}

// jobEnv is what every job of one command invocation shares.
type jobEnv struct {
	client  translate.Completer
	model   string
	prompts *translate.Prompts
	cost    slicer.CostFunc
	// lockDir holds doctrans.lock for incremental translation.
	lockDir string
	logger  *zap.Logger
}

// costFunc resolves the token oracle, falling back to the character
// estimate when the encoding cannot be loaded.
func costFunc(name string) slicer.CostFunc {
	cost, err := tokens.ForName(name)
	if err != nil {
		logWarning(i18n.T("Tokenizer unavailable, estimating token counts: %v"), err)
	}
	return cost
}

// resolveKind picks the grammar of a job: the explicit kind, else one
// guessed from the source.
func resolveKind(kind, src string, recursive bool) (slicer.Grammar, error) {
	if kind == "" {
		kind = config.DetectKind(src, recursive)
		if kind == "" {
			return slicer.Plain, fmt.Errorf("cannot detect the document kind of %s; use --kind markdown|lean|text", src)
		}
	}
	return slicer.ParseGrammar(kind)
}

// systemPrompt returns the resolved system prompt of a job.
func (j *job) systemPrompt(prompts *translate.Prompts) string {
	prompt := j.prompt
	if prompt == "" {
		prompt = prompts.Get(j.grammar.String())
	}
	return translate.ResolvePrompt(prompt, j.lang)
}

func (j *job) openStore() (checkpoint.Store, error) {
	if err := os.MkdirAll(j.checkpointDir, 0755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return checkpoint.Open(j.checkpointStore, j.checkpointDir)
}

func (j *job) driver(backend pipeline.Backend, env *jobEnv) *pipeline.Driver {
	return &pipeline.Driver{
		Backend: backend,
		Grammar: j.grammar,
		Config:  j.cfg,
		Cost:    env.cost,
		Async:   j.async,
		Fresh:   j.fresh,
		Logger:  env.logger,
		OnLog:   logInfo,
	}
}

// run translates the job's source file or folder.
func (j *job) run(ctx context.Context, env *jobEnv) (pipeline.FolderStats, error) {
	var stats pipeline.FolderStats

	info, err := os.Stat(j.src)
	if err != nil {
		return stats, fmt.Errorf("reading %s: %w", j.src, err)
	}

	store, err := j.openStore()
	if err != nil {
		return stats, err
	}
	defer store.Close()

	backend := translate.NewBackend(env.client, store, translate.Options{
		SystemPrompt:  j.systemPrompt(env.prompts),
		Model:         env.model,
		MaxConcurrent: j.maxConcurrent,
		MaxRequests:   j.maxRequests,
		RequestDelay:  j.requestDelay,
		OnProgress: func(key string, done, total int) {
			logInfo("  %s: %d/%d", key, done, total)
		},
		OnLog: func(format string, args ...any) {
			logInfo(format, args...)
		},
		OnError: func(format string, args ...any) {
			logError(format, args...)
		},
	}, env.logger)
	d := j.driver(backend, env)

	var lock *lockfile.LockFile
	if j.incremental {
		if lock, err = lockfile.Load(env.lockDir); err != nil {
			return stats, err
		}
	}
	target := lockfile.TargetKey(relTo(env.lockDir, j.dst), j.lang)

	if info.IsDir() {
		return d.TranslateFolder(ctx, pipeline.FolderOptions{
			Source:           j.src,
			Target:           j.dst,
			CheckpointPrefix: j.checkpointPrefix,
			Ext:              j.ext,
			SkipExisting:     j.skipExisting,
			Recursive:        j.recursive,
			Incremental:      j.incremental,
			Lock:             lock,
			LockTarget:       target,
		})
	}
	return j.runFile(ctx, d, lock, target)
}

// runFile is the single-document counterpart of TranslateFolder.
func (j *job) runFile(ctx context.Context, d *pipeline.Driver, lock *lockfile.LockFile, target string) (pipeline.FolderStats, error) {
	var stats pipeline.FolderStats

	dst := j.dst
	if dirExists(dst) {
		dst = filepath.Join(dst, filepath.Base(j.src))
	}
	docKey := lockfile.DocumentKey(filepath.Base(j.src))

	data, err := os.ReadFile(j.src)
	if err != nil {
		return stats, fmt.Errorf("reading %s: %w", j.src, err)
	}
	switch {
	case lock != nil && !d.Fresh && fileExists(dst) && !lock.IsChanged(target, docKey, string(data)):
		stats.Unchanged++
		return stats, nil
	case lock == nil && j.skipExisting && fileExists(dst):
		stats.Existing++
		return stats, nil
	}

	key := checkpoint.Key(j.checkpointPrefix, filepath.Base(j.src))
	if err := d.TranslateFile(ctx, j.src, dst, key); err != nil {
		return stats, err
	}
	stats.Translated++

	if lock != nil {
		lock.Update(target, docKey, string(data))
		if err := lock.Save(); err != nil {
			return stats, fmt.Errorf("saving lock file: %w", err)
		}
	}
	return stats, nil
}

// report logs the outcome of a job. It returns false when the run should
// stop with a non-zero status.
func (j *job) report(ctx context.Context, stats pipeline.FolderStats, err error) bool {
	if err != nil {
		if ctx.Err() != nil {
			logWarning("%s", i18n.T("Translation interrupted, partial progress saved"))
			return true
		}
		logError(i18n.T("Translation failed: %v"), err)
		return false
	}
	label := j.name
	if j.lang != "" {
		label += " → " + langmeta.Label(j.lang)
	}
	logSuccess(i18n.T("%s: %d translated, %d existing, %d unchanged"),
		label, stats.Translated, stats.Existing, stats.Unchanged)
	return true
}

// relTo returns path relative to base when possible, for stable lock keys.
func relTo(base, path string) string {
	absBase, err1 := filepath.Abs(base)
	absPath, err2 := filepath.Abs(path)
	if err1 != nil || err2 != nil {
		return path
	}
	if rel, err := filepath.Rel(absBase, absPath); err == nil {
		return rel
	}
	return absPath
}
