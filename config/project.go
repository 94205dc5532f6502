// Package config implements .doctrans.yaml, the project file that declares
// translation targets.
//
// When a .doctrans.yaml file exists in the project root, `doctrans run`
// uses it as the sole source of truth: every target must be explicitly
// declared. Command-line flags still override provider settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// ProjectFile is the top-level .doctrans.yaml structure.
type ProjectFile struct {
	// Provider is the default AI provider ID.
	Provider string `yaml:"provider,omitempty"`
	// Model is the default model for Provider.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the provider endpoint (custom-openai, ollama).
	BaseURL string `yaml:"base_url,omitempty"`
	// Languages is the default target language list.
	Languages []string `yaml:"languages,omitempty"`
	// MaxConcurrent bounds in-flight requests per document.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
	// MaxRequests caps new requests per document in async mode (0 = no cap).
	MaxRequests int `yaml:"max_requests,omitempty"`
	// CheckpointDir holds checkpoint logs, relative to the project root.
	CheckpointDir string `yaml:"checkpoint_dir,omitempty"`
	// CheckpointStore is "jsonl" (default) or "sqlite".
	CheckpointStore string `yaml:"checkpoint_store,omitempty"`
	// Targets is the list of translation targets.
	Targets []Target `yaml:"targets"`
}

// Target describes one source folder (or file) translated into a target
// folder (or file).
type Target struct {
	// Name is a human-readable label shown in status/logs.
	Name string `yaml:"name"`
	// Kind is the document grammar: "markdown", "lean" or "text".
	Kind string `yaml:"kind,omitempty"`
	// Source is a file or folder relative to the project root.
	Source string `yaml:"source"`
	// Target is the output path. It may contain {lang}, which is required
	// when more than one language is configured.
	Target string `yaml:"target"`
	// Ext selects the files translated in folder mode (default from Kind).
	Ext string `yaml:"ext,omitempty"`
	// LowerBound is the token size at which a unit is sealed.
	LowerBound int `yaml:"lower_bound,omitempty"`
	// Recursive descends into subfolders (default true).
	Recursive *bool `yaml:"recursive,omitempty"`
	// SkipExisting leaves documents alone whose output already exists
	// (default true).
	SkipExisting *bool `yaml:"skip_existing,omitempty"`
	// Incremental re-translates only documents whose source changed since
	// the last run, tracked in doctrans.lock.
	Incremental bool `yaml:"incremental,omitempty"`
	// Async uses the two-phase submit/load driver.
	Async bool `yaml:"async,omitempty"`
	// CheckpointPrefix is prepended to every checkpoint key of this target.
	CheckpointPrefix string `yaml:"checkpoint_prefix,omitempty"`
	// Languages overrides the project language list for this target.
	Languages []string `yaml:"languages,omitempty"`
	// Prompt overrides the system prompt for this target.
	Prompt string `yaml:"prompt,omitempty"`
}

// Valid target kinds.
const (
	KindMarkdown = "markdown"
	KindLean     = "lean"
	KindText     = "text"
)

// LangPlaceholder is replaced by the language code in Target paths.
const LangPlaceholder = "{lang}"

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// ProjectFileName is the default config file name.
const ProjectFileName = ".doctrans.yaml"

// DefaultCheckpointDir is used when checkpoint_dir is not set.
const DefaultCheckpointDir = ".doctrans/checkpoints"

// LoadProjectFile loads and validates .doctrans.yaml from the given
// directory. Returns nil if no .doctrans.yaml exists.
func LoadProjectFile(rootDir string) (*ProjectFile, error) {
	path := filepath.Join(rootDir, ProjectFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	pf, err := ParseProjectFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pf, nil
}

// ParseProjectFile decodes and validates project file content. Unknown keys
// are rejected so that typos do not silently fall back to defaults.
func ParseProjectFile(data []byte) (*ProjectFile, error) {
	var pf ProjectFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("unsupported key: %w", err)
		}
		return nil, fmt.Errorf("parsing: %w", err)
	}

	if pf.CheckpointDir == "" {
		pf.CheckpointDir = DefaultCheckpointDir
	}
	if pf.CheckpointStore == "" {
		pf.CheckpointStore = "jsonl"
	}
	if pf.CheckpointStore != "jsonl" && pf.CheckpointStore != "sqlite" {
		return nil, fmt.Errorf("unknown checkpoint_store %q (valid: jsonl, sqlite)", pf.CheckpointStore)
	}
	if pf.MaxConcurrent < 0 || pf.MaxRequests < 0 {
		return nil, fmt.Errorf("max_concurrent and max_requests must not be negative")
	}

	seen := make(map[string]bool)
	for i := range pf.Targets {
		t := &pf.Targets[i]

		if t.Name == "" {
			return nil, fmt.Errorf("target #%d has no name", i+1)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		if t.Source == "" {
			return nil, fmt.Errorf("target %q requires \"source\"", t.Name)
		}
		if t.Target == "" {
			return nil, fmt.Errorf("target %q requires \"target\"", t.Name)
		}

		if t.Kind == "" {
			t.Kind = KindMarkdown
		}
		switch t.Kind {
		case KindMarkdown:
			defaultString(&t.Ext, ".md")
			defaultInt(&t.LowerBound, 300)
		case KindLean:
			defaultString(&t.Ext, ".lean")
			defaultInt(&t.LowerBound, 800)
		case KindText:
			defaultString(&t.Ext, ".txt")
			defaultInt(&t.LowerBound, 300)
		default:
			return nil, fmt.Errorf("target %q has unknown kind %q (valid: markdown, lean, text)", t.Name, t.Kind)
		}
		if !strings.HasPrefix(t.Ext, ".") {
			t.Ext = "." + t.Ext
		}
		if t.LowerBound < 0 {
			return nil, fmt.Errorf("target %q: lower_bound must not be negative", t.Name)
		}
		if t.Recursive == nil {
			t.Recursive = boolPtr(true)
		}
		if t.SkipExisting == nil {
			t.SkipExisting = boolPtr(true)
		}

		// Inherit project languages if not overridden
		if len(t.Languages) == 0 {
			t.Languages = pf.Languages
		}
		if len(t.Languages) > 1 && !strings.Contains(t.Target, LangPlaceholder) {
			return nil, fmt.Errorf("target %q translates into %d languages; \"target\" must contain %s", t.Name, len(t.Languages), LangPlaceholder)
		}
	}

	return &pf, nil
}

func defaultString(s *string, v string) {
	if *s == "" {
		*s = v
	}
}

func defaultInt(n *int, v int) {
	if *n == 0 {
		*n = v
	}
}

func boolPtr(b bool) *bool { return &b }

// ---------------------------------------------------------------------------
// Resolving targets
// ---------------------------------------------------------------------------

// ResolvedTarget is one (target, language) pair with absolute paths.
type ResolvedTarget struct {
	Target   Target
	Language string
	// AbsSource and AbsTarget are absolute paths; AbsTarget has {lang}
	// substituted.
	AbsSource string
	AbsTarget string
}

// Resolve expands every target into one ResolvedTarget per language, in
// declaration order. A target without languages resolves once with an
// empty language, leaving the choice to the caller's defaults.
func (pf *ProjectFile) Resolve(projectRoot string) ([]ResolvedTarget, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}

	var resolved []ResolvedTarget
	for _, t := range pf.Targets {
		langs := t.Languages
		if len(langs) == 0 {
			langs = []string{""}
		}
		for _, lang := range langs {
			resolved = append(resolved, ResolvedTarget{
				Target:    t,
				Language:  lang,
				AbsSource: absPath(absRoot, t.Source),
				AbsTarget: absPath(absRoot, strings.ReplaceAll(t.Target, LangPlaceholder, lang)),
			})
		}
	}
	return resolved, nil
}

func absPath(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// CheckpointPrefix returns the key prefix of a resolved target. The
// language is appended when a target has several, so their checkpoint logs
// stay apart.
func (rt *ResolvedTarget) CheckpointPrefix() string {
	prefix := rt.Target.CheckpointPrefix
	if len(rt.Target.Languages) > 1 {
		prefix += rt.Language + "/"
	}
	return prefix
}

// AbsCheckpointDir returns the checkpoint directory as an absolute path.
func (pf *ProjectFile) AbsCheckpointDir(projectRoot string) (string, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", err
	}
	return absPath(absRoot, pf.CheckpointDir), nil
}

// TargetNames returns the declared target names, sorted.
func (pf *ProjectFile) TargetNames() []string {
	names := make([]string, 0, len(pf.Targets))
	for _, t := range pf.Targets {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// AllLanguages returns the deduplicated union of all target languages.
func (pf *ProjectFile) AllLanguages() []string {
	seen := make(map[string]bool)
	var all []string
	for _, t := range pf.Targets {
		for _, lang := range t.Languages {
			if !seen[lang] {
				seen[lang] = true
				all = append(all, lang)
			}
		}
	}
	sort.Strings(all)
	return all
}
