package translate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minios-linux/doctrans/langmeta"
	"github.com/minios-linux/doctrans/settings"
)

// ---------------------------------------------------------------------------
// System prompts
// ---------------------------------------------------------------------------

// Prompt keys, one per document kind.
const (
	PromptMarkdown = "markdown"
	PromptLean     = "lean"
	PromptText     = "text"
)

// TargetLangPlaceholder is replaced with the target language name.
const TargetLangPlaceholder = "{{targetLang}}"

// MarkdownSystemPrompt is the system prompt for Markdown prose units.
const MarkdownSystemPrompt = `You are a professional translator specializing in technical documentation. You are translating a fragment of a Markdown document into {{targetLang}}.

RULES:
1. Translate the prose only. Keep all Markdown syntax exactly as it is: headings (#), lists (-, *, 1.), emphasis, tables, block quotes, link and image syntax.
2. Never translate URLs, file paths, inline code in backticks, HTML tags, or front matter keys.
3. Keep line breaks where they are. Do not merge or split paragraphs.
4. The fragment may start or end mid-section. Do not add introductions, summaries, or closing remarks.
5. Use the established technical terminology of {{targetLang}}.

OUTPUT: Return only the translated fragment, without code fences or explanations.`

// LeanSystemPrompt is the system prompt for Lean comment units.
const LeanSystemPrompt = `You are a professional translator specializing in mathematics and formal proofs. You are translating the text of comments from a Lean 4 source file into {{targetLang}}.

RULES:
1. Translate the natural language text only.
2. Keep every identifier, tactic name, theorem name, and code reference in backticks unchanged.
3. Keep LaTeX math ($...$, $$...$$, \(...\)) and Markdown markup unchanged.
4. Use the standard mathematical terminology of {{targetLang}}.
5. Do not add comment delimiters such as /- or -/.

OUTPUT: Return only the translated text, without code fences or explanations.`

// TextSystemPrompt is the system prompt for plain text units.
const TextSystemPrompt = `You are a professional translator. You are translating a fragment of a long plain text document into {{targetLang}}.

RULES:
1. Translate faithfully and completely. Do not summarize or omit sentences.
2. Keep line breaks and paragraph structure.
3. The fragment may start or end mid-sentence. Translate what is there without completing it.

OUTPUT: Return only the translated fragment, without explanations.`

// Prompts holds the system prompts loaded from prompts.json.
type Prompts struct {
	Prompts map[string]string `json:"prompts"`
}

// DefaultPrompts returns the built-in system prompts.
func DefaultPrompts() *Prompts {
	return &Prompts{Prompts: map[string]string{
		PromptMarkdown: MarkdownSystemPrompt,
		PromptLean:     LeanSystemPrompt,
		PromptText:     TextSystemPrompt,
	}}
}

// LoadPrompts reads prompts from a JSON file. A missing file yields the
// built-in defaults.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultPrompts(), nil
		}
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var p Prompts
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}
	if p.Prompts == nil {
		p.Prompts = map[string]string{}
	}
	return &p, nil
}

// WritePrompts writes p to path as a formatted JSON file.
func WritePrompts(path string, p *Prompts) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling prompts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating prompts directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing prompts file: %w", err)
	}
	return nil
}

// LoadPromptsFromDefaultLocation loads prompts from the user data directory
// ($XDG_DATA_HOME/doctrans/prompts.json). If the file does not exist, it is
// created with the built-in defaults. The path is returned alongside.
func LoadPromptsFromDefaultLocation() (*Prompts, string, error) {
	path, err := settings.PromptsFilePath()
	if err != nil {
		return nil, "", fmt.Errorf("cannot determine prompts file path: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := WritePrompts(path, DefaultPrompts()); err != nil {
			return nil, "", fmt.Errorf("creating default prompts file: %w", err)
		}
	}

	p, err := LoadPrompts(path)
	if err != nil {
		return nil, "", err
	}
	return p, path, nil
}

// Get returns the prompt for kind, falling back to the built-in one.
func (p *Prompts) Get(kind string) string {
	if p != nil {
		if prompt, ok := p.Prompts[kind]; ok && prompt != "" {
			return prompt
		}
	}
	switch kind {
	case PromptLean:
		return LeanSystemPrompt
	case PromptText:
		return TextSystemPrompt
	default:
		return MarkdownSystemPrompt
	}
}

// Keys returns the prompt keys in sorted order.
func (p *Prompts) Keys() []string {
	keys := make([]string, 0, len(p.Prompts))
	for k := range p.Prompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolvePrompt substitutes the target language into prompt. An empty lang
// leaves the placeholder replaced with a generic phrase.
func ResolvePrompt(prompt, lang string) string {
	name := "the target language"
	if lang != "" {
		name = langmeta.PromptName(lang)
	}
	return strings.ReplaceAll(prompt, TargetLangPlaceholder, name)
}
