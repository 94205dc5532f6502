package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/doctrans/i18n"
	"github.com/minios-linux/doctrans/settings"
	"github.com/minios-linux/doctrans/translate"
)

// ---------------------------------------------------------------------------
// prompts (system prompt overrides)
// ---------------------------------------------------------------------------

func newPromptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage system prompts",
		Long: `Manage the system prompts sent with every unit.

Prompts live in $XDG_DATA_HOME/doctrans/prompts.json, one per document kind
(markdown, lean, text). {{targetLang}} is replaced by the target language,
e.g. "Russian (Русский)". The file is created with the built-in prompts on
first use; edit it to customize them.`,
	}

	cmd.AddCommand(newPromptsInitCmd(), newPromptsShowCmd())
	return cmd
}

func newPromptsInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in prompts to prompts.json",
		Run: func(cmd *cobra.Command, args []string) {
			path, err := settings.PromptsFilePath()
			if err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			if fileExists(path) && !force {
				logWarning(i18n.T("%s already exists; use --force to overwrite it"), path)
				return
			}
			if err := translate.WritePrompts(path, translate.DefaultPrompts()); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess(i18n.T("Prompts written to %s"), path)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing prompts.json")
	return cmd
}

func newPromptsShowCmd() *cobra.Command {
	var (
		kind string
		lang string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the prompts in effect",
		Run: func(cmd *cobra.Command, args []string) {
			prompts, path, err := translate.LoadPromptsFromDefaultLocation()
			if err != nil {
				logError(i18n.T("Loading prompts: %v"), err)
				os.Exit(1)
			}
			logInfo(i18n.T("Prompts file: %s"), path)

			keys := prompts.Keys()
			if kind != "" {
				keys = []string{kind}
			}
			printPrompts(os.Stdout, prompts, keys, lang)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only show the prompt of this kind")
	cmd.Flags().StringVar(&lang, "lang", "", "Substitute this language for {{targetLang}}")
	return cmd
}

func printPrompts(w io.Writer, prompts *translate.Prompts, keys []string, lang string) {
	for i, key := range keys {
		if i > 0 {
			fmt.Fprintln(w)
		}
		prompt := prompts.Get(key)
		if lang != "" {
			prompt = translate.ResolvePrompt(prompt, lang)
		}
		fmt.Fprintf(w, "== %s ==\n%s\n", key, strings.TrimRight(prompt, "\n"))
	}
}
