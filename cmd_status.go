package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minios-linux/doctrans/checkpoint"
	"github.com/minios-linux/doctrans/config"
	"github.com/minios-linux/doctrans/langmeta"
	"github.com/minios-linux/doctrans/lockfile"
	"github.com/minios-linux/doctrans/pipeline"
	"github.com/minios-linux/doctrans/slicer"
	"github.com/minios-linux/doctrans/translate"
)

// ---------------------------------------------------------------------------
// status (read-only: checkpoint progress per document)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var (
		kind             string
		lowerBound       int
		tokenizer        string
		ext              string
		recursive        bool
		checkpointDir    string
		checkpointPrefix string
		checkpointStore  string
	)

	cmd := &cobra.Command{
		Use:   "status [SRC]",
		Short: "Show checkpoint progress",
		Long: `Show how many units of each document already have a checkpointed reply.

With SRC, the file or folder is sliced with the given settings. Without it,
every target of .doctrans.yaml is reported. Does not modify any files.

The slicing settings must match those of the translation run, otherwise
the positions in the checkpoint do not line up with the units.`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var jobs []job
			if len(args) == 1 {
				a := translateArgs{
					src: args[0], kind: kind, lowerBound: lowerBound, ext: ext,
					recursive: recursive, checkpointDir: checkpointDir,
					checkpointPrefix: checkpointPrefix, checkpointStore: checkpointStore,
				}
				j, err := a.buildJob()
				if err != nil {
					logError("%v", err)
					os.Exit(1)
				}
				jobs = append(jobs, j)
			} else {
				pf, err := loadProject()
				if err != nil {
					logError("%v", err)
					os.Exit(1)
				}
				if jobs, err = projectJobs(pf, nil, nil); err != nil {
					logError("%v", err)
					os.Exit(1)
				}
			}

			cost := costFunc(tokenizer)
			for _, j := range jobs {
				if err := showStatus(context.Background(), os.Stderr, j, cost); err != nil {
					logError("%v", err)
					os.Exit(1)
				}
			}
			if err := printLockSummary(os.Stderr, rootDir); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Document kind: markdown, lean, text (default: detected)")
	cmd.Flags().IntVar(&lowerBound, "lower-bound", 0, "Token size at which a unit is sealed (0 = kind default)")
	cmd.Flags().StringVar(&tokenizer, "tokenizer", "", "Token counter: tiktoken encoding name or \"estimate\"")
	cmd.Flags().StringVar(&ext, "ext", "", "Extension of the documents (default from kind)")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "Descend into subfolders")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", config.DefaultCheckpointDir, "Directory holding checkpoint logs")
	cmd.Flags().StringVar(&checkpointPrefix, "checkpoint-prefix", "", "Prefix of every checkpoint key")
	cmd.Flags().StringVar(&checkpointStore, "checkpoint-store", string(checkpoint.KindJSONL), "Checkpoint store: jsonl, sqlite")

	return cmd
}

// docStatus is the checkpoint progress of one document.
type docStatus struct {
	rel         string
	done, total int
	written     bool
}

// collectStatus slices every document of a job and counts its checkpointed
// replies.
func collectStatus(ctx context.Context, j job, cost slicer.CostFunc) ([]docStatus, error) {
	// Without a checkpoint directory nothing was translated yet; an empty
	// JSONL store reports that without creating files.
	var store checkpoint.Store = checkpoint.NewJSONLStore(j.checkpointDir)
	if dirExists(j.checkpointDir) {
		s, err := checkpoint.Open(j.checkpointStore, j.checkpointDir)
		if err != nil {
			return nil, err
		}
		store = s
	}
	defer store.Close()

	backend := translate.NewBackend(nil, store, translate.Options{}, zap.NewNop())
	d := &pipeline.Driver{Backend: backend, Grammar: j.grammar, Config: j.cfg, Cost: cost}

	var docs []pipeline.Document
	if info, err := os.Stat(j.src); err != nil {
		return nil, fmt.Errorf("reading %s: %w", j.src, err)
	} else if info.IsDir() {
		docs, err = pipeline.Documents(pipeline.FolderOptions{
			Source: j.src, Target: j.dst, CheckpointPrefix: j.checkpointPrefix,
			Ext: j.ext, Recursive: j.recursive,
		})
		if err != nil {
			return nil, err
		}
	} else {
		base := filepath.Base(j.src)
		dst := j.dst
		if dirExists(dst) {
			dst = filepath.Join(dst, base)
		}
		docs = []pipeline.Document{{Rel: base, Src: j.src, Dst: dst, Key: checkpoint.Key(j.checkpointPrefix, base)}}
	}

	statuses := make([]docStatus, 0, len(docs))
	for _, doc := range docs {
		data, err := os.ReadFile(doc.Src)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", doc.Src, err)
		}
		done, total, err := d.Status(ctx, string(data), doc.Key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Rel, err)
		}
		statuses = append(statuses, docStatus{
			rel:     doc.Rel,
			done:    done,
			total:   total,
			written: j.dst != "" && fileExists(doc.Dst),
		})
	}
	return statuses, nil
}

func showStatus(ctx context.Context, w io.Writer, j job, cost slicer.CostFunc) error {
	statuses, err := collectStatus(ctx, j, cost)
	if err != nil {
		return err
	}

	title := j.name
	if j.lang != "" {
		title += " → " + langmeta.Label(j.lang)
	}
	fmt.Fprintf(w, "\n%s%s%s\n", colorBlue, title, colorReset)
	fmt.Fprintln(w, strings.Repeat("─", 60))

	var done, total int
	for _, s := range statuses {
		done += s.done
		total += s.total
		mark := " "
		if s.written {
			mark = colorGreen + "✓" + colorReset
		}
		fmt.Fprintf(w, "  %s %-36s %s  %d/%d\n", mark, s.rel, progressBar(percent(s.done, s.total), 20), s.done, s.total)
	}
	if len(statuses) == 0 {
		fmt.Fprintf(w, "  no documents\n")
		return nil
	}
	fmt.Fprintf(w, "  %-38s %s  %d/%d\n", "total", progressBar(percent(done, total), 20), done, total)
	return nil
}

// printLockSummary reports doctrans.lock when incremental runs created one.
func printLockSummary(w io.Writer, dir string) error {
	lf, err := lockfile.Load(dir)
	if err != nil {
		return err
	}
	if !fileExists(lf.Path()) {
		return nil
	}
	fmt.Fprintf(w, "\n%s: %s\n", lockfile.LockFileName, lf.Summary())
	return nil
}

// percent returns done/total as a whole percentage; an empty document
// counts as complete.
func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}
