package assay

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DefaultRequiredFile marks a directory as a recording in batch mode.
const DefaultRequiredFile = "w1a000000.jpg"

// CollectDirs expands a selection of directories into the directories to
// analyze.
//
// With recursive set, every directory below each path (the path included) is
// considered. Otherwise the immediate subdirectories of a path are used, or
// the path itself when it has none. A directory qualifies when it contains
// every file in required. Paths that are not directories are ignored. The
// result is cleaned, deduplicated and sorted.
func CollectDirs(paths []string, recursive bool, required ...string) []string {
	eligible := func(dir string) bool {
		return lo.EveryBy(required, func(name string) bool {
			_, err := os.Stat(filepath.Join(dir, name))
			return err == nil
		})
	}

	var out []string
	for _, base := range paths {
		info, err := os.Stat(base)
		if err != nil || !info.IsDir() {
			continue
		}
		base = filepath.Clean(base)

		if recursive {
			_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() && eligible(path) {
					out = append(out, filepath.Clean(path))
				}
				return nil
			})
			continue
		}

		subs := immediateSubdirs(base)
		if len(subs) == 0 {
			subs = []string{base}
		}
		out = append(out, lo.Filter(subs, func(d string, _ int) bool { return eligible(d) })...)
	}

	out = lo.Uniq(out)
	slices.Sort(out)
	return out
}

func immediateSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	return lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		return filepath.Join(dir, e.Name()), e.IsDir()
	})
}

// BatchItem is the outcome for one directory.
type BatchItem struct {
	Directory string  `json:"directory"`
	Report    *Report `json:"report,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// BatchResult collects the outcomes of Batch.
type BatchResult struct {
	Items    []BatchItem `json:"items"`
	Failures int         `json:"failures"`

	// Aborted is set when cancellation stopped the batch. Items then holds
	// only the directories processed before that.
	Aborted bool `json:"aborted"`
}

// Batch analyzes each directory in turn with automatic droplet detection.
//
// A failing directory is logged and recorded and the batch moves on.
// Cancellation stops the batch after the directory in progress. progress, if
// not nil, is called after each directory.
func (p *Pipeline) Batch(ctx context.Context, dirs []string, opts Options, progress func(done, total int, dir string)) *BatchResult {
	res := &BatchResult{Items: make([]BatchItem, 0, len(dirs))}

	for i, dir := range dirs {
		if ctx.Err() != nil {
			res.Aborted = true
			break
		}

		report, err := p.Analyze(ctx, Request{Directory: dir, Options: opts})
		item := BatchItem{Directory: dir, Report: report}
		if err != nil {
			item.Error = err.Error()
			res.Failures++
			log.Warn().
				Str("evt.name", "assay.batch_item_failed").
				Str("directory", dir).
				Err(err).
				Msg("analysis failed, continuing with the next directory")
		}
		res.Items = append(res.Items, item)

		if progress != nil {
			progress(i+1, len(dirs), dir)
		}
		if report != nil && report.Aborted {
			res.Aborted = true
			break
		}
	}

	log.Info().
		Str("evt.name", "assay.batch_finished").
		Int("directories", len(res.Items)).
		Int("failures", res.Failures).
		Bool("aborted", res.Aborted).
		Msg("batch finished")
	return res
}
