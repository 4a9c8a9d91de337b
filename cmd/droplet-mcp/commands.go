package main

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/droplet-assay-mcp/internal/assay"
	"github.com/ironsheep/droplet-assay-mcp/internal/config"
	"github.com/ironsheep/droplet-assay-mcp/internal/imaging"
	"github.com/ironsheep/droplet-assay-mcp/internal/parallel"
	"github.com/ironsheep/droplet-assay-mcp/internal/roi"
)

func printJSON(c *cli.Context, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(b))
	return err
}

func firstArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%w: expected one directory argument", config.ErrConfiguration)
	}
	return c.Args().First(), nil
}

func detectCommand(env *config.Env) *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "detect droplets and print their ROIs",
		ArgsUsage: "DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "annotated", Usage: "write the annotated projection to this PNG file"},
			&cli.IntFlag{Name: "cols", Usage: "droplet grid columns"},
			&cli.IntFlag{Name: "rows", Usage: "droplet grid rows"},
			&cli.IntFlag{Name: "stride", Usage: "use every n-th frame"},
		},
		Action: func(c *cli.Context) error {
			dir, err := firstArg(c)
			if err != nil {
				return err
			}
			p, err := newPipeline(c, env, true)
			if err != nil {
				return err
			}

			cfg := p.Params.Detector
			if v := c.Int("cols"); v > 0 {
				cfg.NumCols = v
			}
			if v := c.Int("rows"); v > 0 {
				cfg.NumRows = v
			}
			if v := c.Int("stride"); v > 0 {
				cfg.SampleStride = v
			}

			seq, err := imaging.DiscoverSequence(dir, p.Prefix)
			if err != nil {
				return err
			}
			det, err := p.DetectROIs(c.Context, seq, cfg, c.String("annotated"))
			if errors.Is(err, parallel.ErrAborted) {
				log.Warn().Str("evt.name", "cli.aborted").Msg("detection cancelled")
				return nil
			}
			if err != nil {
				return err
			}
			return printJSON(c, det)
		},
	}
}

func analyzeCommand(env *config.Env) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "run the turn assay on one recording",
		ArgsUsage: "DIR",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rois", Usage: "YAML ROI file; droplets are detected when omitted"},
			&cli.StringFlag{Name: "grouping", Usage: "grouping scheme or 0-based ranges such as 0-5,6-11"},
			&cli.StringFlag{Name: "ignore", Usage: "comma separated 1-based droplet numbers to skip"},
			&cli.IntFlag{Name: "start", Usage: "first frame (1-based)"},
			&cli.IntFlag{Name: "end", Usage: "last frame (1-based, inclusive)"},
			&cli.BoolFlag{Name: "series", Usage: "include per-frame series"},
		},
		Action: func(c *cli.Context) error {
			dir, err := firstArg(c)
			if err != nil {
				return err
			}
			p, err := newPipeline(c, env, true)
			if err != nil {
				return err
			}

			var rois []roi.ROI
			if path := c.String("rois"); path != "" {
				if rois, err = roi.Load(path); err != nil {
					return err
				}
			}

			report, err := p.Analyze(c.Context, assay.Request{
				Directory:  dir,
				StartFrame: c.Int("start"),
				EndFrame:   c.Int("end"),
				ROIs:       rois,
				Ignore:     c.String("ignore"),
				Options: assay.Options{
					Grouping:      c.String("grouping"),
					IncludeSeries: c.Bool("series"),
				},
			})
			if err != nil {
				return err
			}
			return printJSON(c, report)
		},
	}
}

func batchCommand(env *config.Env) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "analyze every recording below the given paths",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "search all nested directories"},
			&cli.StringFlag{Name: "required", Value: assay.DefaultRequiredFile, Usage: "file that marks a recording directory"},
			&cli.StringFlag{Name: "grouping", Usage: "grouping scheme applied to every recording"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("%w: expected at least one path", config.ErrConfiguration)
			}
			p, err := newPipeline(c, env, true)
			if err != nil {
				return err
			}

			dirs := assay.CollectDirs(c.Args().Slice(), c.Bool("recursive"), c.String("required"))
			if len(dirs) == 0 {
				return fmt.Errorf("%w: no directories containing %s", imaging.ErrInput, c.String("required"))
			}

			res := p.Batch(c.Context, dirs, assay.Options{Grouping: c.String("grouping")},
				func(done, total int, dir string) {
					log.Info().
						Str("evt.name", "cli.batch_progress").
						Int("done", done).
						Int("total", total).
						Str("directory", dir).
						Msg("recording processed")
				})
			return printJSON(c, res)
		},
	}
}
