package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/ironsheep/droplet-assay-mcp/internal/assay"
	"github.com/ironsheep/droplet-assay-mcp/internal/config"
	"github.com/ironsheep/droplet-assay-mcp/internal/imaging"
	"github.com/ironsheep/droplet-assay-mcp/internal/logger"
	"github.com/ironsheep/droplet-assay-mcp/internal/parallel"
	"github.com/ironsheep/droplet-assay-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	env, err := config.ParseEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger.Configure(env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:    "droplet-mcp",
		Usage:   "droplet worm turn assay: MCP server and command line",
		Version: Version,
		Description: "Without a command the MCP server runs on stdin/stdout.\n" +
			"Environment: DROPLET_LOG_LEVEL, DROPLET_LOG_FORMAT, DROPLET_WORKERS, DROPLET_PARAMS, DROPLET_PREFIX, DROPLET_CACHE_SIZE.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "params",
				Usage: "YAML parameter file applied on top of the defaults",
				Value: env.Params,
			},
		},
		Action: func(c *cli.Context) error {
			return serve(c, env)
		},
		Commands: []*cli.Command{
			serveCommand(env),
			detectCommand(env),
			analyzeCommand(env),
			batchCommand(env),
			versionCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("failed to run app")
	}
}

// newPipeline builds the pipeline from the --params file and the environment.
// With progress set, per-frame progress is logged as cli.progress events.
func newPipeline(c *cli.Context, env *config.Env, progress bool) (*assay.Pipeline, error) {
	params, err := config.Load(c.String("params"))
	if err != nil {
		return nil, err
	}
	pool := parallel.NewPool(env.Workers)
	if progress {
		pool.Progress = logger.Progress("cli.progress", 10)
	}
	p := assay.New(params, pool)
	p.Cache = imaging.NewBackgroundCache(env.CacheSize)
	if env.Prefix != "" {
		p.Prefix = env.Prefix
	}
	return p, nil
}

func serve(c *cli.Context, env *config.Env) error {
	p, err := newPipeline(c, env, false)
	if err != nil {
		return err
	}
	log.Info().
		Str("evt.name", "server.starting").
		Str("version", Version).
		Str("commit", GitCommit).
		Int("workers", env.Workers).
		Int("cache_size", env.CacheSize).
		Msg("droplet MCP server starting")
	return server.New(p, Version).Run(c.Context)
}

func serveCommand(env *config.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the MCP server on stdin/stdout",
		Action: func(c *cli.Context) error {
			return serve(c, env)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "droplet-mcp %s\n", Version)
			fmt.Fprintf(c.App.Writer, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(c.App.Writer, "  Git commit: %s\n", GitCommit)
			return nil
		},
	}
}
