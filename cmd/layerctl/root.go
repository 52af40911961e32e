package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/layercache"
	asynchook "github.com/unkn0wn-root/layercache/hooks/async"
	"github.com/unkn0wn-root/layercache/internal/config"
	"github.com/unkn0wn-root/layercache/sloghooks"
)

var errNotFound = errors.New("not found")

type globals struct {
	configPath string
	envFile    string
	namespace  string
	trace      bool

	out, errOut io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	g := &globals{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:           "layerctl",
		Short:         "layerctl - inspect a layered cache",
		Long:          "Reads and writes keys through the layer stack described by layercache.yaml and LAYERCACHE_* variables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultConfigFile, "YAML config file")
	rootCmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().StringVarP(&g.namespace, "namespace", "n", "", "override the configured namespace")
	rootCmd.PersistentFlags().BoolVar(&g.trace, "trace", false, "log every cache event to stderr")

	rootCmd.AddCommand(
		getCmd(g),
		mgetCmd(g),
		setCmd(g),
		delCmd(g),
		hasCmd(g),
		clearCmd(g),
		layersCmd(g),
		layerGetCmd(g),
	)
	return rootCmd
}

type session struct {
	cfg   *config.Config
	cache layercache.Cache[string]
}

// withCache opens the configured stack, runs fn, then closes everything.
func (g *globals) withCache(ctx context.Context, fn func(s *session) error) (err error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return err
	}
	cfg, err := config.LoadFrom(g.configPath)
	if err != nil {
		return err
	}
	if g.namespace != "" {
		cfg.Namespace = g.namespace
	}

	log, flush, err := config.NewLogger(cfg.Log, g.errOut)
	if err != nil {
		return err
	}
	defer flush()

	stack, err := config.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, stack.Close()) }()

	opts := config.CacheOptions[string](cfg, stack, log)
	if g.trace {
		raw := sloghooks.New(stdslog.New(stdslog.NewTextHandler(g.errOut, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})), sloghooks.Options{})
		hooks := asynchook.New(raw, 1, 256)
		defer hooks.Close()
		opts.Hooks = hooks
	}

	cache, err := layercache.New[string](opts)
	if err != nil {
		for _, l := range stack.Layers {
			_ = l.Provider.Close(ctx)
		}
		return err
	}
	defer func() {
		if cerr := cache.Close(ctx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()

	return fn(&session{cfg: cfg, cache: cache})
}
