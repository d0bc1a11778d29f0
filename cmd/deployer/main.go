// Package main is the deployer entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/cappuccinotm/slogx"
	"github.com/cappuccinotm/slogx/slogm"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/foodgram/edge/pkg/deploy"
	"github.com/foodgram/edge/pkg/deploy/sshx"
)

var opts struct {
	Config  string `short:"c" long:"config" env:"CONFIG" default:"deploy.yml" description:"Deploy config file"`
	EnvFile string `long:"env-file"         env:"ENV_FILE" default:""         description:"Optional .env file with secrets"`

	Once  bool   `long:"once"  description:"Run a single deploy of the tracked branch head and exit"`
	Ref   string `long:"ref"   description:"Deploy this ref instead of the branch head, implies --once"`
	Debug bool   `long:"debug" env:"DEBUG" description:"Enable debug mode"`
}

var version = "unknown"

func getVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if ok {
		return bi.Main.Version
	}
	return version
}

func main() {
	_, _ = fmt.Fprintf(os.Stderr, "deployer %s\n", getVersion())

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	setupLog(opts.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { // catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		sig := <-stop
		slog.Warn("caught signal", slog.Any("signal", sig))
		cancel()
	}()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("deployer failed", slogx.Error(err))
		os.Exit(1)
	}
}

func setupLog(dbg bool) {
	handlerOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if dbg {
		handlerOpts.Level = slog.LevelDebug
	}

	handler := slog.Handler(slog.NewJSONHandler(os.Stderr, handlerOpts))
	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      handlerOpts.Level.Level(),
			TimeFormat: time.Kitchen,
		})
	}

	handler = slogx.NewChain(handler,
		slogm.StacktraceOnError(),
		slogm.TrimAttrs(4096), // command output can be chatty
	)

	slog.SetDefault(slog.New(handler))
}

func run(ctx context.Context) error {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := deploy.LoadConfig(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	key, err := os.ReadFile(cfg.Remote.Keyfile)
	if err != nil {
		return fmt.Errorf("read ssh key: %w", err)
	}

	remote := &sshx.Client{
		Addr:       cfg.Remote.Host,
		User:       cfg.Remote.User,
		Key:        key,
		Passphrase: cfg.Remote.Passphrase,
		KnownHosts: cfg.Remote.Knownhosts,
	}
	defer remote.Close()

	ref := "origin/" + cfg.Branch
	if opts.Ref != "" {
		ref = opts.Ref
	}

	pipeline := &deploy.Pipeline{Stages: []deploy.Stage{
		&deploy.Checkout{Dir: cfg.Workdir, Ref: ref},
		&deploy.Lint{Dir: cfg.Workdir, Commands: cfg.Lint.Commands},
		&deploy.BuildFrontend{
			Dir:      filepath.Join(cfg.Workdir, cfg.Frontend.Dir),
			Commands: cfg.Frontend.Commands,
			Bundle:   filepath.Join(cfg.Workdir, cfg.Frontend.Bundle),
		},
		&deploy.Package{
			Bundle:  filepath.Join(cfg.Workdir, cfg.Frontend.Bundle),
			Archive: filepath.Join(cfg.Workdir, cfg.Archive),
		},
		&deploy.Transfer{
			Remote:  remote,
			Archive: filepath.Join(cfg.Workdir, cfg.Archive),
			Staging: cfg.Remote.Staging,
		},
		&deploy.RemoteDeploy{
			Remote:  remote,
			Staging: cfg.Remote.Staging,
			Bundle:  cfg.Remote.Bundle,
			Compose: cfg.Remote.Compose,
		},
	}}

	if opts.Once || opts.Ref != "" {
		run, err := pipeline.Execute(ctx, ref)
		if err != nil {
			return fmt.Errorf("run %s: %w", run.ID, err)
		}
		return nil
	}

	runner := deploy.NewRunner(pipeline)
	watcher := &deploy.Watcher{Dir: cfg.Workdir, Branch: cfg.Branch, Interval: cfg.Poll}

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("runner: %w", err)
		}
		return nil
	})
	ewg.Go(func() error {
		for ref := range watcher.Events(ctx) {
			runner.Trigger(ref)
		}
		return nil
	})

	return ewg.Wait()
}
