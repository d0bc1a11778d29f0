// Package main is the edge router entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/cappuccinotm/slogx"
	"github.com/cappuccinotm/slogx/slogm"
	"github.com/jessevdk/go-flags"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/foodgram/edge/pkg/edge"
	"github.com/foodgram/edge/pkg/routes"
)

var opts struct {
	Addr         string `short:"a" long:"addr"          env:"ADDR"          default:":443" description:"Address of the TLS listener"`
	RedirectAddr string `long:"redirect-addr"           env:"REDIRECT_ADDR" default:":80"  description:"Address of the plaintext redirect listener"`
	OpsAddr      string `long:"ops-addr"                env:"OPS_ADDR"      default:""     description:"Address of the private ops listener, disabled if empty"`

	Routes string `long:"routes" env:"ROUTES" default:"" description:"Routes file; built-in table is used if empty"`

	TLS struct {
		Cert string `long:"cert" env:"CERT" default:"" description:"Path to the TLS certificate"`
		Key  string `long:"key"  env:"KEY"  default:"" description:"Path to the TLS key"`
	} `group:"tls" namespace:"tls" env-namespace:"TLS"`

	Backend    string `long:"backend"     env:"BACKEND"     default:"http://backend:8000" description:"Backend address for the built-in table"`
	StaticRoot string `long:"static-root" env:"STATIC_ROOT" default:"/var/html/static"    description:"Admin static assets root for the built-in table"`
	MediaRoot  string `long:"media-root"  env:"MEDIA_ROOT"  default:"/var/html/media"     description:"Media root for the built-in table"`
	SPARoot    string `long:"spa-root"    env:"SPA_ROOT"    default:"/usr/share/frontend" description:"Frontend bundle root for the built-in table"`

	ErrorPage string `long:"error-page" env:"ERROR_PAGE" default:"" description:"Path to the static error page"`
	Debug     bool   `long:"debug"      env:"DEBUG"      description:"Enable debug mode"`
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
	_, _ = fmt.Fprintf(os.Stderr, "edge %s\n", getVersion())

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

	if err := run(ctx); err != nil {
		slog.Error("failed to start edge router", slogx.Error(err))
	}
}

func setupLog(dbg bool) {
	defer slog.Info("prepared logger", slog.Bool("debug", dbg))
	handlerOpts := &slog.HandlerOptions{Level: slog.LevelInfo}
	handler := slog.Handler(slog.NewJSONHandler(os.Stderr, handlerOpts))

	if dbg {
		handlerOpts.Level = slog.LevelDebug
		handlerOpts.AddSource = true
		handlerOpts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			// shorten source to just file:line
			if a.Key == slog.SourceKey {
				src := a.Value.Any().(*slog.Source)
				file := src.File[strings.LastIndex(src.File, "/")+1:]
				return slog.String("s", fmt.Sprintf("%s:%d", file, src.Line))
			}
			return a
		}
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      handlerOpts.Level.Level(),
			AddSource:  handlerOpts.AddSource,
			TimeFormat: time.Kitchen,
		})
	}

	handler = slogx.NewChain(handler,
		slogm.RequestID(),
		slogm.StacktraceOnError(),
		slogm.TrimAttrs(1024), // 1Kb
	)

	slog.SetDefault(slog.New(handler))
}

func run(ctx context.Context) error {
	table, err := loadTable()
	if err != nil {
		return fmt.Errorf("load routing table: %w", err)
	}

	srvOpts := []edge.Option{
		edge.Version(getVersion()),
		edge.TLS(opts.TLS.Cert, opts.TLS.Key),
		edge.Debug(opts.Debug),
	}

	if opts.ErrorPage != "" {
		page, err := os.ReadFile(opts.ErrorPage)
		if err != nil {
			return fmt.Errorf("read error page: %w", err)
		}
		srvOpts = append(srvOpts, edge.ErrorPage(page))
	}

	srv := edge.NewServer(table, srvOpts...)

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		if err := srv.Listen(opts.RedirectAddr, opts.Addr); err != nil {
			return fmt.Errorf("edge server: %w", err)
		}
		return nil
	})
	if opts.OpsAddr != "" {
		ops := &http.Server{Addr: opts.OpsAddr, Handler: srv.Ops(), ReadTimeout: 5 * time.Second}
		ewg.Go(func() error {
			slog.Info("starting ops listener", slog.String("addr", opts.OpsAddr))
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		ewg.Go(func() error {
			<-ctx.Done()
			return ops.Close()
		})
	}
	ewg.Go(func() error {
		<-ctx.Done()
		srv.Close()
		return nil
	})

	return ewg.Wait()
}

func loadTable() (*routes.Table, error) {
	if opts.Routes != "" {
		return routes.Load(opts.Routes)
	}
	return routes.Default(opts.Backend, opts.StaticRoot, opts.MediaRoot, opts.SPARoot)
}
