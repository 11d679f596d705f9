package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/captionkit/internal/app"
	"github.com/example/captionkit/internal/notify"
	"github.com/example/captionkit/internal/publish"
	"github.com/example/captionkit/internal/server"
)

var serveAPI = server.Serve

type serveCmd struct {
	*root
	fs         *flag.FlagSet
	listen     string
	sessionTTL time.Duration
}

func (s *serveCmd) FlagSet() *flag.FlagSet {
	return s.fs
}

func (s *serveCmd) Program() string {
	return s.root.subcommand("serve")
}

func parseServeCmd(args []string, r *root) (*serveCmd, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &serveCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.listen, "listen", r.config.Server.Listen, "address to listen on")
	fs.DurationVar(&c.sessionTTL, "session-ttl", r.config.Server.SessionTTL, "discard sessions idle for this long")
	fs.StringVar(&r.logLevel, "loglevel", r.logLevel, "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{of: c}
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (s *serveCmd) Run() error {
	if err := s.setup(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pub publish.Publisher
	p, err := newPublisher(ctx, publish.Target{
		Dir:      s.config.SaveDir,
		S3Bucket: s.config.Export.S3Bucket,
		S3Prefix: s.config.Export.S3Prefix,
	})
	if err != nil {
		logrus.WithError(err).Warn("publishing disabled")
	} else {
		pub = p
	}

	sessions := server.NewSessions(func(rec *notify.Recorder) *app.App {
		return app.New(s.sessionOptions(rec))
	}, s.sessionTTL)

	logrus.WithFields(logrus.Fields{
		"listen":      s.listen,
		"session_ttl": s.sessionTTL,
	}).Info("serving captionkit API")
	return serveAPI(ctx, s.listen, server.Options{
		Sessions:  sessions,
		Publisher: pub,
		Origins:   s.config.Server.Origins,
	})
}

// sessionOptions builds the options for one API session. API sessions only
// open remote images on public hosts.
func (s *serveCmd) sessionOptions(rec *notify.Recorder) app.Options {
	opts := s.appOptions(notify.LogSink{}, rec)
	opts.RemoteOnly = true
	if l, ok := opts.Loader.(*app.HTTPLoader); ok {
		l.RemoteOnly = true
	}
	return opts
}
