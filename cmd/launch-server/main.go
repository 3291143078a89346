// Launch a browser and serve its DevTools protocol, then print the ws endpoint for the clients.
//
//     launch-server --host=127.0.0.1 --port=9323
//
// If the file "ws_path.txt" exists next to the executable, its trimmed content will be used as the path of
// the endpoint, otherwise a random one is generated. Use the "rod" env var to customize the browser,
// such as "rod=bin=/usr/bin/chromium,trace".
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-rod/launch-server/lib/config"
	"github.com/go-rod/launch-server/lib/defaults"
	"github.com/go-rod/launch-server/lib/launcher"
	"github.com/go-rod/launch-server/lib/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	exitOK = iota
	exitLaunch
	exitConfig
)

// launched server
type launched interface {
	WSEndpoint() string
	Wait() error
	Close() error
}

// observable server, such as *server.Server
type observable interface {
	Events(ctx context.Context) <-chan *server.Event
}

type launchFunc func(ctx context.Context, c config.Config) (launched, error)

type app struct {
	stdout     io.Writer
	logger     *zap.Logger
	wsPathFile string
	launch     launchFunc

	// stopSignals restores the default signal behavior once the shutdown starts
	stopSignals func()
}

func main() {
	logger, err := newLogger(defaults.Trace)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[launch-server] failed to create logger:", err)
		os.Exit(exitConfig)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{
		stdout:      os.Stdout,
		logger:      logger,
		wsPathFile:  config.DefaultWSPathFile(),
		launch:      launchServer(logger),
		stopSignals: stop,
	}
	code := a.run(ctx, os.Args[1:])

	stop()
	_ = logger.Sync()
	os.Exit(code)
}

func (a *app) run(ctx context.Context, args []string) int {
	c, err := config.Load(args, a.wsPathFile)
	if err != nil {
		a.logger.Error("invalid config", zap.Error(err))
		return exitConfig
	}

	a.logger.Debug("launching", zap.String("host", c.Host), zap.Int("port", c.Port), zap.Bool("ws-path", c.WSPath != ""))

	s, err := a.launch(ctx, c)
	if err != nil {
		a.logger.Error("failed to launch the server", zap.Error(err))
		return exitLaunch
	}

	watchCtx, cancel := context.WithCancel(ctx)
	sessionsDone := make(chan struct{})
	if o, ok := s.(observable); ok {
		go a.logSessions(o.Events(watchCtx), sessionsDone)
	} else {
		close(sessionsDone)
	}
	defer func() {
		cancel()
		<-sessionsDone
	}()

	_, _ = fmt.Fprintf(a.stdout, "Playwright server started: %s\n", s.WSEndpoint())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if a.stopSignals != nil {
				a.stopSignals()
			}
			a.logger.Info("shutting down")
			_ = s.Close()
		case <-done:
		}
	}()

	err = s.Wait()
	if err != nil {
		a.logger.Error("server stopped", zap.Error(err))
		return exitLaunch
	}

	a.logger.Debug("server closed")
	return exitOK
}

// logSessions logs each proxied connection with the count of the active and total sessions
func (a *app) logSessions(events <-chan *server.Event, done chan struct{}) {
	defer close(done)

	active, total := 0, 0
	for e := range events {
		switch e.Type {
		case server.EventConnect:
			active++
			total++
		case server.EventDisconnect:
			active--
		}

		a.logger.Info("session "+string(e.Type),
			zap.String("op", "session"),
			zap.String("remote", e.Remote),
			zap.Int("active", active),
			zap.Int("total", total),
		)
	}
}

func launchServer(logger *zap.Logger) launchFunc {
	return func(ctx context.Context, c config.Config) (launched, error) {
		browserLog := zap.NewStdLog(logger.Named("browser"))

		s, err := server.LaunchServer(ctx, server.Options{
			Host:    c.Host,
			Port:    c.Port,
			WSPath:  c.WSPath,
			Browser: launcher.New().Context(ctx).Logger(browserLog.Writer()),
			Logger:  zap.NewStdLog(logger),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func newLogger(trace bool) (*zap.Logger, error) {
	var conf zap.Config
	if trace {
		conf = zap.NewDevelopmentConfig()
	} else {
		conf = zap.NewProductionConfig()
	}

	conf.Encoding = "console"
	conf.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	conf.DisableStacktrace = true
	conf.OutputPaths = []string{"stderr"}
	conf.ErrorOutputPaths = []string{"stderr"}

	return conf.Build()
}
