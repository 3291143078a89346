package main

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/go-rod/launch-server/lib/config"
	"github.com/go-rod/launch-server/lib/server"
	"github.com/go-rod/launch-server/lib/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeServer struct {
	endpoint string
	err      error
	closed   chan struct{}
	events   chan *server.Event
}

func newFakeServer(endpoint string) *fakeServer {
	return &fakeServer{
		endpoint: endpoint,
		closed:   make(chan struct{}),
		events:   make(chan *server.Event, 10),
	}
}

func (s *fakeServer) Events(context.Context) <-chan *server.Event { return s.events }

func (s *fakeServer) WSEndpoint() string { return s.endpoint }

func (s *fakeServer) Wait() error {
	<-s.closed
	return s.err
}

func (s *fakeServer) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
		close(s.events)
	}
	return nil
}

type fakeBrowser struct {
	launched bool
	exit     chan utils.Nil
}

func (b *fakeBrowser) Launch() (string, error) {
	b.launched = true
	return "ws://127.0.0.1:1/devtools/browser/abc", nil
}

func (b *fakeBrowser) Kill() {}

func (b *fakeBrowser) Cleanup() {}

func (b *fakeBrowser) Exit() <-chan utils.Nil { return b.exit }

func newApp(t *testing.T, launch launchFunc) (*app, *bytes.Buffer, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	stdout := bytes.NewBuffer(nil)

	return &app{
		stdout:     stdout,
		logger:     zap.New(core),
		wsPathFile: filepath.Join(t.TempDir(), config.WSPathFileName),
		launch:     launch,
	}, stdout, logs
}

func TestRun(t *testing.T) {
	var conf config.Config
	s := newFakeServer("ws://127.0.0.1:9323/abc")
	_ = s.Close()

	a, stdout, _ := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		conf = c
		return s, nil
	})
	require.NoError(t, ioutil.WriteFile(a.wsPathFile, []byte("  abc  \n"), 0644))

	code := a.run(context.Background(), []string{"--port=9323", "--other", "--host=127.0.0.1"})

	assert.Equal(t, exitOK, code)
	assert.Equal(t, "Playwright server started: ws://127.0.0.1:9323/abc\n", stdout.String())
	assert.Equal(t, config.Config{Host: "127.0.0.1", Port: 9323, WSPath: "abc"}, conf)
}

func TestRunDefaults(t *testing.T) {
	var conf config.Config
	s := newFakeServer("ws://0.0.0.0:9323/random")
	_ = s.Close()

	a, _, _ := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		conf = c
		return s, nil
	})

	assert.Equal(t, exitOK, a.run(context.Background(), nil))
	assert.Equal(t, config.Config{Host: "0.0.0.0", Port: 9323}, conf)
}

func TestRunUntilCanceled(t *testing.T) {
	s := newFakeServer("ws://127.0.0.1:9323/abc")
	a, stdout, _ := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		return s, nil
	})

	stopped := make(chan struct{})
	a.stopSignals = func() { close(stopped) }

	ctx, cancel := context.WithCancel(context.Background())
	code := make(chan int)
	go func() { code <- a.run(ctx, nil) }()

	select {
	case <-code:
		t.Fatal("should block until the server is closed")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	assert.Equal(t, exitOK, <-code)
	assert.Equal(t, "Playwright server started: ws://127.0.0.1:9323/abc\n", stdout.String())

	// the default signal behavior is restored once the shutdown starts
	<-stopped
}

func TestRunLogSessions(t *testing.T) {
	s := newFakeServer("ws://127.0.0.1:9323/abc")
	s.events <- &server.Event{Type: server.EventConnect, Remote: "127.0.0.1:1"}
	s.events <- &server.Event{Type: server.EventConnect, Remote: "127.0.0.1:2"}
	s.events <- &server.Event{Type: server.EventDisconnect, Remote: "127.0.0.1:1"}
	_ = s.Close()

	a, _, logs := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		return s, nil
	})

	assert.Equal(t, exitOK, a.run(context.Background(), nil))

	connects := logs.FilterMessage("session connect").All()
	require.Len(t, connects, 2)
	assert.Equal(t, "127.0.0.1:2", connects[1].ContextMap()["remote"])
	assert.EqualValues(t, 2, connects[1].ContextMap()["active"])

	disconnects := logs.FilterMessage("session disconnect").All()
	require.Len(t, disconnects, 1)
	assert.EqualValues(t, 1, disconnects[0].ContextMap()["active"])
	assert.EqualValues(t, 2, disconnects[0].ContextMap()["total"])
}

func TestRunBrowserExited(t *testing.T) {
	b := &fakeBrowser{exit: make(chan utils.Nil)}

	a, stdout, logs := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		s, err := server.LaunchServer(ctx, server.Options{Host: "127.0.0.1", Browser: b})
		if err != nil {
			return nil, err
		}
		close(b.exit)
		return s, nil
	})

	assert.Equal(t, exitLaunch, a.run(context.Background(), nil))
	assert.Contains(t, stdout.String(), "Playwright server started: ws://127.0.0.1:")
	assert.Equal(t, 1, logs.FilterMessage("server stopped").Len())
}

func TestRunServerStopped(t *testing.T) {
	s := newFakeServer("ws://127.0.0.1:9323/abc")
	s.err = errors.New("accept failed")
	_ = s.Close()

	a, _, logs := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		return s, nil
	})

	assert.Equal(t, exitLaunch, a.run(context.Background(), nil))
	assert.Equal(t, 1, logs.FilterMessage("server stopped").Len())
}

func TestRunLaunchErr(t *testing.T) {
	a, stdout, logs := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		return nil, errors.New("address already in use")
	})

	assert.Equal(t, exitLaunch, a.run(context.Background(), nil))
	assert.Empty(t, stdout.String())

	entries := logs.FilterMessage("failed to launch the server").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "address already in use", entries[0].ContextMap()["error"])
}

func TestRunInvalidPort(t *testing.T) {
	called := false
	a, stdout, logs := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		called = true
		return nil, nil
	})

	assert.Equal(t, exitConfig, a.run(context.Background(), []string{"--port=abc"}))
	assert.False(t, called)
	assert.Empty(t, stdout.String())
	assert.Equal(t, 1, logs.FilterMessage("invalid config").Len())
}

func TestRunPortInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	port := l.Addr().(*net.TCPAddr).Port
	b := &fakeBrowser{}

	a, stdout, _ := newApp(t, func(ctx context.Context, c config.Config) (launched, error) {
		s, err := server.LaunchServer(ctx, server.Options{Host: c.Host, Port: c.Port, WSPath: c.WSPath, Browser: b})
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	code := a.run(context.Background(), []string{"--host=127.0.0.1", "--port=" + strconv.Itoa(port)})

	assert.Equal(t, exitLaunch, code)
	assert.Empty(t, stdout.String())
	assert.False(t, b.launched)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))

	l, err = newLogger(true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}
