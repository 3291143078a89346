// Package server launches a browser and exposes its DevTools protocol on a fixed host, port and path.
// Clients connect to the websocket endpoint of the server, every connection is transparently proxied
// to the launched browser. The work flow looks like:
//
//     |  Client  |                     Server                     |
//     | ws dial -|-> ws://host:port/path --> launched browser     |
//
// The server also serves "/json/version" so that tools which discover the websocket url
// of a browser via http, such as launcher.ResolveURL, work with it as if it were a browser.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-rod/launch-server/lib/launcher"
	"github.com/go-rod/launch-server/lib/utils"
	"github.com/gorilla/websocket"
	"github.com/ysmood/goob"
)

// Browser is the browser process behind the server, launcher.Launcher implements it.
type Browser interface {
	// Launch the browser and return its DevTools websocket url
	Launch() (string, error)
	Kill()
	Cleanup()

	// Exit is closed when the browser process exits
	Exit() <-chan utils.Nil
}

// ErrBrowserExited is returned by Server.Wait if the browser exits before the server is closed
var ErrBrowserExited = errors.New("[server] the browser exited unexpectedly")

var _ Browser = &launcher.Launcher{}

// Options to launch the server
type Options struct {
	// Host to bind, empty means all interfaces
	Host string

	// Port to bind, zero means a random free port
	Port int

	// WSPath of the websocket endpoint. If it's empty a random one will be generated.
	WSPath string

	// Browser to launch, the default is launcher.New()
	Browser Browser

	// Logger for the server, the default is utils.LoggerQuiet
	Logger utils.Logger
}

// EventType of Event
type EventType string

const (
	// EventConnect is published when a client connects to the browser
	EventConnect EventType = "connect"

	// EventDisconnect is published when a client disconnects from the browser
	EventDisconnect EventType = "disconnect"
)

// Event of a proxied connection
type Event struct {
	Type   EventType
	Remote string
}

// Server serves the DevTools protocol of a launched browser
type Server struct {
	logger utils.Logger

	host       string
	wsPath     string
	listener   net.Listener
	srv        *http.Server
	browser    Browser
	browserURL string

	dialer   *websocket.Dialer
	upgrader *websocket.Upgrader
	event    *goob.Observable

	lock     sync.Mutex
	stopping bool
	conns    map[*websocket.Conn]utils.Nil
	wg       sync.WaitGroup

	err       error
	exitErr   error
	closeOnce sync.Once
	served    chan utils.Nil
	closed    chan utils.Nil
}

// LaunchServer binds the host and port, launches the browser, then serves it.
// Cancel the ctx will close the server.
func LaunchServer(ctx context.Context, opts Options) (*Server, error) {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))

	// bind before launching the browser, so that port contention won't leave a browser behind
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("[server] failed to listen on %s: %w", addr, err)
	}

	b := opts.Browser
	if b == nil {
		b = launcher.New().Context(ctx)
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.LoggerQuiet
	}

	u, err := b.Launch()
	if err != nil {
		_ = listener.Close()
		b.Kill()
		b.Cleanup()
		return nil, fmt.Errorf("[server] failed to launch the browser: %w", err)
	}

	s := &Server{
		logger:     logger,
		host:       opts.Host,
		wsPath:     normalizeWSPath(opts.WSPath),
		listener:   listener,
		browser:    b,
		browserURL: u,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
			WriteBufferSize:  1024 * 1024,
		},
		upgrader: &websocket.Upgrader{
			WriteBufferSize: 1024 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		event:  goob.New(),
		conns:  map[*websocket.Conn]utils.Nil{},
		served: make(chan utils.Nil),
		closed: make(chan utils.Nil),
	}
	s.srv = &http.Server{Handler: s.engine()}

	s.logger.Println("[server] Launched browser:", u)

	go s.serve()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-b.Exit():
			s.browserExited()
		case <-s.served:
		}
	}()

	return s, nil
}

// MustLaunchServer is similar to LaunchServer
func MustLaunchServer(ctx context.Context, opts Options) *Server {
	s, err := LaunchServer(ctx, opts)
	utils.E(err)
	return s
}

// WSEndpoint the clients should connect to, such as "ws://127.0.0.1:9323/abc"
func (s *Server) WSEndpoint() string {
	host := s.host
	if host == "" {
		host = "localhost"
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(s.Port())) + s.wsPath
}

// Port the server is listening on
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// WSPath of the websocket endpoint
func (s *Server) WSPath() string {
	return s.wsPath
}

// BrowserURL is the DevTools websocket url of the launched browser
func (s *Server) BrowserURL() string {
	return s.browserURL
}

// Events of the proxied connections. The events published before the subscription won't be received.
// The channel will be closed when the ctx is done.
func (s *Server) Events(ctx context.Context) <-chan *Event {
	src := s.event.Subscribe(ctx)
	dst := make(chan *Event)

	go func() {
		defer close(dst)
		for e := range src {
			select {
			case <-ctx.Done():
				return
			case dst <- e.(*Event):
			}
		}
	}()

	return dst
}

// Wait until the server is closed. It returns the error that stops the serving, ErrBrowserExited
// if the browser exits by itself, nil if it's closed normally.
func (s *Server) Wait() error {
	<-s.served
	<-s.closed
	if s.err != nil {
		return s.err
	}
	return s.exitErr
}

// Close stops serving, disconnects all the clients, kills the browser and removes its user data.
// It's safe to call it multiple times.
func (s *Server) Close() error {
	s.closeOnce.Do(s.shutdown)
	<-s.served
	return nil
}

func (s *Server) serve() {
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	s.err = err
	close(s.served)

	// release the browser if the serving stopped by itself
	_ = s.Close()
}

func (s *Server) browserExited() {
	s.lock.Lock()
	if !s.stopping {
		s.exitErr = ErrBrowserExited
	}
	s.lock.Unlock()

	s.logger.Println("[server] Browser exited:", s.browserURL)
	_ = s.Close()
}

func (s *Server) shutdown() {
	s.lock.Lock()
	s.stopping = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.lock.Unlock()

	_ = s.srv.Close()

	for _, c := range conns {
		_ = c.Close()
	}
	s.wg.Wait()

	s.browser.Kill()
	s.browser.Cleanup()

	s.logger.Println("[server] Closed:", s.WSEndpoint())
	close(s.closed)
}

// track a connection handler, returns false if the server is stopping
func (s *Server) track() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopping {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) addConns(list ...*websocket.Conn) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopping {
		return false
	}
	for _, c := range list {
		s.conns[c] = utils.Nil{}
	}
	return true
}

func (s *Server) removeConns(list ...*websocket.Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, c := range list {
		delete(s.conns, c)
	}
}

func normalizeWSPath(p string) string {
	if p == "" {
		return "/" + utils.RandString(16)
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
