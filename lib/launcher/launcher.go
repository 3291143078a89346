package launcher

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-rod/launch-server/lib/defaults"
	"github.com/go-rod/launch-server/lib/launcher/flags"
	"github.com/go-rod/launch-server/lib/utils"
	"github.com/ysmood/kit"
	"github.com/ysmood/leakless"
)

// DefaultUserDataDirPrefix ...
var DefaultUserDataDirPrefix = filepath.Join(os.TempDir(), "rod", "user-data")

var inContainer = utils.InContainer

// ErrAlreadyLaunched is returned when Launch is called more than once on the same Launcher
var ErrAlreadyLaunched = errors.New("[launcher] already launched")

// Launcher is a helper to launch browser binary smartly
type Launcher struct {
	Flags map[flags.Flag][]string `json:"flags"`

	ctx       context.Context
	ctxCancel func()

	bin     string
	browser *Browser
	logger  io.Writer

	lock     sync.Mutex
	launched bool
	started  bool
	pid      int
	exit     chan utils.Nil
}

// New returns the default arguments to start browser.
// "--" is optional, with or without it won't affect the result.
// List of switches: https://peter.sh/experiments/chromium-command-line-switches/
func New() *Launcher {
	dir := defaults.Dir
	if dir == "" {
		dir = filepath.Join(DefaultUserDataDirPrefix, kit.RandString(8))
	}

	defaultFlags := map[flags.Flag][]string{
		flags.UserDataDir: {dir},

		// use random port by default
		flags.RemoteDebuggingPort: {defaults.Port},

		// enable headless by default
		flags.Headless: nil,

		// to prevent welcome page
		flags.Arguments: {"about:blank"},

		// kill the browser when the launcher process exits
		flags.Leakless: nil,

		"disable-background-networking":                      nil,
		"disable-background-timer-throttling":                nil,
		"disable-backgrounding-occluded-windows":             nil,
		"disable-breakpad":                                   nil,
		"disable-client-side-phishing-detection":             nil,
		"disable-component-extensions-with-background-pages": nil,
		"disable-default-apps":                               nil,
		"disable-dev-shm-usage":                              nil,
		"disable-features":                                   {"site-per-process", "TranslateUI"},
		"disable-hang-monitor":                               nil,
		"disable-ipc-flooding-protection":                    nil,
		"disable-popup-blocking":                             nil,
		"disable-prompt-on-repost":                           nil,
		"disable-renderer-backgrounding":                     nil,
		"disable-sync":                                       nil,
		"enable-automation":                                  nil,
		"enable-features":                                    {"NetworkService", "NetworkServiceInProcess"},
		"force-color-profile":                                {"srgb"},
		"metrics-recording-only":                             nil,
		"no-first-run":                                       nil,
		"use-mock-keychain":                                  nil,
	}

	if defaults.Show {
		delete(defaultFlags, flags.Headless)
	}

	if defaults.Proxy != "" {
		defaultFlags[flags.ProxyServer] = []string{defaults.Proxy}
	}

	if defaults.Keep {
		defaultFlags[flags.KeepUserDataDir] = nil
	}

	if inContainer {
		defaultFlags[flags.NoSandbox] = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Launcher{
		ctx:       ctx,
		ctxCancel: cancel,
		Flags:     defaultFlags,
		bin:       defaults.Bin,
		browser:   NewBrowser(),
		logger:    ioutil.Discard,
		exit:      make(chan utils.Nil),
	}
}

// Context sets the context. Cancel it will stop the launch.
func (l *Launcher) Context(ctx context.Context) *Launcher {
	ctx, cancel := context.WithCancel(ctx)
	l.ctx = ctx
	l.ctxCancel = cancel
	return l
}

// Get flag's first value
func (l *Launcher) Get(name flags.Flag) string {
	if list, has := l.GetFlags(name); has && len(list) > 0 {
		return list[0]
	}
	return ""
}

// Has flag or not
func (l *Launcher) Has(name flags.Flag) bool {
	_, has := l.GetFlags(name)
	return has
}

// GetFlags from settings
func (l *Launcher) GetFlags(name flags.Flag) ([]string, bool) {
	flag, has := l.Flags[name.NormalizeFlag()]
	return flag, has
}

// Set a command line argument to launch the browser.
func (l *Launcher) Set(name flags.Flag, values ...string) *Launcher {
	name.Check()
	l.Flags[name.NormalizeFlag()] = values
	return l
}

// Append values to the flag
func (l *Launcher) Append(name flags.Flag, values ...string) *Launcher {
	list, has := l.GetFlags(name)
	if !has {
		list = []string{}
	}
	return l.Set(name, append(list, values...)...)
}

// Delete a flag
func (l *Launcher) Delete(name flags.Flag) *Launcher {
	delete(l.Flags, name.NormalizeFlag())
	return l
}

// Bin set browser executable file path. If it's empty, launcher will automatically search or download the bin.
func (l *Launcher) Bin(path string) *Launcher {
	l.bin = path
	return l
}

// Headless switch. Whether to run browser in headless mode. A mode without visible UI.
func (l *Launcher) Headless(enable bool) *Launcher {
	if enable {
		return l.Set(flags.Headless)
	}
	return l.Delete(flags.Headless)
}

// NoSandbox switch. Whether to run browser in no-sandbox mode.
func (l *Launcher) NoSandbox(enable bool) *Launcher {
	if enable {
		return l.Set(flags.NoSandbox)
	}
	return l.Delete(flags.NoSandbox)
}

// Leakless switch. If enabled, the browser will be force killed after the Go process exits.
func (l *Launcher) Leakless(enable bool) *Launcher {
	if enable {
		return l.Set(flags.Leakless)
	}
	return l.Delete(flags.Leakless)
}

// UserDataDir is where the browser will look for all of its state, such as cookie and cache.
// When set to empty, browser will use current OS home dir.
func (l *Launcher) UserDataDir(dir string) *Launcher {
	if dir == "" {
		return l.Delete(flags.UserDataDir)
	}
	return l.Set(flags.UserDataDir, dir)
}

// KeepUserDataDir after the browser is closed. By default user-data-dir will be removed.
func (l *Launcher) KeepUserDataDir() *Launcher {
	return l.Set(flags.KeepUserDataDir)
}

// RemoteDebuggingPort to launch the browser. Zero for a random port.
func (l *Launcher) RemoteDebuggingPort(port int) *Launcher {
	return l.Set(flags.RemoteDebuggingPort, strconv.FormatInt(int64(port), 10))
}

// Proxy for the browser
func (l *Launcher) Proxy(host string) *Launcher {
	return l.Set(flags.ProxyServer, host)
}

// Logger to handle stdout and stderr from browser.
// For example, pipe all browser output to stdout: launcher.New().Logger(os.Stdout)
func (l *Launcher) Logger(w io.Writer) *Launcher {
	l.logger = w
	l.browser.Logger = w
	return l
}

// FormatArgs returns the formatted arg list for cli
func (l *Launcher) FormatArgs() []string {
	names := []string{}
	for k := range l.Flags {
		if k == flags.Arguments || k.IsPrivate() {
			continue
		}
		names = append(names, string(k))
	}
	sort.Strings(names)

	execArgs := []string{}
	for _, k := range names {
		v := l.Flags[flags.Flag(k)]

		// fix a bug of chrome, if path is not absolute chrome will hang
		if flags.Flag(k) == flags.UserDataDir && len(v) > 0 {
			abs, err := filepath.Abs(v[0])
			utils.E(err)
			v = []string{abs}
		}

		str := "--" + k
		if v != nil {
			str += "=" + strings.Join(v, ",")
		}
		execArgs = append(execArgs, str)
	}
	return append(execArgs, l.Flags[flags.Arguments]...)
}

// MustLaunch is similar to Launch
func (l *Launcher) MustLaunch() string {
	u, err := l.Launch()
	utils.E(err)
	return u
}

// Launch a standalone temp browser instance and returns the debug url.
// If you want to reuse sessions, such as cookies, set the UserDataDir to the same location.
func (l *Launcher) Launch() (string, error) {
	l.lock.Lock()
	if l.launched {
		l.lock.Unlock()
		return "", ErrAlreadyLaunched
	}
	l.launched = true
	l.lock.Unlock()

	defer l.ctxCancel()

	runReaper()

	bin, err := l.getBin()
	if err != nil {
		return "", err
	}

	var ll *leakless.Launcher
	var cmd *exec.Cmd

	if l.Has(flags.Leakless) && leakless.Support() {
		ll = leakless.New()
		cmd = ll.Command(bin, l.FormatArgs()...)
	} else {
		cmd = exec.Command(bin, l.FormatArgs()...)
		l.osSetupCmd(cmd)
	}

	parser := NewURLParser()
	w := io.MultiWriter(parser, l.logger)
	cmd.Stdout = w
	cmd.Stderr = w

	err = cmd.Start()
	if err != nil {
		return "", err
	}

	l.lock.Lock()
	l.started = true
	l.pid = cmd.Process.Pid
	l.lock.Unlock()

	go func() {
		_ = cmd.Wait()
		close(l.exit)
	}()

	if ll != nil {
		select {
		case <-l.ctx.Done():
			l.Kill()
			return "", l.ctx.Err()
		case <-l.exit:
			return "", parser.Err()
		case pid := <-ll.Pid():
			l.lock.Lock()
			l.pid = pid
			l.lock.Unlock()
			if ll.Err() != "" {
				return "", errors.New(ll.Err())
			}
		}
	}

	select {
	case <-l.ctx.Done():
		l.Kill()
		return "", l.ctx.Err()
	case <-l.exit:
		return "", parser.Err()
	case u := <-parser.URL:
		return ResolveURL(l.ctx, u)
	}
}

func (l *Launcher) getBin() (string, error) {
	if l.bin != "" {
		return l.bin, nil
	}

	l.browser.Context = l.ctx
	return l.browser.Get()
}

// PID returns the browser process pid
func (l *Launcher) PID() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.pid
}

// Exit is closed when the browser process exits. It never closes if the browser isn't started.
func (l *Launcher) Exit() <-chan utils.Nil {
	return l.exit
}

// Kill the browser process and its sub processes
func (l *Launcher) Kill() {
	pid := l.PID()
	if pid == 0 {
		return
	}

	killGroup(pid)

	p, err := os.FindProcess(pid)
	if err == nil {
		_ = p.Kill()
	}
}

// Cleanup waits until the browser process exits and removes the user-data-dir.
// It returns immediately if the browser was never started.
func (l *Launcher) Cleanup() {
	l.lock.Lock()
	started := l.started
	l.lock.Unlock()

	if started {
		<-l.exit
	}

	if l.Has(flags.KeepUserDataDir) {
		return
	}

	dir := l.Get(flags.UserDataDir)
	if dir != "" {
		_ = os.RemoveAll(dir)
	}
}
