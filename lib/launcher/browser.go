package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/go-rod/launch-server/lib/utils"
	"github.com/ysmood/kit"
)

// Host formats a revision number to a downloadable URL for the browser.
type Host func(revision int) string

var hostConf = map[string]struct {
	urlPrefix string
	zipName   string
}{
	"darwin":  {"Mac", "chrome-mac.zip"},
	"linux":   {"Linux_x64", "chrome-linux.zip"},
	"windows": {"Win", "chrome-win.zip"},
}[runtime.GOOS]

// HostGoogle to download browser
func HostGoogle(revision int) string {
	return fmt.Sprintf(
		"https://storage.googleapis.com/chromium-browser-snapshots/%s/%d/%s",
		hostConf.urlPrefix,
		revision,
		hostConf.zipName,
	)
}

// HostNPM to download browser
func HostNPM(revision int) string {
	return fmt.Sprintf(
		"https://registry.npmmirror.com/-/binary/chromium-browser-snapshots/%s/%d/%s",
		hostConf.urlPrefix,
		revision,
		hostConf.zipName,
	)
}

// DefaultRevision for the browser
const DefaultRevision = 848005

// Browser is a helper to download browser smartly
type Browser struct {
	Context context.Context

	// Hosts are the candidates to download the browser.
	Hosts []Host

	// Revision of the browser to use
	Revision int

	// Dir to download browser.
	Dir string

	// Log to print output
	Logger io.Writer

	// ExecSearchMap is the list of executables to search on each OS before downloading.
	ExecSearchMap map[string][]string
}

// NewBrowser with default values
func NewBrowser() *Browser {
	return &Browser{
		Context:  context.Background(),
		Revision: DefaultRevision,
		Hosts:    []Host{HostGoogle, HostNPM},
		Dir:      filepath.Join(os.TempDir(), "rod", "browser"),
		Logger:   os.Stderr,
		ExecSearchMap: map[string][]string{
			"darwin": {
				"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
				"/Applications/Chromium.app/Contents/MacOS/Chromium",
			},
			"linux": {
				"chromium",
				"chromium-browser",
				"google-chrome",
				"/usr/bin/google-chrome",
			},
			"windows": append([]string{"chrome", "edge"}, expandWindowsExePaths(
				`Google\Chrome\Application\chrome.exe`,
				`Microsoft\Edge\Application\msedge.exe`,
			)...),
		},
	}
}

// Destination of the downloaded browser executable
func (lc *Browser) Destination() string {
	bin := map[string]string{
		"darwin":  "chrome-mac/Chromium.app/Contents/MacOS/Chromium",
		"linux":   "chrome-linux/chrome",
		"windows": "chrome-win/chrome.exe",
	}[runtime.GOOS]

	return filepath.Join(lc.Dir, fmt.Sprintf("chromium-%d", lc.Revision), bin)
}

// Download browser from the Hosts in order, the first one succeeds wins.
func (lc *Browser) Download() error {
	if len(lc.Hosts) == 0 {
		return errors.New("[launcher] no host to download the browser")
	}

	var errs []error
	for _, host := range lc.Hosts {
		err := lc.download(host(lc.Revision))
		if err == nil {
			return nil
		}
		_, _ = fmt.Fprintln(lc.Logger, "[launcher]", err)
		errs = append(errs, err)
	}
	return fmt.Errorf("[launcher] failed to download the browser: %v", errs)
}

func (lc *Browser) download(u string) error {
	_, _ = fmt.Fprintln(lc.Logger, "[launcher] Download:", u)

	err := utils.Mkdir(lc.Dir)
	if err != nil {
		return err
	}

	zipPath := filepath.Join(lc.Dir, fmt.Sprintf("chromium-%d.zip", lc.Revision))
	defer func() { _ = os.Remove(zipPath) }()

	zipFile, err := os.OpenFile(zipPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0664)
	if err != nil {
		return err
	}
	defer func() { _ = zipFile.Close() }()

	res, err := kit.Req(u).Context(lc.Context).Client(&http.Client{
		Transport: &http.Transport{
			DisableKeepAlives: true,
			IdleConnTimeout:   30 * time.Second,
		},
	}).Response()
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 400 {
		return fmt.Errorf("failed to download the browser: %s %s", res.Status, u)
	}

	size, _ := strconv.ParseInt(res.Header.Get("Content-Length"), 10, 64)

	progress := &progresser{
		size:   int(size),
		r:      res.Body,
		logger: lc.Logger,
	}

	_, err = io.Copy(zipFile, progress)
	if err != nil {
		return err
	}

	err = zipFile.Close()
	if err != nil {
		return err
	}

	unzipPath := filepath.Join(lc.Dir, fmt.Sprintf("chromium-%d", lc.Revision))
	_ = os.RemoveAll(unzipPath)
	return unzip(lc.Logger, zipPath, unzipPath)
}

// Get is a smart helper to get the browser executable path.
// It will first try to find the browser from local disk, if not exists
// it will try to download the chromium to Dir.
func (lc *Browser) Get() (string, error) {
	if p, has := lc.LookPath(); has {
		return p, nil
	}

	return lc.Destination(), lc.Download()
}

// MustGet is similar with Get
func (lc *Browser) MustGet() string {
	p, err := lc.Get()
	utils.E(err)
	return p
}

// LookPath searches the ExecSearchMap and the Destination for a usable browser executable.
func (lc *Browser) LookPath() (found string, has bool) {
	list := append(append([]string{}, lc.ExecSearchMap[runtime.GOOS]...), lc.Destination())

	for _, path := range list {
		var err error
		found, err = exec.LookPath(path)
		if err == nil {
			return found, true
		}
	}

	return "", false
}

func expandWindowsExePaths(list ...string) []string {
	newList := []string{}
	for _, p := range list {
		newList = append(
			newList,
			filepath.Join(os.Getenv("ProgramFiles"), p),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), p),
			filepath.Join(os.Getenv("LocalAppData"), p),
		)
	}

	return newList
}
