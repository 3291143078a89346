package launcher

import (
	"archive/zip"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/launch-server/lib/utils"
)

type progresser struct {
	size   int
	count  int
	r      io.Reader
	logger io.Writer
	last   time.Time
}

func (p *progresser) Read(b []byte) (n int, err error) {
	n, err = p.r.Read(b)

	if p.count == 0 {
		_, _ = fmt.Fprint(p.logger, "[launcher] Progress:")
	}

	p.count += n

	if p.count == p.size {
		_, _ = fmt.Fprintln(p.logger, " 100%")
		return
	}

	if p.size <= 0 || time.Since(p.last) < time.Second {
		return
	}

	p.last = time.Now()
	_, _ = fmt.Fprintf(p.logger, " %02d%%", p.count*100/p.size)

	return
}

func toHTTP(u url.URL) *url.URL {
	newURL := u
	if newURL.Scheme == "ws" {
		newURL.Scheme = "http"
	} else if newURL.Scheme == "wss" {
		newURL.Scheme = "https"
	}
	return &newURL
}

func unzip(logger io.Writer, from, to string) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = e.(error)
		}
	}()

	_, _ = fmt.Fprintln(logger, "[launcher] Unzip to:", to)

	zr, err := zip.OpenReader(from)
	utils.E(err)
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		p := filepath.Join(to, f.Name)

		_ = utils.Mkdir(filepath.Dir(p))

		if f.FileInfo().IsDir() {
			utils.E(utils.Mkdir(p))
			continue
		}

		r, err := f.Open()
		utils.E(err)

		dst, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC, f.Mode())
		utils.E(err)

		_, err = io.Copy(dst, r)
		utils.E(err)

		utils.E(dst.Close())
		utils.E(r.Close())
	}

	return nil
}
