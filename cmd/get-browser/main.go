// Find the browser for the launch-server, download it if not found, then print its executable path.
// It's handy to prepare the browser before the launch-server starts, such as in a docker build.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/go-rod/launch-server/lib/launcher"
	"github.com/go-rod/launch-server/lib/utils"
)

var (
	revision = flag.Int("revision", launcher.DefaultRevision, "the chromium revision to download")
	dir      = flag.String("dir", "", "the dir to store the browser, default is the same as the launch-server")
	quiet    = flag.Bool("quiet", false, "silence the download progress")
)

func main() {
	flag.Parse()

	b := launcher.NewBrowser()
	b.Revision = *revision
	if *dir != "" {
		b.Dir = *dir
	}
	if *quiet {
		b.Logger = ioutil.Discard
	} else {
		b.Logger = os.Stderr
	}

	p, err := b.Get()
	utils.E(err)

	fmt.Println(p)
}
