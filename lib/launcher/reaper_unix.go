//go:build !windows
// +build !windows

package launcher

import (
	"os"
	"sync"

	"github.com/ramr/go-reaper"
)

var reaperOnce sync.Once

// runReaper cleans up the zombie browser processes, it only runs when the current process is pid 1,
// such as inside a docker container.
func runReaper() {
	reaperOnce.Do(func() {
		if os.Getpid() == 1 {
			go reaper.Reap()
		}
	})
}
