//go:build windows
// +build windows

package launcher

func runReaper() {}
