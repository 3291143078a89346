// Package config loads the launch configuration of the server from the command line args and
// the ws path file. The result is built once and passed explicitly to the launch step.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-rod/launch-server/lib/utils"
)

const (
	// DefaultHost binds all the interfaces
	DefaultHost = "0.0.0.0"

	// DefaultPort of the server
	DefaultPort = 9323

	// WSPathFileName is the name of the file next to the executable that holds the ws path
	WSPathFileName = "ws_path.txt"

	hostPrefix = "--host="
	portPrefix = "--port="
)

// ErrInvalidPort is returned when the value of "--port=" is not a valid tcp port
var ErrInvalidPort = errors.New("invalid port")

// Config to launch the server
type Config struct {
	Host string
	Port int

	// WSPath is empty if it's absent
	WSPath string
}

// ParseArgs scans the args for "--host=" and "--port=", the first match of each wins.
// Other args are ignored. An empty value is treated as absent.
func ParseArgs(args []string) (host string, port int, err error) {
	host = DefaultHost
	port = DefaultPort

	var hostFound, portFound bool
	for _, arg := range args {
		switch {
		case !hostFound && strings.HasPrefix(arg, hostPrefix):
			hostFound = true
			if v := strings.TrimPrefix(arg, hostPrefix); v != "" {
				host = v
			}

		case !portFound && strings.HasPrefix(arg, portPrefix):
			portFound = true
			v := strings.TrimPrefix(arg, portPrefix)
			if v == "" {
				continue
			}
			port, err = parsePort(v)
			if err != nil {
				return "", 0, err
			}
		}
	}

	return
}

func parsePort(v string) (int, error) {
	p, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPort, v)
	}
	if p < 0 || p > 65535 {
		return 0, fmt.Errorf("%w: %d is out of range [0, 65535]", ErrInvalidPort, p)
	}
	return p, nil
}

// ReadWSPath reads the trimmed ws path from the file. If the file doesn't exist or is blank,
// an empty string will be returned.
func ReadWSPath(file string) (string, error) {
	p, _, err := utils.ReadTrimmed(file)
	if err != nil {
		return "", fmt.Errorf("failed to read the ws path from %s: %w", file, err)
	}
	return p, nil
}

// DefaultWSPathFile is the WSPathFileName in the same dir of the executable
func DefaultWSPathFile() string {
	exe, err := os.Executable()
	if err != nil {
		return WSPathFileName
	}
	return filepath.Join(filepath.Dir(exe), WSPathFileName)
}

// Load the config from the args and the ws path file
func Load(args []string, wsPathFile string) (Config, error) {
	host, port, err := ParseArgs(args)
	if err != nil {
		return Config{}, err
	}

	p, err := ReadWSPath(wsPathFile)
	if err != nil {
		return Config{}, err
	}

	return Config{Host: host, Port: port, WSPath: p}, nil
}
