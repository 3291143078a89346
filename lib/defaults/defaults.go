// Package defaults holds the browser launch options parsed from env var "rod".
// Set them will set the default value of options used by the launcher.
// Each value is separated by a ",", key and value are separated by "=",
// For example:
//
//    rod=show,trace
//
//    rod=bin=/usr/bin/chromium,dir=/tmp/profile,port=9222,proxy=localhost:8080,keep
//
package defaults

import (
	"os"
	"strings"
)

// Show is the default of launcher.Launcher.Headless
var Show bool

// Trace enables the debug level of the launch-server logs
var Trace bool

// Dir is the default of launcher.Launcher.UserDataDir
var Dir string

// Port is the default of launcher.Launcher.RemoteDebuggingPort
var Port string

// Bin is the default of launcher.Launcher.Bin
var Bin string

// Proxy is the default of launcher.Launcher.Proxy
var Proxy string

// Keep is the default of launcher.Launcher.KeepUserDataDir
var Keep bool

// EnvName of the env var that holds the options
const EnvName = "rod"

// Parse the flags
func init() {
	ResetWithEnv()
}

// Reset all flags to their init values.
func Reset() {
	Show = false
	Trace = false
	Dir = ""
	Port = "0"
	Bin = ""
	Proxy = ""
	Keep = false
}

// ResetWithEnv all flags by the value of the rod env var.
func ResetWithEnv() {
	ResetWith(os.Getenv(EnvName))
}

// ResetWith all flags by the options string.
func ResetWith(options string) {
	Reset()
	parse(options)
}

// parse options and set them globally
func parse(options string) {
	if options == "" {
		return
	}

	for _, f := range strings.Split(options, ",") {
		kv := strings.SplitN(f, "=", 2)
		rule, has := rules[kv[0]]
		if !has {
			panic("no such rod option: " + kv[0])
		}
		if len(kv) == 2 {
			rule(kv[1])
		} else {
			rule("")
		}
	}
}

var rules = map[string]func(string){
	"show": func(string) {
		Show = true
	},
	"trace": func(string) {
		Trace = true
	},
	"dir": func(v string) {
		Dir = v
	},
	"port": func(v string) {
		Port = v
	},
	"bin": func(v string) {
		Bin = v
	},
	"proxy": func(v string) {
		Proxy = v
	},
	"keep": func(string) {
		Keep = true
	},
}
