// Package web holds the monitor page. The page is compiled into the binary.
// Setting EMUCORE_MONITOR_DEV to a true value serves it from this package's
// source directory instead, so edits show up on reload.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pion/logging"

	"github.com/sarchlab/emucore/logs"
)

//go:embed dist
var dist embed.FS

// DevModeEnv names the variable that switches the monitor to the page in the
// source tree.
const DevModeEnv = "EMUCORE_MONITOR_DEV"

// Assets returns the files of the monitor page.
func Assets(log logging.LeveledLogger) http.FileSystem {
	if devMode() {
		if dir, ok := sourceDir(); ok {
			if log == nil {
				log = logs.Discard().NewLogger(logs.ScopeMonitor)
			}

			log.Infof("serving the monitor page from %s", dir)

			return http.Dir(dir)
		}
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

// devMode accepts whatever strconv.ParseBool reads as true.
func devMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevModeEnv))
	return err == nil && on
}

// sourceDir is the dist directory next to this file. It only exists on the
// machine that built the binary.
func sourceDir() (string, bool) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}

	return filepath.Join(filepath.Dir(file), "dist"), true
}
