//go:build unix

package fsutils

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// AppDataDir returns the per-user configuration directory of appName,
// creating it when missing.
func AppDataDir(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	appData := filepath.Join(configDir, strings.ToLower(appName))
	if err = os.MkdirAll(appData, 0755); err != nil {
		return "", err
	}

	// Fail here rather than later when the history database is opened.
	if err = unix.Access(appData, unix.W_OK); err != nil {
		return "", &os.PathError{Op: "access", Path: appData, Err: err}
	}
	return appData, nil
}
