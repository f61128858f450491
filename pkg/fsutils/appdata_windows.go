//go:build windows

package fsutils

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// AppDataDir returns the roaming AppData directory of appName, creating it
// when missing.
func AppDataDir(appName string) (string, error) {
	appData, err := windows.KnownFolderPath(windows.FOLDERID_RoamingAppData, 0)
	if err != nil {
		return "", err
	}

	appData = filepath.Join(appData, appName)
	return appData, os.MkdirAll(appData, 0755)
}
