//go:build !windows && !unix

package fsutils

import (
	"os"
	"path/filepath"
	"strings"
)

func AppDataDir(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	appData := filepath.Join(configDir, strings.ToLower(appName))
	return appData, os.MkdirAll(appData, 0755)
}
