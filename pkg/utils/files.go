// Package utils contains small file path helpers shared by the commands.
package utils

import (
	"path/filepath"
	"strings"
)

// GetPathInfo returns the cleaned absolute path of relPath and the directory
// containing it.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", err
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// ReplaceExt swaps the extension of path for ext. A path without extension
// gets ext appended.
func ReplaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
