package upload

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	stampLayout = "20060102150405"
	defaultExt  = "png"
)

// BuildFilename names the uploaded file. With useOriginal and a non-empty
// name the name is used verbatim; otherwise it is prefix, the UTC timestamp
// and the lower-cased extension of name (png when there is none).
func BuildFilename(prefix string, useOriginal bool, name string, now time.Time) string {
	if useOriginal && name != "" {
		return name
	}
	return prefix + now.UTC().Format(stampLayout) + "." + extension(name)
}

func extension(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return defaultExt
	}
	return strings.ToLower(ext)
}
