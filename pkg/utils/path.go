package utils

import (
	"errors"
	"strings"
)

// ValidatePathComponent checks that an identifier taken from remote data can
// be embedded in a local file name. It must be non-empty and free of path
// separators and "..".
func ValidatePathComponent(identifier string) error {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return errors.New("identifier is required and must be a non-empty string")
	}
	if strings.ContainsAny(trimmed, "/\\") || strings.Contains(trimmed, "..") {
		return errors.New("identifier must not contain path separators or '..'")
	}
	return nil
}

// ExtFromURL returns the lowercase extension of the last path segment of
// rawURL, without the dot, or fallback when there is none.
func ExtFromURL(rawURL, fallback string) string {
	path := rawURL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	i := strings.LastIndex(path, ".")
	if i < 0 || i == len(path)-1 {
		return fallback
	}
	ext := strings.ToLower(path[i+1:])
	if len(ext) > 5 || strings.ContainsAny(ext, "/\\") {
		return fallback
	}
	return ext
}
