package server

import (
	"fmt"
	"net/url"
	"path/filepath"
)

func uriToPath(uri string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse uri: %w", err)
	}
	if parsed.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q", parsed.Scheme)
	}
	return parsed.Path, nil
}

// pathToURI builds a file URI, resolving tool-reported relative paths
// against the workspace root.
func pathToURI(root, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
