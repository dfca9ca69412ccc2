package httputil

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

// validIDPattern matches alphanumeric IDs with hyphens and slashes (provider content IDs).
var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9/_-]+$`)

// ValidateURL checks that a URL is well-formed and uses HTTPS. Plain HTTP is
// only accepted for loopback hosts, which is where the segment proxy listens.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if IsLoopback(u.Hostname()) {
			return nil
		}
		return fmt.Errorf("plain HTTP is only allowed for loopback hosts, got %q", u.Hostname())
	default:
		return fmt.Errorf("only HTTPS URLs are allowed, got %q", u.Scheme)
	}
}

// IsLoopback reports whether host names the local machine.
func IsLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidateID checks that a provider content ID contains only safe characters.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if len(id) > 256 {
		return fmt.Errorf("ID too long: %d characters", len(id))
	}
	if !validIDPattern.MatchString(id) {
		return fmt.Errorf("ID contains invalid characters: %q", id)
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("ID contains path traversal: %q", id)
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	"..", "_",
	"/", "_",
	"\\", "_",
	"\x00", "",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizeFilename strips directory components and characters that are
// unsafe on common filesystems.
func SanitizeFilename(name string) string {
	name = filenameReplacer.Replace(filepath.Base(name))
	if name == "" || name == "." || name == ".." {
		return "untitled"
	}
	return name
}

// SafePath joins dir and a sanitized filename, refusing results that escape dir.
func SafePath(dir, filename string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	resolved, err := filepath.Abs(filepath.Join(absDir, SanitizeFilename(filename)))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	if !strings.HasPrefix(resolved, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", resolved, absDir)
	}

	return resolved, nil
}

// EncodeQuery encodes a search query for FlixHQ-style search paths,
// which expect hyphen-separated words (e.g., /search/star-wars).
func EncodeQuery(query string) string {
	return url.PathEscape(strings.Join(strings.Fields(query), "-"))
}
