// Package giturl parses remote repository URLs and keeps credentials out of
// anything that gets printed.
package giturl

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrUnsupportedURL = errors.New("unsupported remote URL")
	ErrHostNotAllowed = errors.New("remote host is not allowed")
)

// scp-like syntax, e.g. git@gitlab.com:owner/repo.git
var scpLikePattern = regexp.MustCompile(`^(?:[A-Za-z0-9._~-]+@)?([A-Za-z0-9.-]+):/?([^/].*)$`)

var defaultPorts = map[string]string{"https": "443", "http": "80"}

var credentialPattern = regexp.MustCompile(`(://[^/@\s:]+:)[^@\s/]+@`)

// Parse decomposes a remote URL into its https origin form (scheme, host and
// path only). When allowedHostnames is non-empty the host must match one of
// them, compared case-insensitively.
//
// Clone URLs always use the default port of their scheme. An http(s) URL
// naming any other port is rejected; ssh ports are dropped since the URL is
// rewritten to https.
func Parse(raw string, allowedHostnames ...string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty URL", ErrUnsupportedURL)
	}

	var scheme, host, path string
	if strings.Contains(trimmed, "://") {
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
		}

		switch strings.ToLower(parsed.Scheme) {
		case "https", "http":
			scheme = strings.ToLower(parsed.Scheme)
			if port := parsed.Port(); port != "" && port != defaultPorts[scheme] {
				return nil, fmt.Errorf("%w: non-default port %s", ErrUnsupportedURL, port)
			}
		case "ssh", "git+ssh", "git+https":
			scheme = "https"
		default:
			return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, parsed.Scheme)
		}

		host = parsed.Hostname()
		path = parsed.Path
	} else {
		match := scpLikePattern.FindStringSubmatch(trimmed)
		if match == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, Redact(trimmed))
		}

		scheme = "https"
		host = match[1]
		path = match[2]
	}

	host = strings.ToLower(host)
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrUnsupportedURL)
	}

	segments := make([]string, 0, 4)
	for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
		if segment == "" {
			continue
		}
		if segment == "." || segment == ".." {
			return nil, fmt.Errorf("%w: relative path segment", ErrUnsupportedURL)
		}
		segments = append(segments, segment)
	}

	if len(segments) < 2 {
		return nil, fmt.Errorf("%w: expected <owner>/<repo> path", ErrUnsupportedURL)
	}

	if len(allowedHostnames) > 0 && !hostAllowed(host, allowedHostnames) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}

	return &url.URL{Scheme: scheme, Host: host, Path: "/" + strings.Join(segments, "/")}, nil
}

// Host returns the lowercase host of a remote URL, or the empty string when
// the URL cannot be parsed.
func Host(raw string) string {
	parsed, err := Parse(raw)
	if err != nil {
		return ""
	}

	return parsed.Host
}

// Redact masks the password part of any URL userinfo in s. It works on bare
// URLs as well as on free text such as git stderr output.
func Redact(s string) string {
	if parsed, err := url.Parse(s); err == nil && parsed.User != nil && parsed.Scheme != "" {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			return parsed.Redacted()
		}
	}

	return credentialPattern.ReplaceAllString(s, "${1}xxxxx@")
}

func hostAllowed(host string, allowed []string) bool {
	for _, candidate := range allowed {
		if strings.EqualFold(strings.TrimSpace(candidate), host) {
			return true
		}
	}

	return false
}
