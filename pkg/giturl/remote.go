// Package giturl parses git remote URLs into host and repository path.
package giturl

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultHosts are the remotes treated as GitHub.
var DefaultHosts = []string{"github.com", "ssh.github.com", "www.github.com"}

// Remote is a parsed git remote.
type Remote struct {
	Scheme   string
	HostPort string
	Host     string
	Owner    string
	Name     string
}

// FullName returns "owner/name".
func (r Remote) FullName() string {
	return r.Owner + "/" + r.Name
}

// OnHost reports whether the remote's host matches any pattern. Patterns
// may be exact hosts, "*.example.com" or ".example.com".
func (r Remote) OnHost(patterns []string) bool {
	for _, pat := range patterns {
		if hostMatchesPattern(pat, r.Host) {
			return true
		}
	}
	return false
}

// Parse accepts URL-style remotes (https://, ssh://, git://) and scp-style
// remotes ([user@]host:owner/repo.git).
func Parse(raw string) (Remote, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Remote{}, fmt.Errorf("git URL is empty")
	}

	var remote Remote
	var repoPath string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Remote{}, fmt.Errorf("invalid git URL: %w", err)
		}
		scheme := strings.ToLower(strings.TrimSpace(u.Scheme))
		if scheme == "" {
			return Remote{}, fmt.Errorf("git URL scheme is required")
		}
		hostPort := strings.TrimSpace(u.Host)
		host := strings.TrimSpace(hostnameFromHostPort(hostPort))
		if scheme != "file" && host == "" {
			return Remote{}, fmt.Errorf("git URL host is required for scheme %q", scheme)
		}
		remote = Remote{Scheme: scheme, HostPort: hostPort, Host: strings.ToLower(host)}
		repoPath = u.Path
	} else {
		// scp-style: [user@]host:org/repo(.git)
		colon := strings.Index(raw, ":")
		if colon <= 0 || colon >= len(raw)-1 {
			return Remote{}, fmt.Errorf("invalid git URL")
		}
		hostPart := strings.TrimSpace(raw[:colon])
		pathPart := strings.TrimSpace(raw[colon+1:])
		if hostPart == "" || pathPart == "" {
			return Remote{}, fmt.Errorf("invalid git URL")
		}
		if strings.ContainsAny(hostPart, "/\\") || strings.ContainsAny(raw, " \t\r\n") {
			return Remote{}, fmt.Errorf("invalid git URL")
		}
		if idx := strings.LastIndex(hostPart, "@"); idx >= 0 {
			hostPart = hostPart[idx+1:]
		}
		host := strings.TrimSpace(hostnameFromHostPort(hostPart))
		if host == "" {
			return Remote{}, fmt.Errorf("git URL host is required")
		}
		remote = Remote{Scheme: "ssh", HostPort: hostPart, Host: strings.ToLower(host)}
		repoPath = pathPart
	}

	owner, name, err := splitRepoPath(repoPath)
	if err != nil {
		return Remote{}, err
	}
	remote.Owner, remote.Name = owner, name
	return remote, nil
}

func splitRepoPath(p string) (string, string, error) {
	p = strings.Trim(strings.TrimSpace(p), "/")
	p = strings.TrimSuffix(p, ".git")
	parts := strings.Split(p, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("git URL path %q has no owner/repository", p)
	}
	owner, name := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("git URL path %q has no owner/repository", p)
	}
	return owner, name, nil
}

func hostnameFromHostPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.TrimSpace(host)
	}
	if strings.HasPrefix(hostport, "[") && strings.HasSuffix(hostport, "]") {
		return strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
	}
	return hostport
}

func hostMatchesPattern(pattern string, host string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	if pattern == "*" {
		return true
	}

	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}

	pattern = hostnameFromHostPort(pattern)
	host = hostnameFromHostPort(host)
	if pattern == "" || host == "" {
		return false
	}

	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*")
		if !strings.HasSuffix(host, suffix) {
			return false
		}
		trimmed := strings.TrimPrefix(suffix, ".")
		return host != trimmed
	}

	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(host, pattern)
	}

	return host == pattern
}
