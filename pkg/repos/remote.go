package repos

import (
	"fmt"

	"github.com/go-git/go-git/v5"

	"github.com/odvcencio/vulnpilot/pkg/giturl"
)

// DefaultRemote is the remote consulted by DetectRemote.
const DefaultRemote = "origin"

// DetectRemote finds the git repository containing dir and returns the
// owner and name of its origin remote. hosts limits which remote hosts are
// accepted; nil means giturl.DefaultHosts.
func DetectRemote(dir string, hosts []string) (owner, name string, err error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("not a git repository: %w", err)
	}
	remote, err := repo.Remote(DefaultRemote)
	if err != nil {
		return "", "", fmt.Errorf("get remote %q: %w", DefaultRemote, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", "", fmt.Errorf("remote %q has no URL", DefaultRemote)
	}

	parsed, err := giturl.Parse(urls[0])
	if err != nil {
		return "", "", err
	}
	if hosts == nil {
		hosts = giturl.DefaultHosts
	}
	if !parsed.OnHost(hosts) {
		return "", "", fmt.Errorf("remote %q points at %s, not a GitHub host", DefaultRemote, parsed.Host)
	}
	return parsed.Owner, parsed.Name, nil
}
