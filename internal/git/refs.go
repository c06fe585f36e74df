package git

import (
	"strings"

	"emperror.dev/errors"
	giturls "github.com/chainguard-dev/git-urls"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const headsPrefix = "refs/heads/"

// Head returns the current HEAD reference: the resolved direct reference
// when it resolves, the symbolic reference itself on an unborn branch, and
// (nil, nil) when the repository has no HEAD at all.
func (r *Repo) Head() (*plumbing.Reference, error) {
	symbolic, err := r.gg.Reference(plumbing.HEAD, false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up HEAD")
	}
	direct, err := r.gg.Reference(plumbing.HEAD, true)
	if err != nil {
		r.log.Debug("empty repo (no resolvable HEAD)")
		return symbolic, nil
	}
	return direct, nil
}

// LocalBranchName extracts the checked-out branch name from a HEAD
// reference. Detached HEAD yields "".
func LocalBranchName(ref *plumbing.Reference) string {
	if ref == nil {
		return ""
	}
	switch ref.Type() {
	case plumbing.HashReference:
		if ref.Name().IsBranch() {
			return ref.Name().Short()
		}
		return ""
	case plumbing.SymbolicReference:
		target := ref.Target().String()
		if !strings.HasPrefix(target, headsPrefix) {
			return ""
		}
		return strings.TrimPrefix(target, headsPrefix)
	}
	return ""
}

// Upstream returns the upstream reference configured for the local branch
// name, or (nil, nil) when there is none (no tracking config, or the
// tracked ref does not exist).
func (r *Repo) Upstream(localBranch string) (*plumbing.Reference, error) {
	if localBranch == "" {
		return nil, nil
	}
	cfg, err := r.gg.Config()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read repository config")
	}
	b, ok := cfg.Branches[localBranch]
	if !ok || b.Merge == "" {
		return nil, nil
	}
	var name plumbing.ReferenceName
	if b.Remote == "" || b.Remote == "." {
		name = b.Merge
	} else {
		name = plumbing.NewRemoteReferenceName(b.Remote, strings.TrimPrefix(b.Merge.String(), headsPrefix))
	}
	ref, err := r.gg.Reference(name, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		// Broken tracking config reads as "no upstream", matching how
		// prompts treat a deleted remote branch.
		r.log.WithError(err).Debugf("failed to resolve upstream %s", name)
		return nil, nil
	}
	// Return the reference under its upstream name; resolution above only
	// validated that it exists.
	return plumbing.NewHashReference(name, ref.Hash()), nil
}

// RemoteName returns the name of the remote the local branch tracks, or "".
func (r *Repo) RemoteName(localBranch string) string {
	cfg, err := r.gg.Config()
	if err != nil {
		return ""
	}
	b, ok := cfg.Branches[localBranch]
	if !ok || b.Remote == "." {
		return ""
	}
	return b.Remote
}

// RemoteBranchName extracts the branch part of an upstream reference,
// e.g. refs/remotes/origin/main -> main. Local upstreams (refs/heads/x)
// yield x.
func RemoteBranchName(upstream *plumbing.Reference) string {
	if upstream == nil {
		return ""
	}
	name := upstream.Name().String()
	if strings.HasPrefix(name, headsPrefix) {
		return strings.TrimPrefix(name, headsPrefix)
	}
	const remotesPrefix = "refs/remotes/"
	if !strings.HasPrefix(name, remotesPrefix) {
		return ""
	}
	rest := strings.TrimPrefix(name, remotesPrefix)
	_, branch, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return branch
}

// RemoteURL returns the fetch URL of the named remote, or "" when the
// remote does not exist or has no URL.
func (r *Repo) RemoteURL(remoteName string) string {
	if remoteName == "" {
		return ""
	}
	remote, err := r.gg.Remote(remoteName)
	if errors.Is(err, gogit.ErrRemoteNotFound) {
		return ""
	}
	if err != nil {
		r.log.WithError(err).Debugf("failed to look up remote %q", remoteName)
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// RemoteSlug derives the host-relative repository slug from a remote URL,
// e.g. git@github.com:my-org/my-repo.git -> my-org/my-repo. Returns "" for
// unparseable URLs.
func RemoteSlug(remoteURL string) string {
	if remoteURL == "" {
		return ""
	}
	u, err := giturls.Parse(remoteURL)
	if err != nil {
		return ""
	}
	slug := strings.TrimSuffix(u.Path, ".git")
	return strings.TrimPrefix(slug, "/")
}
