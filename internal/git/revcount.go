package git

import (
	"strings"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CountRange counts the commits in an "A..B" range: reachable from B but
// not from A. Used for ahead/behind counts against the upstream.
func (r *Repo) CountRange(rangeSpec string) (int, error) {
	from, to, ok := strings.Cut(rangeSpec, "..")
	if !ok {
		return 0, errors.Errorf("invalid range %q", rangeSpec)
	}

	fromHash, err := r.gg.ResolveRevision(plumbing.Revision(from))
	if err != nil {
		return 0, errors.WrapIff(err, "failed to resolve %q", from)
	}
	toHash, err := r.gg.ResolveRevision(plumbing.Revision(to))
	if err != nil {
		return 0, errors.WrapIff(err, "failed to resolve %q", to)
	}
	if *fromHash == *toHash {
		return 0, nil
	}

	fromCommit, err := r.gg.CommitObject(*fromHash)
	if err != nil {
		return 0, errors.WrapIff(err, "failed to look up commit %s", fromHash)
	}
	excluded := map[plumbing.Hash]bool{}
	err = object.NewCommitPreorderIter(fromCommit, nil, nil).
		ForEach(func(c *object.Commit) error {
			excluded[c.Hash] = true
			return nil
		})
	if err != nil {
		return 0, errors.WrapIff(err, "failed to walk ancestors of %q", from)
	}

	toCommit, err := r.gg.CommitObject(*toHash)
	if err != nil {
		return 0, errors.WrapIff(err, "failed to look up commit %s", toHash)
	}
	count := 0
	err = object.NewCommitPreorderIter(toCommit, excluded, nil).
		ForEach(func(c *object.Commit) error {
			count++
			return nil
		})
	if err != nil {
		return 0, errors.WrapIff(err, "failed to walk %q", rangeSpec)
	}
	return count, nil
}
