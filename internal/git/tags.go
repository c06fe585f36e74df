package git

import (
	"strings"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/glintd/glint/internal/workerpool"
)

const tagsPrefix = "refs/tags/"

// tagHasTarget reports whether the reference called name points at target,
// either directly or through the peeled target of an annotated tag.
// Symbolic chains are followed for at most 10 hops; anything deeper (or
// cyclic) reads as no match.
func (r *Repo) tagHasTarget(name plumbing.ReferenceName, target plumbing.Hash) bool {
	ref, err := r.gg.Reference(name, false)
	if err != nil {
		return false
	}
	for i := 0; i != 10 && ref.Type() == plumbing.SymbolicReference; i++ {
		dst, err := r.gg.Reference(ref.Target(), false)
		if err != nil {
			return false
		}
		ref = dst
	}
	if ref.Type() == plumbing.SymbolicReference {
		return false
	}
	if ref.Hash() == target {
		return true
	}
	tag, err := r.gg.TagObject(ref.Hash())
	if err != nil {
		return false
	}
	return tag.Target == target
}

// TagSearch is a one-shot deferred result of GetTagName.
type TagSearch struct {
	ch chan tagResult
}

type tagResult struct {
	name string
	err  error
}

// Wait blocks until the search finishes and returns the short tag name
// ("" when no tag points at the requested commit).
func (t *TagSearch) Wait() (string, error) {
	res := <-t.ch
	return res.name, res.err
}

// GetTagName searches refs/tags/* for a tag pointing at target. The
// search runs on the pool so the caller can assemble the rest of the
// status while it scans; Wait retrieves the result.
func (r *Repo) GetTagName(pool *workerpool.Pool, target *plumbing.Hash) *TagSearch {
	t := &TagSearch{ch: make(chan tagResult, 1)}
	pool.Schedule(func() {
		if target == nil {
			t.ch <- tagResult{}
			return
		}
		name, err := r.findTag(*target)
		t.ch <- tagResult{name: name, err: err}
	})
	return t
}

func (r *Repo) findTag(target plumbing.Hash) (string, error) {
	iter, err := r.gg.References()
	if err != nil {
		return "", errors.Wrap(err, "failed to iterate references")
	}
	defer iter.Close()
	for {
		ref, err := iter.Next()
		if err != nil {
			// Iteration over; a repository with no matching tag is not an
			// error.
			return "", nil
		}
		name := ref.Name().String()
		if !strings.HasPrefix(name, tagsPrefix) {
			continue
		}
		if r.tagHasTarget(ref.Name(), target) {
			return strings.TrimPrefix(name, tagsPrefix), nil
		}
	}
}
