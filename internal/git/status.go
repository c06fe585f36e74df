package git

import (
	"os"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// StatusFlags is the bit-flag classification of a single path, combining
// its staged (index vs HEAD) and worktree (worktree vs index) state.
type StatusFlags uint32

const (
	StatusIndexNew StatusFlags = 1 << iota
	StatusIndexModified
	StatusIndexDeleted
	StatusIndexRenamed
	StatusIndexTypeChange
	StatusWtNew
	StatusWtModified
	StatusWtDeleted
	StatusWtTypeChange
	StatusWtRenamed
	StatusConflicted
)

// The three flag classes a prompt cares about. A path can match more than
// one class (e.g. staged and then edited again).
const (
	MaskStaged = StatusIndexNew | StatusIndexModified | StatusIndexDeleted |
		StatusIndexRenamed | StatusIndexTypeChange
	MaskUnstaged = StatusWtModified | StatusWtDeleted | StatusWtTypeChange |
		StatusWtRenamed | StatusConflicted
	MaskUntracked = StatusWtNew
)

// StatusFile computes the status flags for a single path against the
// given index snapshot, the current HEAD tree, and the working tree.
// Errors on directories; only file paths have a point status.
func (r *Repo) StatusFile(idx *IndexSnapshot, path string) (StatusFlags, error) {
	var flags StatusFlags
	e := idx.Lookup(path)

	headTree, err := r.headTreeOrNil()
	if err != nil {
		return 0, err
	}
	var te *object.TreeEntry
	if headTree != nil {
		if entry, err := headTree.FindEntry(path); err == nil {
			te = entry
		}
	}

	switch {
	case e != nil && e.Conflicted:
		flags |= StatusConflicted
	case e != nil && te == nil:
		flags |= StatusIndexNew
	case e != nil && te != nil:
		if e.Hash != te.Hash || e.Mode != te.Mode {
			if modeClassDiffers(e.Mode, te.Mode) {
				flags |= StatusIndexTypeChange
			} else {
				flags |= StatusIndexModified
			}
		}
	case te != nil:
		flags |= StatusIndexDeleted
	}

	fi, statErr := r.wtfs.Lstat(path)
	if statErr != nil && !os.IsNotExist(statErr) {
		return 0, errors.WrapIff(statErr, "failed to stat %q", path)
	}

	if e != nil && !e.Conflicted {
		switch {
		case statErr != nil:
			flags |= StatusWtDeleted
		case fi.IsDir():
			if e.Mode != filemode.Submodule {
				flags |= StatusWtTypeChange
			}
		default:
			status, dirty, err := r.worktreeFileStatus(e, fi)
			if err != nil {
				return 0, err
			}
			if dirty {
				if status == DeltaTypeChange {
					flags |= StatusWtTypeChange
				} else {
					flags |= StatusWtModified
				}
			}
		}
	}

	if e == nil && statErr == nil {
		if fi.IsDir() {
			return 0, errors.Errorf("%q is a directory", path)
		}
		if te == nil && !r.ignoredPath(path, false) {
			flags |= StatusWtNew
		}
	}

	return flags, nil
}

// headTreeOrNil resolves the tree of the current HEAD commit. Returns nil
// on an unborn branch.
func (r *Repo) headTreeOrNil() (*object.Tree, error) {
	ref, err := r.Head()
	if err != nil {
		return nil, err
	}
	if ref == nil || ref.Hash().IsZero() {
		return nil, nil
	}
	return r.TreeOf(ref.Hash())
}
