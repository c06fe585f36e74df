package git

import (
	"io"
	"os"
	"sort"
	"time"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DeltaStatus classifies a single path-level diff record.
type DeltaStatus int

const (
	DeltaAdded DeltaStatus = iota
	DeltaModified
	DeltaDeleted
	DeltaTypeChange
	DeltaUntracked
	DeltaConflicted
)

func (s DeltaStatus) String() string {
	switch s {
	case DeltaAdded:
		return "added"
	case DeltaModified:
		return "modified"
	case DeltaDeleted:
		return "deleted"
	case DeltaTypeChange:
		return "typechange"
	case DeltaUntracked:
		return "untracked"
	case DeltaConflicted:
		return "conflicted"
	}
	return "unknown"
}

// Delta is one path-level diff record reported to the notify callback.
type Delta struct {
	Status DeltaStatus
	Path   string
}

// DiffControl is the notify callback's verdict on how the diff proceeds.
type DiffControl int

const (
	// DiffContinue keeps the diff going.
	DiffContinue DiffControl = iota
	// DiffSkipTree keeps the diff going but skips the rest of the subtree
	// the delta was found in (meaningful for untracked directories).
	DiffSkipTree
	// DiffEnd terminates the diff immediately. The diff call returns nil;
	// early termination at the callback's request is not an error.
	DiffEnd
)

// NotifyFunc is invoked once per delta, in path order within a single
// diff. It must be safe for concurrent invocation when the same callback
// is shared by diffs running on multiple workers.
type NotifyFunc func(Delta) DiffControl

// DiffOptions bound and tune a single diff traversal.
type DiffOptions struct {
	// RangeStart and RangeEnd restrict the diff to paths p with
	// RangeStart <= p < RangeEnd. An empty string means unbounded.
	RangeStart string
	RangeEnd   string

	// IncludeUntracked reports untracked paths as DeltaUntracked.
	IncludeUntracked bool
	// RecurseUntrackedDirs descends into untracked directories and reports
	// the files inside; otherwise the directory itself is reported with a
	// trailing slash.
	RecurseUntrackedDirs bool
	// SkipBinaryCheck is accepted for option parity; path-level
	// classification never inspects content types.
	SkipBinaryCheck bool
	// IgnoreSubmoduleDirt is accepted for option parity; the worktree walk
	// never looks inside submodules, so their dirtiness is not reported
	// whether or not it is set. Submodule pointer changes are still
	// reported by tree→index diffs.
	IgnoreSubmoduleDirt bool

	Notify NotifyFunc
}

// errDiffEnded signals that the notify callback asked to end the diff.
// Never escapes the diff entry points.
const errDiffEnded = errors.Sentinel("diff ended by notify callback")

// errSkipSubtree unwinds an untracked-directory walk after DiffSkipTree.
const errSkipSubtree = errors.Sentinel("subtree skipped by notify callback")

func inRange(p, start, end string) bool {
	return (start == "" || p >= start) && (end == "" || p < end)
}

// dirIntersectsRange reports whether any path under dir/ can fall in
// [start, end). The exclusive upper bound of the dir/ prefix space is
// dir+"0" because '0' is the byte after '/'.
func dirIntersectsRange(dir, start, end string) bool {
	if end != "" && dir+"/" >= end {
		return false
	}
	if start != "" && start >= dir+"0" {
		return false
	}
	return true
}

// gitSortLess orders directory listings the way git orders tree entries
// and index paths: byte-wise, with directory names compared as if they
// had a trailing slash.
func gitSortLess(nameA string, dirA bool, nameB string, dirB bool) bool {
	a, b := nameA, nameB
	if dirA {
		a += "/"
	}
	if dirB {
		b += "/"
	}
	return a < b
}

// TreeOf returns the tree of the commit at h.
func (r *Repo) TreeOf(h plumbing.Hash) (*object.Tree, error) {
	c, err := r.gg.CommitObject(h)
	if err != nil {
		return nil, errors.WrapIff(err, "failed to look up commit %s", h)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, errors.WrapIff(err, "failed to look up tree of %s", h)
	}
	return tree, nil
}

// DiffTreeToIndex walks tree and idx in lockstep within the option range
// and reports staged differences (tree vs index) to opts.Notify. It stops
// as soon as the callback returns DiffEnd.
func (r *Repo) DiffTreeToIndex(tree *object.Tree, idx *IndexSnapshot, opts DiffOptions) error {
	d := &treeDiff{r: r, idx: idx, opts: opts}
	d.cursor, d.end = idx.rangeBounds(opts.RangeStart, opts.RangeEnd)
	err := d.walk(tree, "")
	if err == nil {
		err = d.flushAdded("")
	}
	if errors.Is(err, errDiffEnded) {
		return nil
	}
	return err
}

type treeDiff struct {
	r           *Repo
	idx         *IndexSnapshot
	opts        DiffOptions
	cursor, end int
}

func (d *treeDiff) emit(status DeltaStatus, path string) error {
	if d.opts.Notify(Delta{Status: status, Path: path}) == DiffEnd {
		return errDiffEnded
	}
	return nil
}

// flushAdded reports index entries before bound that have no tree
// counterpart. bound "" flushes everything left in range.
func (d *treeDiff) flushAdded(bound string) error {
	for d.cursor < d.end && (bound == "" || d.idx.Path(d.cursor) < bound) {
		e := d.idx.Entry(d.cursor)
		d.cursor++
		status := DeltaAdded
		if e.Conflicted {
			status = DeltaConflicted
		}
		if err := d.emit(status, e.Path); err != nil {
			return err
		}
	}
	return nil
}

func (d *treeDiff) walk(tree *object.Tree, prefix string) error {
	for i := range tree.Entries {
		te := &tree.Entries[i]
		full := prefix + te.Name
		if te.Mode == filemode.Dir {
			if err := d.flushAdded(full + "/"); err != nil {
				return err
			}
			if !dirIntersectsRange(full, d.opts.RangeStart, d.opts.RangeEnd) {
				continue
			}
			subtree, err := object.GetTree(d.r.gg.Storer, te.Hash)
			if err != nil {
				return errors.WrapIff(err, "failed to load tree %s", full)
			}
			if err := d.walk(subtree, full+"/"); err != nil {
				return err
			}
			continue
		}
		if !inRange(full, d.opts.RangeStart, d.opts.RangeEnd) {
			continue
		}
		if err := d.flushAdded(full); err != nil {
			return err
		}
		if d.cursor < d.end && d.idx.Path(d.cursor) == full {
			e := d.idx.Entry(d.cursor)
			d.cursor++
			switch {
			case e.Conflicted:
				if err := d.emit(DeltaConflicted, full); err != nil {
					return err
				}
			case e.Hash != te.Hash:
				if err := d.emit(DeltaModified, full); err != nil {
					return err
				}
			case modeClassDiffers(e.Mode, te.Mode):
				if err := d.emit(DeltaTypeChange, full); err != nil {
					return err
				}
			case e.Mode != te.Mode:
				if err := d.emit(DeltaModified, full); err != nil {
					return err
				}
			}
			continue
		}
		// In the tree but not in the index: staged deletion.
		if err := d.emit(DeltaDeleted, full); err != nil {
			return err
		}
	}
	return nil
}

// modeClassDiffers reports a change between file kinds (blob vs symlink vs
// gitlink), as opposed to a permission-bit change within the same kind.
func modeClassDiffers(a, b filemode.FileMode) bool {
	class := func(m filemode.FileMode) int {
		switch m {
		case filemode.Symlink:
			return 1
		case filemode.Submodule:
			return 2
		default:
			return 0
		}
	}
	return class(a) != class(b)
}

// DiffIndexToWorktree walks the working tree and idx in lockstep within
// the option range and reports unstaged and (optionally) untracked paths
// to opts.Notify. It stops as soon as the callback returns DiffEnd.
func (r *Repo) DiffIndexToWorktree(idx *IndexSnapshot, opts DiffOptions) error {
	w := &worktreeDiff{r: r, idx: idx, opts: opts}
	w.cursor, w.end = idx.rangeBounds(opts.RangeStart, opts.RangeEnd)
	if opts.IncludeUntracked {
		w.ign = r.newIgnoreStack()
	}
	err := w.walkDir("")
	if err == nil {
		err = w.flushDeleted("")
	}
	if errors.Is(err, errDiffEnded) {
		return nil
	}
	return err
}

type worktreeDiff struct {
	r           *Repo
	idx         *IndexSnapshot
	opts        DiffOptions
	ign         *ignoreStack
	cursor, end int
}

func (w *worktreeDiff) emit(status DeltaStatus, path string) (DiffControl, error) {
	ctl := w.opts.Notify(Delta{Status: status, Path: path})
	if ctl == DiffEnd {
		return ctl, errDiffEnded
	}
	return ctl, nil
}

// flushDeleted reports index entries before bound that were not seen on
// the filesystem. bound "" flushes everything left in range.
func (w *worktreeDiff) flushDeleted(bound string) error {
	for w.cursor < w.end && (bound == "" || w.idx.Path(w.cursor) < bound) {
		e := w.idx.Entry(w.cursor)
		w.cursor++
		if e.SkipWorktree {
			continue
		}
		status := DeltaDeleted
		if e.Conflicted {
			status = DeltaConflicted
		}
		if _, err := w.emit(status, e.Path); err != nil {
			return err
		}
	}
	return nil
}

func (w *worktreeDiff) walkDir(dir string) error {
	infos, err := w.r.wtfs.ReadDir(dir)
	if err != nil {
		return errors.WrapIff(err, "failed to list %q", dir)
	}
	sort.Slice(infos, func(i, j int) bool {
		return gitSortLess(infos[i].Name(), infos[i].IsDir(), infos[j].Name(), infos[j].IsDir())
	})
	if w.ign != nil {
		mark := w.ign.push(dir)
		defer w.ign.restore(mark)
	}
	for _, fi := range infos {
		name := fi.Name()
		if name == ".git" {
			continue
		}
		full := name
		if dir != "" {
			full = dir + "/" + name
		}
		if fi.IsDir() {
			if err := w.visitDir(full); err != nil {
				return err
			}
			continue
		}
		if err := w.visitFile(full, fi); err != nil {
			return err
		}
	}
	return nil
}

func (w *worktreeDiff) visitDir(full string) error {
	// A directory shadowing an index file entry is a typechange (or an
	// untouched submodule). Consume the entry before the ordinary flush:
	// "full" sorts before "full/" and would otherwise read as deleted.
	if e := w.idx.Lookup(full); e != nil {
		if err := w.flushDeleted(full); err != nil {
			return err
		}
		if w.cursor < w.end && w.idx.Path(w.cursor) == full {
			w.cursor++
			if e.Mode != filemode.Submodule && inRange(full, w.opts.RangeStart, w.opts.RangeEnd) {
				if _, err := w.emit(DeltaTypeChange, full); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := w.flushDeleted(full + "/"); err != nil {
		return err
	}
	if !dirIntersectsRange(full, w.opts.RangeStart, w.opts.RangeEnd) {
		return nil
	}
	if w.idx.hasPrefix(full + "/") {
		return w.walkDir(full)
	}

	// Untracked directory.
	if !w.opts.IncludeUntracked {
		return nil
	}
	if w.ign.match(full, true) {
		return nil
	}
	if w.opts.RecurseUntrackedDirs {
		err := w.walkUntracked(full)
		if errors.Is(err, errSkipSubtree) {
			return nil
		}
		return err
	}
	if inRange(full+"/", w.opts.RangeStart, w.opts.RangeEnd) {
		if _, err := w.emit(DeltaUntracked, full+"/"); err != nil {
			return err
		}
	}
	return nil
}

func (w *worktreeDiff) visitFile(full string, fi os.FileInfo) error {
	if !inRange(full, w.opts.RangeStart, w.opts.RangeEnd) {
		return nil
	}
	if err := w.flushDeleted(full); err != nil {
		return err
	}
	if w.cursor < w.end && w.idx.Path(w.cursor) == full {
		e := w.idx.Entry(w.cursor)
		w.cursor++
		if e.Conflicted {
			_, err := w.emit(DeltaConflicted, full)
			return err
		}
		if e.SkipWorktree {
			return nil
		}
		status, dirty, err := w.r.worktreeFileStatus(e, fi)
		if err != nil {
			return err
		}
		if dirty {
			_, err := w.emit(status, full)
			return err
		}
		return nil
	}
	// Not in the index: untracked.
	if !w.opts.IncludeUntracked {
		return nil
	}
	if w.ign.match(full, false) {
		return nil
	}
	_, err := w.emit(DeltaUntracked, full)
	return err
}

// walkUntracked reports every non-ignored file inside an untracked
// directory. A DiffSkipTree verdict abandons the rest of the subtree.
func (w *worktreeDiff) walkUntracked(dir string) error {
	infos, err := w.r.wtfs.ReadDir(dir)
	if err != nil {
		return errors.WrapIff(err, "failed to list %q", dir)
	}
	sort.Slice(infos, func(i, j int) bool {
		return gitSortLess(infos[i].Name(), infos[i].IsDir(), infos[j].Name(), infos[j].IsDir())
	})
	mark := w.ign.push(dir)
	defer w.ign.restore(mark)
	for _, fi := range infos {
		name := fi.Name()
		if name == ".git" {
			continue
		}
		full := dir + "/" + name
		if fi.IsDir() {
			if !dirIntersectsRange(full, w.opts.RangeStart, w.opts.RangeEnd) {
				continue
			}
			if w.ign.match(full, true) {
				continue
			}
			if err := w.walkUntracked(full); err != nil {
				return err
			}
			continue
		}
		if !inRange(full, w.opts.RangeStart, w.opts.RangeEnd) {
			continue
		}
		if w.ign.match(full, false) {
			continue
		}
		ctl, err := w.emit(DeltaUntracked, full)
		if err != nil {
			return err
		}
		if ctl == DiffSkipTree {
			return errSkipSubtree
		}
	}
	return nil
}

// worktreeFileStatus classifies an index entry against the file at its
// path. fi is the Lstat result for the path; the caller handles missing
// files. Reports (status, dirty).
func (r *Repo) worktreeFileStatus(e *IndexEntry, fi os.FileInfo) (DeltaStatus, bool, error) {
	symlink := fi.Mode()&os.ModeSymlink != 0
	wasLink := e.Mode == filemode.Symlink
	if symlink != wasLink {
		return DeltaTypeChange, true, nil
	}
	if !symlink && !fi.Mode().IsRegular() {
		return DeltaTypeChange, true, nil
	}
	if e.IntentToAdd {
		// git add -N: the path is in the index with no content yet, so
		// anything on disk counts as an unstaged change.
		return DeltaModified, true, nil
	}
	if !symlink {
		execNow := fi.Mode()&0o100 != 0
		execIdx := e.Mode == filemode.Executable
		if execNow != execIdx {
			return DeltaModified, true, nil
		}
	}
	if uint32(fi.Size()) != e.Size {
		return DeltaModified, true, nil
	}
	if statTimeMatches(e.ModifiedAt, fi.ModTime()) {
		return 0, false, nil
	}
	// Stat is inconclusive (racy mtime): fall back to hashing the content.
	same, err := r.contentMatches(e, symlink)
	if err != nil {
		return 0, false, err
	}
	if !same {
		return DeltaModified, true, nil
	}
	return 0, false, nil
}

// statTimeMatches compares a worktree mtime against the index-recorded
// one, tolerating indexes written with second precision.
func statTimeMatches(idx, fs time.Time) bool {
	if idx.IsZero() {
		return false
	}
	if idx.Unix() != fs.Unix() {
		return false
	}
	return idx.Nanosecond() == 0 || idx.Nanosecond() == fs.Nanosecond()
}

func (r *Repo) contentMatches(e *IndexEntry, symlink bool) (bool, error) {
	if symlink {
		target, err := r.wtfs.Readlink(e.Path)
		if err != nil {
			return false, nil
		}
		return plumbing.ComputeHash(plumbing.BlobObject, []byte(target)) == e.Hash, nil
	}
	f, err := r.wtfs.Open(e.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.WrapIff(err, "failed to open %q", e.Path)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return false, errors.WrapIff(err, "failed to read %q", e.Path)
	}
	return plumbing.ComputeHash(plumbing.BlobObject, data) == e.Hash, nil
}
