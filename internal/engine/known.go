package engine

import "github.com/glintd/glint/internal/git"

// updateKnown re-checks the paths discovered by the previous query with
// point status queries and re-publishes the ones that are still dirty.
// A repeated query skips the scans entirely only when every class it
// needs is re-confirmed here; otherwise the scans still run. Runs on the
// aggregator with no tasks inflight.
//
// A path may have changed class since it was found (a staged file edited
// again is now also unstaged), so each slot takes the first re-checked
// path whose flags match its mask rather than its original one.
func (e *Engine) updateKnown() {
	type knownFile struct {
		flags git.StatusFlags
		path  string
	}

	fetch := func(slot *optionalFile) knownFile {
		var f knownFile
		if !slot.Empty() {
			f.path = slot.Clear()
			flags, err := e.repo.StatusFile(e.idx, f.path)
			if err != nil {
				flags = 0
			}
			f.flags = flags
		}
		return f
	}

	files := [3]knownFile{fetch(&e.staged), fetch(&e.unstaged), fetch(&e.untracked)}

	snatch := func(mask git.StatusFlags, slot *optionalFile, label string) {
		for i := range files {
			if files[i].flags&mask != 0 {
				files[i].flags = 0
				e.log.Debugf("fast path for %s file: %s", label, files[i].path)
				slot.TrySet(files[i].path)
				return
			}
		}
	}

	snatch(git.MaskStaged, &e.staged, "staged")
	snatch(git.MaskUnstaged, &e.unstaged, "unstaged")
	snatch(git.MaskUntracked, &e.untracked, "untracked")
}
