package engine

import (
	"path"
	"sync"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"

	"github.com/glintd/glint/internal/git"
	"github.com/glintd/glint/internal/workerpool"
)

// splitRefreshPeriod is how long a shard plan stays current before a
// background rebuild is scheduled.
const splitRefreshPeriod = 60 * time.Second

// kMaxWaitInflight bounds how many background tasks may coexist with a
// query: one shard-plan refresh. Wait(k) only accepts k up to this.
const kMaxWaitInflight = 1

// Tribool is a three-valued answer for scan classes that may be skipped.
type Tribool int

const (
	Unknown Tribool = iota
	False
	True
)

func (t Tribool) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// IndexStats is the presence summary of one status query.
type IndexStats struct {
	HasStaged    bool
	HasUnstaged  Tribool
	HasUntracked Tribool
}

// Engine computes index statistics for one repository by fanning
// concurrent range-bounded diffs out over a worker pool. All methods must
// be called from a single goroutine; the internals coordinate the workers.
type Engine struct {
	repo *git.Repo
	pool *workerpool.Pool
	log  logrus.FieldLogger

	mu   sync.Mutex
	cond *sync.Cond

	inflight atomic.Int64
	errFlag  atomic.Bool
	firstErr error

	staged    optionalFile
	unstaged  optionalFile
	untracked optionalFile

	idx      *git.IndexSnapshot
	splits   []string
	splitsTS time.Time
}

// New creates an engine for repo using pool for its workers. The engine
// takes ownership of scheduling; the pool is shared and must outlive it.
func New(repo *git.Repo, pool *workerpool.Pool) *Engine {
	e := &Engine{
		repo: repo,
		pool: pool,
		log:  logrus.WithField("repo", path.Base(repo.Dir())),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Close drains outstanding work. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.Wait(0)
}

// Wait blocks until exactly k tasks are inflight. k is 0 (fully drained)
// or kMaxWaitInflight (everything but the caller's own task, used by the
// background shard refresh).
func (e *Engine) Wait(k int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.inflight.Load() != k {
		e.cond.Wait()
	}
}

// runAsync schedules f on the pool, tracking it in the inflight counter.
// The increment strictly precedes the submission. A non-nil return from f,
// or a panic in f, latches the per-query error.
func (e *Engine) runAsync(f func() error) {
	e.inflight.Add(1)
	e.pool.Schedule(func() {
		defer e.decInflight()
		defer func() {
			if r := recover(); r != nil {
				e.setError(errors.Errorf("scan worker panicked: %v", r))
			}
		}()
		if err := f(); err != nil {
			e.setError(err)
		}
	})
}

func (e *Engine) decInflight() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight.Add(-1) <= kMaxWaitInflight+1 {
		e.cond.Broadcast()
	}
}

// setError latches the first worker failure for the current query and
// wakes the aggregator. Later failures are dropped.
func (e *Engine) setError(err error) {
	if e.errFlag.Load() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.errFlag.Load() {
		return
	}
	e.log.WithError(err).Debug("scan worker failed")
	e.firstErr = err
	e.errFlag.Store(true)
	e.cond.Broadcast()
}

// updateFile publishes a discovered path into a slot and wakes the
// aggregator. No-op when the slot is already filled.
func (e *Engine) updateFile(slot *optionalFile, label, p string) {
	if !slot.Empty() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot.TrySet(p) {
		e.log.Debugf("found new %s file: %s", label, p)
		e.cond.Broadcast()
	}
}

// GetIndexStats reloads the index and reports whether the repository has
// staged, unstaged, and untracked changes. head is the current HEAD
// commit, nil on an unborn branch. When the index holds more than
// dirtyMaxIndexSize entries the dirty and untracked classes are not
// scanned and report Unknown, or True when a path found by an earlier
// query is still dirty; a negative ceiling means unlimited.
func (e *Engine) GetIndexStats(head *plumbing.Hash, dirtyMaxIndexSize int) (IndexStats, error) {
	e.Wait(0)

	idx, err := e.repo.ReadIndex()
	if err != nil {
		return IndexStats{}, err
	}
	e.idx = idx
	if len(e.splits) == 0 {
		e.updateSplits()
	}
	e.errFlag.Store(false)
	e.firstErr = nil
	e.updateKnown()

	indexSize := idx.EntryCount()
	scanDirty := dirtyMaxIndexSize < 0 || indexSize <= dirtyMaxIndexSize

	done := func() bool {
		return (head == nil || !e.staged.Empty()) &&
			(!scanDirty || (!e.unstaged.Empty() && !e.untracked.Empty()))
	}

	e.log.WithField("index_size", indexSize).Debug("running status query")

	if !done() {
		if e.inflight.Load() != 0 {
			return IndexStats{}, errors.New("tasks inflight at scan start")
		}
		if scanDirty {
			e.startDirtyScan()
		}
		if head != nil {
			if err := e.startStagedScan(*head); err != nil {
				e.setError(err)
			}
		}

		e.mu.Lock()
		for e.inflight.Load() != 0 && !e.errFlag.Load() && !done() {
			e.cond.Wait()
		}
		e.mu.Unlock()
	}

	if time.Since(e.splitsTS) >= splitRefreshPeriod {
		e.runAsync(func() error {
			e.Wait(kMaxWaitInflight)
			e.updateSplits()
			return nil
		})
	}

	if e.errFlag.Load() {
		e.mu.Lock()
		err := e.firstErr
		e.mu.Unlock()
		if err == nil {
			err = errors.New("status scan failed")
		}
		return IndexStats{}, err
	}

	return IndexStats{
		// An empty repo with a non-empty index must have staged changes
		// since it cannot have unstaged changes.
		HasStaged:    !e.staged.Empty() || (head == nil && indexSize > 0),
		HasUnstaged:  e.scanResult(&e.unstaged, scanDirty),
		HasUntracked: e.scanResult(&e.untracked, scanDirty),
	}, nil
}

func (e *Engine) scanResult(slot *optionalFile, scanned bool) Tribool {
	if !slot.Empty() {
		return True
	}
	if scanned {
		return False
	}
	return Unknown
}

// IndexSize reports the entry count of the last loaded index snapshot.
func (e *Engine) IndexSize() int {
	if e.idx == nil {
		return 0
	}
	return e.idx.EntryCount()
}

// NumConflicted reports the conflicted path count of the last loaded
// index snapshot.
func (e *Engine) NumConflicted() int {
	if e.idx == nil {
		return 0
	}
	return e.idx.NumConflicted()
}

// Splits exposes the current shard plan for tests and diagnostics.
func (e *Engine) Splits() []string {
	return e.splits
}

func (e *Engine) updateSplits() {
	n := 0
	if e.idx != nil {
		n = e.idx.EntryCount()
	}
	defer func() {
		e.splitsTS = time.Now()
		e.log.WithFields(logrus.Fields{
			"entries": n,
			"shards":  len(e.splits) - 1,
		}).Debug("computed shard plan")
	}()
	if e.idx == nil {
		e.splits = []string{"", ""}
		return
	}
	e.splits = computeSplits(e.idx, e.pool.NumThreads())
}
