// Package daemon implements the line-framed request/response loop that
// shell prompts talk to. Requests arrive on one stream, responses leave
// on another; each repository gets a cached engine so consecutive prompts
// hit the known-file fast path.
package daemon

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/glintd/glint/internal/engine"
	"github.com/glintd/glint/internal/git"
	"github.com/glintd/glint/internal/workerpool"
)

// Wire framing: fields are separated by 0x1f (unit separator), records by
// 0x1e (record separator). Both bytes are illegal in git paths and refs,
// so no escaping is needed.
const (
	fieldSep  = "\x1f"
	recordSep = byte(0x1e)
)

type Options struct {
	Pool *workerpool.Pool
	// DirtyMaxIndexSize caps the index size above which the unstaged and
	// untracked classes report unknown. Negative means no limit.
	DirtyMaxIndexSize int
}

type Daemon struct {
	pool     *workerpool.Pool
	dirtyMax int
	log      logrus.FieldLogger
	repos    map[string]*repoEntry
}

type repoEntry struct {
	repo *git.Repo
	eng  *engine.Engine
}

func New(opts Options) *Daemon {
	pool := opts.Pool
	if pool == nil {
		pool = workerpool.Default()
	}
	return &Daemon{
		pool:     pool,
		dirtyMax: opts.DirtyMaxIndexSize,
		log:      logrus.WithField("component", "daemon"),
		repos:    map[string]*repoEntry{},
	}
}

// Run serves requests from r until EOF, writing responses to w. Requests
// are handled one at a time; the engine parallelizes internally.
func (d *Daemon) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	g, ctx := errgroup.WithContext(ctx)
	requests := make(chan string)

	g.Go(func() error {
		defer close(requests)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		scanner.Split(splitRecords)
		for scanner.Scan() {
			select {
			case requests <- scanner.Text():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return scanner.Err()
	})

	g.Go(func() error {
		out := bufio.NewWriter(w)
		for req := range requests {
			resp := d.handle(req)
			if _, err := out.WriteString(resp); err != nil {
				return errors.Wrap(err, "failed to write response")
			}
			if err := out.WriteByte(recordSep); err != nil {
				return errors.Wrap(err, "failed to write response")
			}
			if err := out.Flush(); err != nil {
				return errors.Wrap(err, "failed to flush response")
			}
		}
		return nil
	})

	return g.Wait()
}

func splitRecords(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, recordSep); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (d *Daemon) handle(raw string) string {
	// id<US>dir[<US>read-index]: the optional third field is accepted for
	// protocol compatibility. The engine always re-reads the index, so it
	// carries no extra meaning here.
	fields := strings.SplitN(raw, fieldSep, 3)
	id := fields[0]
	dir := ""
	if len(fields) > 1 {
		dir = fields[1]
	}
	ent, err := d.lookup(dir)
	if err != nil {
		d.log.WithError(err).WithField("dir", dir).Debug("failed to open repository")
		return id + fieldSep + "0"
	}
	if ent == nil {
		return id + fieldSep + "0"
	}
	fields, err = d.query(ent)
	if err != nil {
		// The engine stays usable after a failed query, but a repository
		// that errors once is cheap to re-open; drop only its own entry.
		d.log.WithError(err).WithField("dir", dir).Warn("status query failed")
		ent.eng.Close()
		delete(d.repos, ent.repo.Dir())
		return id + fieldSep + "0"
	}
	return strings.Join(append([]string{id, "1"}, fields...), fieldSep)
}

func (d *Daemon) lookup(dir string) (*repoEntry, error) {
	repo, err := git.OpenRepo(dir)
	if err != nil || repo == nil {
		return nil, err
	}
	if ent, ok := d.repos[repo.Dir()]; ok {
		return ent, nil
	}
	ent := &repoEntry{repo: repo, eng: engine.New(repo, d.pool)}
	d.repos[repo.Dir()] = ent
	return ent, nil
}

// Summary is everything a prompt needs to draw one segment.
type Summary struct {
	Workdir      string
	Commit       string
	LocalBranch  string
	RemoteBranch string
	RemoteName   string
	RemoteURL    string
	RepoState    string
	IndexSize    int
	HasStaged    bool
	HasUnstaged  engine.Tribool
	HasUntracked engine.Tribool
	Conflicted   int
	Ahead        int
	Behind       int
	Stashes      int
	Tag          string
}

// Collect runs one full status query against repo using eng, overlapping
// the tag search with the scans.
func Collect(repo *git.Repo, eng *engine.Engine, pool *workerpool.Pool, dirtyMax int) (*Summary, error) {
	headRef, err := repo.Head()
	if err != nil {
		return nil, err
	}
	var headHash *plumbing.Hash
	if headRef != nil && !headRef.Hash().IsZero() {
		h := headRef.Hash()
		headHash = &h
	}

	// Tag search runs on the pool while the scans and the ref queries
	// below do their work.
	tag := repo.GetTagName(pool, headHash)

	stats, err := eng.GetIndexStats(headHash, dirtyMax)
	if err != nil {
		tag.Wait()
		return nil, err
	}

	localBranch := git.LocalBranchName(headRef)
	upstream, err := repo.Upstream(localBranch)
	if err != nil {
		tag.Wait()
		return nil, err
	}
	remoteName := repo.RemoteName(localBranch)

	ahead, behind := 0, 0
	if upstream != nil && headHash != nil {
		up := upstream.Name().String()
		if ahead, err = repo.CountRange(up + "..HEAD"); err != nil {
			tag.Wait()
			return nil, err
		}
		if behind, err = repo.CountRange("HEAD.." + up); err != nil {
			tag.Wait()
			return nil, err
		}
	}

	stashes, err := repo.NumStashes()
	if err != nil {
		tag.Wait()
		return nil, err
	}

	tagName, err := tag.Wait()
	if err != nil {
		return nil, err
	}

	commit := ""
	if headHash != nil {
		commit = headHash.String()
	}
	return &Summary{
		Workdir:      repo.Dir(),
		Commit:       commit,
		LocalBranch:  localBranch,
		RemoteBranch: git.RemoteBranchName(upstream),
		RemoteName:   remoteName,
		RemoteURL:    repo.RemoteURL(remoteName),
		RepoState:    repo.RepoState(),
		IndexSize:    eng.IndexSize(),
		HasStaged:    stats.HasStaged,
		HasUnstaged:  stats.HasUnstaged,
		HasUntracked: stats.HasUntracked,
		Conflicted:   eng.NumConflicted(),
		Ahead:        ahead,
		Behind:       behind,
		Stashes:      stashes,
		Tag:          tagName,
	}, nil
}

func (d *Daemon) query(ent *repoEntry) ([]string, error) {
	s, err := Collect(ent.repo, ent.eng, d.pool, d.dirtyMax)
	if err != nil {
		return nil, err
	}
	return []string{
		s.Workdir,
		s.Commit,
		s.LocalBranch,
		s.RemoteBranch,
		s.RemoteName,
		s.RemoteURL,
		s.RepoState,
		strconv.Itoa(s.IndexSize),
		boolField(s.HasStaged),
		triboolField(s.HasUnstaged),
		triboolField(s.HasUntracked),
		strconv.Itoa(s.Conflicted),
		strconv.Itoa(s.Ahead),
		strconv.Itoa(s.Behind),
		strconv.Itoa(s.Stashes),
		s.Tag,
	}, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func triboolField(t engine.Tribool) string {
	switch t {
	case engine.True:
		return "1"
	case engine.False:
		return "0"
	}
	return "-1"
}
