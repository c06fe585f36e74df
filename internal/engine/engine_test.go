package engine_test

import (
	"fmt"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	"github.com/glintd/glint/internal/engine"
	"github.com/glintd/glint/internal/git"
	"github.com/glintd/glint/internal/git/gittest"
	"github.com/glintd/glint/internal/workerpool"
)

func headHash(t *testing.T, repo *git.Repo) *plumbing.Hash {
	t.Helper()
	ref, err := repo.Head()
	require.NoError(t, err)
	if ref == nil || ref.Hash().IsZero() {
		return nil
	}
	h := ref.Hash()
	return &h
}

func newEngine(t *testing.T, repo *git.Repo) (*engine.Engine, *workerpool.Pool) {
	t.Helper()
	pool := workerpool.New(4)
	t.Cleanup(pool.Close)
	eng := engine.New(repo, pool)
	t.Cleanup(eng.Close)
	return eng, pool
}

func TestCleanRepo(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	for i := 0; i < 9; i++ {
		gittest.CommitFile(t, repo, fmt.Sprintf("file%d.txt", i), []byte("hello"))
	}
	eng, pool := newEngine(t, repo)

	before := pool.Submitted()
	stats, err := eng.GetIndexStats(headHash(t, repo), -1)
	require.NoError(t, err)
	require.False(t, stats.HasStaged)
	require.Equal(t, engine.False, stats.HasUnstaged)
	require.Equal(t, engine.False, stats.HasUntracked)

	// One staged and one dirty diff per shard, all of which drain without
	// finding anything.
	eng.Close()
	shards := len(eng.Splits()) - 1
	require.EqualValues(t, int64(2*shards), pool.Submitted()-before)
}

func TestUntrackedFile(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CreateFile(t, repo, "newfile.txt", []byte("untracked"))
	eng, _ := newEngine(t, repo)

	stats, err := eng.GetIndexStats(headHash(t, repo), -1)
	require.NoError(t, err)
	require.False(t, stats.HasStaged)
	require.Equal(t, engine.False, stats.HasUnstaged)
	require.Equal(t, engine.True, stats.HasUntracked)
}

func TestModifiedFile(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, "src/a.c", []byte("int main() { return 0; }\n"))
	gittest.CreateFile(t, repo, "src/a.c", []byte("int main() { return 1; }\n"))
	eng, _ := newEngine(t, repo)

	stats, err := eng.GetIndexStats(headHash(t, repo), -1)
	require.NoError(t, err)
	require.False(t, stats.HasStaged)
	require.Equal(t, engine.True, stats.HasUnstaged)
	require.Equal(t, engine.False, stats.HasUntracked)
}

func TestDeletedFile(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, "doomed.txt", []byte("bye"))
	gittest.RemoveFile(t, repo, "doomed.txt")
	eng, _ := newEngine(t, repo)

	stats, err := eng.GetIndexStats(headHash(t, repo), -1)
	require.NoError(t, err)
	require.False(t, stats.HasStaged)
	require.Equal(t, engine.True, stats.HasUnstaged)
	require.Equal(t, engine.False, stats.HasUntracked)
}

func TestStagedOnly(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	fp := gittest.CreateFile(t, repo, "STAGED.md", []byte("# staged"))
	gittest.AddFile(t, repo, fp)
	eng, _ := newEngine(t, repo)

	stats, err := eng.GetIndexStats(headHash(t, repo), -1)
	require.NoError(t, err)
	require.True(t, stats.HasStaged)
	require.Equal(t, engine.False, stats.HasUnstaged)
	require.Equal(t, engine.False, stats.HasUntracked)
}

func TestStagedDeletion(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, "doomed.txt", []byte("bye"))
	_, err := repo.Git("rm", "doomed.txt")
	require.NoError(t, err)
	eng, _ := newEngine(t, repo)

	stats, err := eng.GetIndexStats(headHash(t, repo), -1)
	require.NoError(t, err)
	require.True(t, stats.HasStaged)
	require.Equal(t, engine.False, stats.HasUnstaged)
	require.Equal(t, engine.False, stats.HasUntracked)
}

func TestDirtyScanCeiling(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CreateFile(t, repo, "newfile.txt", []byte("untracked"))
	eng, _ := newEngine(t, repo)

	// Index (1 entry) exceeds the ceiling: the dirty and untracked scans
	// are skipped and those classes are unknown, never false.
	stats, err := eng.GetIndexStats(headHash(t, repo), 0)
	require.NoError(t, err)
	require.False(t, stats.HasStaged)
	require.Equal(t, engine.Unknown, stats.HasUnstaged)
	require.Equal(t, engine.Unknown, stats.HasUntracked)
}

func TestEmptyRepoNoHead(t *testing.T) {
	repo := gittest.NewEmptyRepo(t)
	eng, _ := newEngine(t, repo)

	stats, err := eng.GetIndexStats(nil, -1)
	require.NoError(t, err)
	require.False(t, stats.HasStaged)
	require.Equal(t, engine.False, stats.HasUnstaged)
	require.Equal(t, engine.False, stats.HasUntracked)
}

func TestEmptyRepoStagedFile(t *testing.T) {
	repo := gittest.NewEmptyRepo(t)
	fp := gittest.CreateFile(t, repo, "first.txt", []byte("hi"))
	gittest.AddFile(t, repo, fp)
	eng, _ := newEngine(t, repo)

	// An empty repo with a non-empty index must have staged changes since
	// it cannot have unstaged changes.
	stats, err := eng.GetIndexStats(nil, -1)
	require.NoError(t, err)
	require.True(t, stats.HasStaged)
}

func TestRepeatedQueriesAgree(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, "src/a.c", []byte("aaa"))
	gittest.CreateFile(t, repo, "src/a.c", []byte("bbb"))
	eng, _ := newEngine(t, repo)

	head := headHash(t, repo)
	first, err := eng.GetIndexStats(head, -1)
	require.NoError(t, err)
	second, err := eng.GetIndexStats(head, -1)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestKnownFileFastPathSkipsScans(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	fp := gittest.CreateFile(t, repo, "STAGED.md", []byte("# staged"))
	gittest.AddFile(t, repo, fp)
	gittest.CommitFile(t, repo, "src/a.c", []byte("aaa"))
	gittest.CreateFile(t, repo, "src/a.c", []byte("bbb"))
	gittest.CreateFile(t, repo, "newfile.txt", []byte("untracked"))
	// CommitFile above also committed STAGED.md; stage a new edit of it so
	// all three classes are present at once.
	fp = gittest.CreateFile(t, repo, "STAGED.md", []byte("# staged again"))
	gittest.AddFile(t, repo, fp)
	eng, pool := newEngine(t, repo)

	head := headHash(t, repo)
	first, err := eng.GetIndexStats(head, -1)
	require.NoError(t, err)
	require.True(t, first.HasStaged)
	require.Equal(t, engine.True, first.HasUnstaged)
	require.Equal(t, engine.True, first.HasUntracked)
	eng.Wait(0)

	// With every slot re-confirmed by point queries, the second run must
	// not schedule a single worker task.
	before := pool.Submitted()
	second, err := eng.GetIndexStats(head, -1)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, before, pool.Submitted())
}

func TestInflightDrainsAfterQuery(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CreateFile(t, repo, "newfile.txt", []byte("untracked"))
	eng, _ := newEngine(t, repo)

	_, err := eng.GetIndexStats(headHash(t, repo), -1)
	require.NoError(t, err)
	// Wait(0) returns only when the inflight counter is back to zero.
	eng.Wait(0)
}

func TestConflictedIndexReportsUnstaged(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, "both.txt", []byte("base"))
	_, err := repo.Git("checkout", "-b", "side")
	require.NoError(t, err)
	gittest.CommitFile(t, repo, "both.txt", []byte("side"))
	_, err = repo.Git("checkout", "main")
	require.NoError(t, err)
	gittest.CommitFile(t, repo, "both.txt", []byte("main"))
	_, merr := repo.Git("merge", "side")
	require.Error(t, merr, "merge should conflict")

	eng, _ := newEngine(t, repo)
	stats, err := eng.GetIndexStats(headHash(t, repo), -1)
	require.NoError(t, err)
	require.Equal(t, engine.True, stats.HasUnstaged)
	require.Positive(t, eng.NumConflicted())
}
