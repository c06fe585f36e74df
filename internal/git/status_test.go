package git_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glintd/glint/internal/git"
	"github.com/glintd/glint/internal/git/gittest"
)

func readIndex(t *testing.T, repo *git.Repo) *git.IndexSnapshot {
	t.Helper()
	idx, err := repo.ReadIndex()
	require.NoError(t, err)
	return idx
}

func TestStatusFileClean(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	flags, err := repo.StatusFile(readIndex(t, repo), "README.md")
	require.NoError(t, err)
	require.Zero(t, flags)
}

func TestStatusFileStagedNew(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	fp := gittest.CreateFile(t, repo, "new.txt", []byte("new"))
	gittest.AddFile(t, repo, fp)

	flags, err := repo.StatusFile(readIndex(t, repo), "new.txt")
	require.NoError(t, err)
	require.NotZero(t, flags&git.MaskStaged)
	require.Zero(t, flags&git.MaskUnstaged)
	require.Zero(t, flags&git.MaskUntracked)
}

func TestStatusFileStagedAndModified(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	fp := gittest.CreateFile(t, repo, "new.txt", []byte("staged content"))
	gittest.AddFile(t, repo, fp)
	gittest.CreateFile(t, repo, "new.txt", []byte("edited again after staging"))

	flags, err := repo.StatusFile(readIndex(t, repo), "new.txt")
	require.NoError(t, err)
	require.NotZero(t, flags&git.MaskStaged)
	require.NotZero(t, flags&git.MaskUnstaged)
}

func TestStatusFileUnstagedModified(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, "a.txt", []byte("one"))
	gittest.CreateFile(t, repo, "a.txt", []byte("two"))

	flags, err := repo.StatusFile(readIndex(t, repo), "a.txt")
	require.NoError(t, err)
	require.Zero(t, flags&git.MaskStaged)
	require.NotZero(t, flags&git.MaskUnstaged)
}

func TestStatusFileDeleted(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, "a.txt", []byte("one"))
	gittest.RemoveFile(t, repo, "a.txt")

	flags, err := repo.StatusFile(readIndex(t, repo), "a.txt")
	require.NoError(t, err)
	require.NotZero(t, flags&git.StatusWtDeleted)
}

func TestStatusFileUntracked(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CreateFile(t, repo, "stray.txt", []byte("stray"))

	flags, err := repo.StatusFile(readIndex(t, repo), "stray.txt")
	require.NoError(t, err)
	require.Equal(t, git.StatusWtNew, flags&git.MaskUntracked)
	require.Zero(t, flags&git.MaskStaged)
	require.Zero(t, flags&git.MaskUnstaged)
}

func TestStatusFileIgnored(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, ".gitignore", []byte("*.log\n"))
	gittest.CreateFile(t, repo, "noise.log", []byte("zzz"))

	flags, err := repo.StatusFile(readIndex(t, repo), "noise.log")
	require.NoError(t, err)
	require.Zero(t, flags)
}

func TestStatusFileMissing(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	flags, err := repo.StatusFile(readIndex(t, repo), "does-not-exist.txt")
	require.NoError(t, err)
	require.Zero(t, flags)
}

func TestStatusFileDirectoryErrors(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.CommitFile(t, repo, "sub/file.txt", []byte("x"))

	_, err := repo.StatusFile(readIndex(t, repo), "sub")
	require.Error(t, err)
}
