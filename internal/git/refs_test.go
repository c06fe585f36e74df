package git_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glintd/glint/internal/git"
	"github.com/glintd/glint/internal/git/gittest"
)

func TestHeadOnBranch(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	ref, err := repo.Head()
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.False(t, ref.Hash().IsZero())
	require.Equal(t, "main", git.LocalBranchName(ref))
}

func TestHeadUnborn(t *testing.T) {
	repo := gittest.NewEmptyRepo(t)
	ref, err := repo.Head()
	require.NoError(t, err)
	require.NotNil(t, ref, "unborn branch still has a symbolic HEAD")
	require.True(t, ref.Hash().IsZero())
	require.Equal(t, "main", git.LocalBranchName(ref))
}

func TestLocalBranchNameDetached(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	sha, err := repo.Git("rev-parse", "HEAD")
	require.NoError(t, err)
	_, err = repo.Git("checkout", "--detach", sha)
	require.NoError(t, err)

	ref, err := repo.Head()
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Equal(t, "", git.LocalBranchName(ref))
}

func TestUpstreamAbsent(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	upstream, err := repo.Upstream("main")
	require.NoError(t, err)
	require.Nil(t, upstream)
	require.Equal(t, "", repo.RemoteName("main"))
	require.Equal(t, "", repo.RemoteURL(""))
}

func TestUpstreamPresent(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.WithRemote(t, repo)

	upstream, err := repo.Upstream("main")
	require.NoError(t, err)
	require.NotNil(t, upstream)
	require.Equal(t, "main", git.RemoteBranchName(upstream))
	require.Equal(t, "origin", repo.RemoteName("main"))
	require.NotEqual(t, "", repo.RemoteURL("origin"))
}

func TestRemoteSlug(t *testing.T) {
	require.Equal(t, "my-org/my-repo",
		git.RemoteSlug("git@github.com:my-org/my-repo.git"))
	require.Equal(t, "my-org/my-repo",
		git.RemoteSlug("https://github.com/my-org/my-repo.git"))
	require.Equal(t, "", git.RemoteSlug(""))
}

func TestCountRange(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	gittest.WithRemote(t, repo)
	gittest.CommitFile(t, repo, "one.txt", []byte("1"))
	gittest.CommitFile(t, repo, "two.txt", []byte("2"))

	ahead, err := repo.CountRange("refs/remotes/origin/main..HEAD")
	require.NoError(t, err)
	require.Equal(t, 2, ahead)

	behind, err := repo.CountRange("HEAD..refs/remotes/origin/main")
	require.NoError(t, err)
	require.Equal(t, 0, behind)
}

func TestNumStashes(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	n, err := repo.NumStashes()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	gittest.CreateFile(t, repo, "README.md", []byte("# stashed change"))
	_, err = repo.Git("stash")
	require.NoError(t, err)

	n, err = repo.NumStashes()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRepoStateNone(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	require.Equal(t, "", repo.RepoState())
}

func TestRepoStateUnknownAction(t *testing.T) {
	repo := gittest.NewTempRepo(t)
	// A sequencer directory with no matching head file is an operation
	// the named states don't claim.
	seq := filepath.Join(repo.GitDir(), "sequencer")
	require.NoError(t, os.MkdirAll(seq, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(seq, "todo"), []byte("pick deadbeef\n"), 0644))
	require.Equal(t, "action", repo.RepoState())
}

func TestRepoStateMerge(t *testing.T) {
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

	require.Equal(t, "merge", repo.RepoState())
}
