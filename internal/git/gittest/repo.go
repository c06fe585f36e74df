package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/glintd/glint/internal/git"
)

func init() {
	logrus.SetLevel(logrus.DebugLevel)
}

// NewTempRepo initializes a new git repository with reasonable defaults
// and a single commit of README.md on main.
func NewTempRepo(t *testing.T) *git.Repo {
	dir := filepath.Join(t.TempDir(), "local")
	require.NoError(t, os.MkdirAll(dir, 0755))

	init := exec.Command("git", "init", "--initial-branch=main")
	init.Dir = dir

	err := init.Run()
	require.NoError(t, err, "failed to initialize git repository")

	repo, err := git.OpenRepo(dir)
	require.NoError(t, err, "failed to open repo")
	require.NotNil(t, repo, "expected a repository at %s", dir)

	settings := map[string]string{
		"user.name":  "glint-test",
		"user.email": "glint-test@nonexistant",
	}
	for k, v := range settings {
		_, err = repo.Git("config", k, v)
		require.NoErrorf(t, err, "failed to set config %s=%s", k, v)
	}

	err = os.WriteFile(dir+"/README.md", []byte("# Hello World"), 0644)
	require.NoError(t, err, "failed to write README.md")

	_, err = repo.Git("add", "README.md")
	require.NoError(t, err, "failed to stage README.md")

	_, err = repo.Git("commit", "-m", "Initial commit")
	require.NoError(t, err, "failed to create initial commit")

	return repo
}

// NewEmptyRepo initializes a repository with no commits and an empty
// index (an unborn branch).
func NewEmptyRepo(t *testing.T) *git.Repo {
	dir := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.MkdirAll(dir, 0755))

	init := exec.Command("git", "init", "--initial-branch=main")
	init.Dir = dir
	require.NoError(t, init.Run(), "failed to initialize git repository")

	repo, err := git.OpenRepo(dir)
	require.NoError(t, err, "failed to open repo")
	require.NotNil(t, repo, "expected a repository at %s", dir)

	settings := map[string]string{
		"user.name":  "glint-test",
		"user.email": "glint-test@nonexistant",
	}
	for k, v := range settings {
		_, err = repo.Git("config", k, v)
		require.NoErrorf(t, err, "failed to set config %s=%s", k, v)
	}
	return repo
}

// WithRemote adds a bare clone of repo as its "origin" remote and pushes
// main with tracking.
func WithRemote(t *testing.T, repo *git.Repo) {
	remoteDir := filepath.Join(t.TempDir(), "remote")
	require.NoError(t, os.MkdirAll(remoteDir, 0755))

	remoteInit := exec.Command("git", "init", "--bare")
	remoteInit.Dir = remoteDir
	require.NoError(t, remoteInit.Run(), "failed to initialize remote git repository")

	_, err := repo.Git("remote", "add", "origin", remoteDir)
	require.NoError(t, err, "failed to set remote")

	_, err = repo.Git("push", "-u", "origin", "main")
	require.NoError(t, err, "failed to push to remote")
}
