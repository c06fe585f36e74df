package gittest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glintd/glint/internal/git"
)

func CreateFile(
	t *testing.T,
	repo *git.Repo,
	filename string,
	body []byte,
) string {
	fp := filepath.Join(repo.Dir(), filename)
	require.NoError(t, os.MkdirAll(filepath.Dir(fp), 0755))
	err := os.WriteFile(fp, body, 0644)
	require.NoError(t, err, "failed to write file: %s", filename)
	return fp
}

func AddFile(
	t *testing.T,
	repo *git.Repo,
	fp string,
) {
	_, err := repo.Git("add", fp)
	require.NoError(t, err, "failed to add file: %s", fp)
}

func RemoveFile(
	t *testing.T,
	repo *git.Repo,
	filename string,
) {
	err := os.Remove(filepath.Join(repo.Dir(), filename))
	require.NoError(t, err, "failed to remove file: %s", filename)
}
