package gittest

import (
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/glintd/glint/internal/git"
)

func CommitFile(t *testing.T, repo *git.Repo, filename string, body []byte) {
	filepath := path.Join(repo.Dir(), filename)
	err := os.MkdirAll(path.Dir(filepath), 0755)
	require.NoError(t, err, "failed to create directory for file: %s", filename)
	err = os.WriteFile(filepath, body, 0644)
	require.NoError(t, err, "failed to write file: %s", filename)

	_, err = repo.Git("add", filepath)
	require.NoError(t, err, "failed to add file: %s", filename)

	msg := fmt.Sprintf("write file %s", filename)
	_, err = repo.Git("commit", "-m", msg)
	require.NoError(t, err, "failed to commit file: %s", filename)
}
