package git

import (
	"io"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/sirupsen/logrus"
)

// Repo is a read-only handle to an opened repository. It is safe for
// concurrent use by multiple workers: all go-git accesses are reads.
type Repo struct {
	gg      *gogit.Repository
	repoDir string
	wtfs    billy.Filesystem
	dotgit  billy.Filesystem
	log     logrus.FieldLogger
}

// OpenRepo opens the repository containing dir. It returns (nil, nil) when
// dir is not inside a git repository (including bare repositories, which
// have no working tree to report status for).
//
// If GIT_DIR is set in the environment it takes precedence over dir, the
// same way git itself resolves the repository.
func OpenRepo(dir string) (*Repo, error) {
	if gitDir := os.Getenv("GIT_DIR"); gitDir != "" {
		dir = gitDir
	}
	gg, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIff(err, "failed to open repository at %q", dir)
	}

	wt, err := gg.Worktree()
	if errors.Is(err, gogit.ErrIsBareRepository) {
		logrus.WithField("dir", dir).Debug("bare repository, nothing to report")
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIff(err, "failed to open worktree at %q", dir)
	}

	fss, ok := gg.Storer.(*filesystem.Storage)
	if !ok {
		return nil, errors.New("repository storage is not filesystem-backed")
	}

	repoDir := wt.Filesystem.Root()
	return &Repo{
		gg:      gg,
		repoDir: repoDir,
		wtfs:    wt.Filesystem,
		dotgit:  fss.Filesystem(),
		log:     logrus.WithFields(logrus.Fields{"repo": path.Base(repoDir)}),
	}, nil
}

func (r *Repo) Dir() string {
	return r.repoDir
}

func (r *Repo) GitDir() string {
	return r.dotgit.Root()
}

// Git runs a git command in the repository's working directory. The status
// engine itself never shells out; this exists for tests and test helpers.
func (r *Repo) Git(args ...string) (string, error) {
	startTime := time.Now()
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoDir
	out, err := cmd.Output()
	log := r.log.WithField("duration", time.Since(startTime))
	if err != nil {
		stderr := "<no output>"
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			stderr = string(exitError.Stderr)
		}
		log.Debugf("git %s failed: %s: %s", args, err, stderr)
		return strings.TrimSpace(string(out)), errors.Wrapf(err, "git %s", args[0])
	}

	log.Debugf("git %s", args)
	return strings.TrimSpace(string(out)), nil
}

// readGitFile reads a file from the .git directory. Returns "" and no
// error if the file does not exist.
func (r *Repo) readGitFile(name string) (string, error) {
	f, err := r.dotgit.Open(name)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// hasGitFile reports whether a file or directory exists in the .git
// directory.
func (r *Repo) hasGitFile(name string) bool {
	_, err := r.dotgit.Stat(name)
	return err == nil
}
