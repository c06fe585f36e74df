package git

import "strings"

// NumStashes counts the entries in the stash reflog. A missing reflog
// means no stashes.
func (r *Repo) NumStashes() (int, error) {
	data, err := r.readGitFile("logs/refs/stash")
	if err != nil {
		return 0, err
	}
	if data == "" {
		return 0, nil
	}
	n := 0
	for _, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n, nil
}
