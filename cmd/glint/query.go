package main

import (
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/glintd/glint/internal/config"
	"github.com/glintd/glint/internal/daemon"
	"github.com/glintd/glint/internal/engine"
	"github.com/glintd/glint/internal/git"
	"github.com/glintd/glint/internal/workerpool"
)

var (
	branchStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	cleanStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dirtyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

var queryCmd = &cobra.Command{
	Use:   "query [dir]",
	Short: "print the status of a repository once",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			rootFlags.Directory = args[0]
		}
		repo, err := getRepo()
		if err != nil {
			return err
		}
		if repo == nil {
			return errors.New("not a git repository")
		}

		pool := workerpool.Init(config.Glint.NumThreads)
		eng := engine.New(repo, pool)
		defer eng.Close()

		s, err := daemon.Collect(repo, eng, pool, config.Glint.DirtyMaxIndexSize)
		if err != nil {
			return err
		}
		fmt.Println(render(s))
		return nil
	},
}

func render(s *daemon.Summary) string {
	var parts []string

	head := s.LocalBranch
	if head == "" && s.Commit != "" {
		head = git.ShortSha(s.Commit)
	}
	if head == "" {
		head = "(unborn)"
	}
	parts = append(parts, branchStyle.Render(head))

	if s.Tag != "" {
		parts = append(parts, dimStyle.Render("#"+s.Tag))
	}
	if s.RepoState != "" {
		parts = append(parts, alertStyle.Render(s.RepoState))
	}
	if s.RemoteBranch != "" {
		upstream := s.RemoteBranch
		if s.Ahead > 0 {
			upstream += fmt.Sprintf(" +%d", s.Ahead)
		}
		if s.Behind > 0 {
			upstream += fmt.Sprintf(" -%d", s.Behind)
		}
		parts = append(parts, dimStyle.Render(upstream))
	}

	var changes []string
	if s.HasStaged {
		changes = append(changes, dirtyStyle.Render("staged"))
	}
	if s.HasUnstaged == engine.True {
		changes = append(changes, dirtyStyle.Render("unstaged"))
	}
	if s.HasUntracked == engine.True {
		changes = append(changes, dirtyStyle.Render("untracked"))
	}
	if s.HasUnstaged == engine.Unknown || s.HasUntracked == engine.Unknown {
		changes = append(changes, dimStyle.Render("partial"))
	}
	if s.Conflicted > 0 {
		changes = append(changes, alertStyle.Render(fmt.Sprintf("%d conflicted", s.Conflicted)))
	}
	if len(changes) == 0 {
		changes = append(changes, cleanStyle.Render("clean"))
	}
	parts = append(parts, strings.Join(changes, " "))

	if s.Stashes > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("*%d", s.Stashes)))
	}
	return strings.Join(parts, " | ")
}
