// Package gitinfo stamps builds with the commit of the project checkout.
package gitinfo

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
)

// Info identifies the checked-out commit.
type Info struct {
	Commit     string    `json:"commit"`
	Branch     string    `json:"branch,omitempty"` // empty on a detached HEAD
	Subject    string    `json:"subject,omitempty"`
	CommitTime time.Time `json:"commit_time"`
}

// Short returns the abbreviated commit hash.
func (i *Info) Short() string {
	if len(i.Commit) > 8 {
		return i.Commit[:8]
	}
	return i.Commit
}

// Describe reads HEAD of the repository containing path. It returns nil
// without error when path is not inside a git repository.
func Describe(path string) (*Info, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if stderrors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}

	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	info := &Info{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		info.Branch = ref.Name().Short()
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", info.Short(), err)
	}
	info.Subject, _, _ = strings.Cut(strings.TrimSpace(commit.Message), "\n")
	info.CommitTime = commit.Committer.When.UTC()
	return info, nil
}
