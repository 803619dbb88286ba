// Package gitops versions the workspace with the git binary.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Init initializes a new git repository at dir.
func Init(dir string) error {
	if out, err := git(dir, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %s: %w", out, err)
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// CommitPaths stages the given paths (relative to dir) and commits them.
// Returns the short commit hash, or "" when none of the paths changed.
func CommitPaths(dir, message, authorName, authorEmail string, paths ...string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("git commit: no paths given")
	}

	add := append([]string{"add", "--"}, paths...)
	if out, err := git(dir, add...); err != nil {
		return "", fmt.Errorf("git add: %s: %w", out, err)
	}

	// Exit status 0 means nothing staged for these paths.
	diff := append([]string{"diff", "--cached", "--quiet", "--"}, paths...)
	if _, err := git(dir, diff...); err == nil {
		return "", nil
	}

	author := fmt.Sprintf("%s <%s>", authorName, authorEmail)
	commit := []string{
		"-c", "user.name=" + authorName,
		"-c", "user.email=" + authorEmail,
		"commit", "--quiet", "-m", message, "--author", author, "--",
	}
	if out, err := git(dir, append(commit, paths...)...); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", out, err)
	}

	out, err := git(dir, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func git(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
