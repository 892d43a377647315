// Package workdir resolves the prior project root, supporting redirection via
// .prior-root files so several checkouts can share one state directory.
package workdir

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/asreview/prior/internal/config"
)

const rootFile = ".prior-root"

// ResolveBaseDir resolves the project root:
//  1. Honor .prior-root in the current directory.
//  2. Use the current directory if it already has a .prior directory.
//  3. If inside git, check the git root for .prior-root or .prior.
//
// If no markers are found, it returns baseDir unchanged.
func ResolveBaseDir(baseDir string) string {
	if baseDir == "" {
		return baseDir
	}
	baseDir = filepath.Clean(baseDir)

	if resolved, ok := readRootFile(baseDir); ok {
		return resolved
	}
	if hasStateDir(baseDir) {
		return baseDir
	}

	gitRoot, err := gitTopLevel(baseDir)
	if err != nil || gitRoot == "" {
		return baseDir
	}
	gitRoot = filepath.Clean(gitRoot)

	if resolved, ok := readRootFile(gitRoot); ok {
		return resolved
	}
	if hasStateDir(gitRoot) {
		return gitRoot
	}

	return baseDir
}

func readRootFile(dir string) (string, bool) {
	content, err := os.ReadFile(filepath.Join(dir, rootFile))
	if err != nil {
		return "", false
	}

	resolved := strings.TrimSpace(string(content))
	if resolved == "" {
		return "", false
	}
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(dir, resolved)
	}

	return filepath.Clean(resolved), true
}

func hasStateDir(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, config.Dir))
	return err == nil && fi.IsDir()
}

func gitTopLevel(dir string) (string, error) {
	out, err := exec.Command("git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
