package discovery

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
)

// gitStrategy lists tracked files when the root holds a .git directory
type gitStrategy struct{}

func (gitStrategy) Name() string { return StrategyGit }

func (gitStrategy) Available(env Env, root string) bool {
	if _, err := env.Stat(filepath.Join(root, ".git")); err != nil {
		return false
	}
	_, err := env.LookPath("git")
	return err == nil
}

func (gitStrategy) Discover(ctx context.Context, root string, suffixes []string) ([]string, error) {
	// -z keeps non-ASCII paths unquoted
	args := []string{"--git-dir", filepath.Join(root, ".git"), "ls-files", "-z", "--"}
	for _, suffix := range suffixes {
		args = append(args, "*"+suffix)
	}

	// ls-files prints paths relative to the working directory
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}

	var files []string
	for _, entry := range bytes.Split(output, []byte{0}) {
		if len(entry) == 0 {
			continue
		}
		files = append(files, filepath.Join(root, filepath.FromSlash(string(entry))))
	}
	return files, nil
}

// findStrategy shells out to the find utility
type findStrategy struct{}

func (findStrategy) Name() string { return StrategyFind }

func (findStrategy) Available(env Env, root string) bool {
	if env.GOOS() == "windows" {
		// find.exe on Windows is a text search tool
		return false
	}
	_, err := env.LookPath("find")
	return err == nil
}

func (findStrategy) Discover(ctx context.Context, root string, suffixes []string) ([]string, error) {
	args := []string{root, "-type", "f", "("}
	for i, suffix := range suffixes {
		if i > 0 {
			args = append(args, "-o")
		}
		args = append(args, "-iname", "*"+suffix)
	}
	args = append(args, ")")

	output, err := exec.CommandContext(ctx, "find", args...).Output()
	if err != nil {
		// find exits 1 when some directories were unreadable but still
		// prints every match it could reach
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) && ctx.Err() == nil && len(bytes.TrimSpace(output)) > 0 {
			return splitLines(output), &PartialError{Err: fmt.Errorf("find: %w", err)}
		}
		return nil, fmt.Errorf("find failed: %w", err)
	}
	return splitLines(output), nil
}

// dirStrategy uses the cmd.exe dir builtin
type dirStrategy struct{}

func (dirStrategy) Name() string { return StrategyDir }

func (dirStrategy) Available(env Env, root string) bool {
	if env.GOOS() != "windows" {
		return false
	}
	_, err := env.LookPath("cmd")
	return err == nil
}

func (dirStrategy) Discover(ctx context.Context, root string, suffixes []string) ([]string, error) {
	args := []string{"/c", "dir", "/s", "/b"}
	for _, suffix := range suffixes {
		args = append(args, filepath.Join(root, "*"+suffix))
	}

	output, err := exec.CommandContext(ctx, "cmd", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("dir failed: %w", err)
	}
	return splitLines(output), nil
}

// walkStrategy is the always-available fallback. It only matches the first
// suffix, case-sensitively.
type walkStrategy struct{}

func (walkStrategy) Name() string { return StrategyWalk }

func (walkStrategy) Available(Env, string) bool { return true }

func (walkStrategy) Discover(ctx context.Context, root string, suffixes []string) ([]string, error) {
	suffix := ".scala"
	if len(suffixes) > 0 {
		suffix = suffixes[0]
	}

	var files []string
	var skipped []error
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			skipped = append(skipped, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() && strings.HasSuffix(path, suffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	if len(skipped) > 0 {
		return files, &PartialError{Err: fmt.Errorf("skipped %d unreadable entries: %w", len(skipped), stderrors.Join(skipped...))}
	}
	return files, nil
}

// PartialError is returned alongside a usable file list when some entries
// under the root could not be read
type PartialError struct {
	Err error
}

func (e *PartialError) Error() string { return "incomplete listing: " + e.Err.Error() }

func (e *PartialError) Unwrap() error { return e.Err }

// splitLines splits tool output into non-empty trimmed lines
func splitLines(output []byte) []string {
	var lines []string
	for _, line := range bytes.Split(bytes.TrimSpace(output), []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
	}
	return lines
}
