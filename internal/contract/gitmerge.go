package contract

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// GitMergeFile is the default MergeHelper. It shells out to `git
// merge-file`, writing base/ours/theirs to a scratch directory the way
// external three-way tools are invoked elsewhere in this codebase:
// arguments on disk, exit code signaling conflict, stdout/stderr captured
// for diagnostics.
type GitMergeFile struct {
	// GitPath is the git binary to invoke; defaults to "git" on PATH.
	GitPath string
	// Timeout bounds the subprocess; zero means no timeout.
	Timeout time.Duration
}

// Merge implements MergeHelper.
func (g GitMergeFile) Merge(ctx context.Context, base, ours, theirs string) (MergeResult, error) {
	gitPath := g.GitPath
	if gitPath == "" {
		gitPath = "git"
	}

	dir, err := os.MkdirTemp("", "corectx-merge-*")
	if err != nil {
		return MergeResult{}, err
	}
	defer os.RemoveAll(dir)

	oursPath := filepath.Join(dir, "ours")
	basePath := filepath.Join(dir, "base")
	theirsPath := filepath.Join(dir, "theirs")

	if err := os.WriteFile(oursPath, []byte(ours), 0644); err != nil {
		return MergeResult{}, err
	}
	if err := os.WriteFile(basePath, []byte(base), 0644); err != nil {
		return MergeResult{}, err
	}
	if err := os.WriteFile(theirsPath, []byte(theirs), 0644); err != nil {
		return MergeResult{}, err
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	// With -p, git merge-file prints the merged result to stdout and leaves
	// the scratch files untouched. It exits 0 on a clean merge and with a
	// positive code (the number of conflicting hunks) on conflict; any
	// other failure is returned as an error.
	cmd := exec.CommandContext(ctx, gitPath, "merge-file", "-p", oursPath, basePath, theirsPath)
	out, runErr := cmd.Output()

	result := MergeResult{Merged: string(out), RawOutput: string(out)}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() > 0 {
			result.Conflict = true
			return result, nil
		}
		return result, runErr
	}
	return result, nil
}
