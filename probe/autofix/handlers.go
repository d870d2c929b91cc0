package autofix

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/wayfind/Cortex/domain/report"
)

// DefaultHandlerSet wires the handlers for every L1 issue type named in
// spec.md §4.4 into a fresh Fixer. Each handler's worst case is a no-op:
// failed cleanup leaves the filesystem exactly as it was.
func DefaultHandlerSet(workspace string, timeout time.Duration) *Fixer {
	f := New()
	f.Register("disk_space_low", tempCleanupHandler(workspace, timeout))
	f.Register("temp_files_cleanup", tempCleanupHandler(workspace, timeout))
	f.Register("log_rotation_needed", logRotationHandler(timeout))
	f.Register("cache_cleanup", cachePurgeHandler(timeout))
	f.Register("old_package_cleanup", packageCleanupHandler(timeout))
	return f
}

func runWithTimeout(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func tempCleanupHandler(workspace string, timeout time.Duration) Handler {
	return func(ctx context.Context, issue report.IssueReport) FixResult {
		dir := filepath.Join(workspace, "tmp")
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return FixResult{Success: true, Detail: "no tmp directory present, nothing to clean"}
			}
			return FixResult{Success: false, Detail: fmt.Sprintf("read tmp dir: %v", err)}
		}

		removed := 0
		cutoff := time.Now().Add(-24 * time.Hour)
		for _, e := range entries {
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if os.Remove(filepath.Join(dir, e.Name())) == nil {
				removed++
			}
		}
		return FixResult{Success: true, Detail: fmt.Sprintf("removed %d stale temp file(s) from %s", removed, dir)}
	}
}

func logRotationHandler(timeout time.Duration) Handler {
	return func(ctx context.Context, issue report.IssueReport) FixResult {
		out, err := runWithTimeout(ctx, timeout, "logrotate", "-f", "/etc/logrotate.conf")
		if err != nil {
			return FixResult{Success: false, Detail: fmt.Sprintf("logrotate failed: %v: %s", err, out)}
		}
		return FixResult{Success: true, Detail: "log rotation forced via logrotate"}
	}
}

func cachePurgeHandler(timeout time.Duration) Handler {
	return func(ctx context.Context, issue report.IssueReport) FixResult {
		out, err := runWithTimeout(ctx, timeout, "find", "/var/cache", "-type", "f", "-mtime", "+7", "-delete")
		if err != nil {
			return FixResult{Success: false, Detail: fmt.Sprintf("cache purge failed: %v: %s", err, out)}
		}
		return FixResult{Success: true, Detail: "purged cache entries older than 7 days"}
	}
}

func packageCleanupHandler(timeout time.Duration) Handler {
	return func(ctx context.Context, issue report.IssueReport) FixResult {
		out, err := runWithTimeout(ctx, timeout, "apt-get", "autoremove", "-y")
		if err != nil {
			return FixResult{Success: false, Detail: fmt.Sprintf("package cleanup failed: %v: %s", err, out)}
		}
		return FixResult{Success: true, Detail: "removed unused packages via apt-get autoremove"}
	}
}
