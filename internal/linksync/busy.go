package linksync

import (
	"context"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/process"
)

const defaultMaxDeferrals = 10

// BusyChecker reports whether another process holds a file open.
type BusyChecker interface {
	InUse(ctx context.Context, path string) (bool, error)
}

// OpenFileChecker scans the open file tables of all visible processes.
// Processes it may not inspect are skipped.
type OpenFileChecker struct {
	self int32
}

func NewOpenFileChecker() *OpenFileChecker {
	return &OpenFileChecker{self: int32(os.Getpid())}
}

func (c *OpenFileChecker) InUse(ctx context.Context, path string) (bool, error) {
	target := filepath.Clean(path)

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, err
	}

	for _, p := range procs {
		if p.Pid == c.self {
			continue
		}
		files, err := p.OpenFilesWithContext(ctx)
		if err != nil {
			continue
		}
		for _, f := range files {
			if filepath.Clean(f.Path) == target {
				return true, nil
			}
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
	}
	return false, nil
}
