package parser

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DiscoverFile tries each candidate filename against root in order,
// returning the contents of the first that exists and has non-zero size
// (spec.md §4.4). seen de-duplicates by st_dev/st_ino across multiple
// calls so case-insensitive filesystems don't double-process a file
// reachable under two candidate names.
func DiscoverFile(root string, candidates []string, seen map[[2]uint64]bool) (path string, data []byte, ok bool) {
	for _, candidate := range candidates {
		full := filepath.Join(root, candidate)

		info, err := os.Stat(full)
		if err != nil || info.Size() == 0 {
			continue
		}

		if seen != nil {
			if stat, ok := info.Sys().(*unix.Stat_t); ok {
				key := [2]uint64{uint64(stat.Dev), stat.Ino}
				if seen[key] {
					continue
				}
				seen[key] = true
			}
		}

		buf, err := os.ReadFile(full)
		if err != nil {
			continue
		}

		return full, buf, true
	}

	return "", nil, false
}
