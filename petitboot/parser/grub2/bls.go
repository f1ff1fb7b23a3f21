package grub2

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/petitboot/petitboot/petitboot/resolve"
)

// cmdBlscfg implements the "blscfg" command: scan {mountPath}/loader/entries
// for *.conf files in the BootLoaderSpec format and turn each into a boot
// option, newest version first (spec.md §4.5).
func (e *evaluator) cmdBlscfg() {
	dir := filepath.Join(e.mountPath, "loader", "entries")

	names, err := readConfNames(dir)
	if err != nil {
		return
	}

	sort.Slice(names, func(i, j int) bool {
		return strverscmp(names[i], names[j]) > 0
	})

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}

		entry := parseBLSEntry(data)
		if entry.linux == "" {
			continue
		}

		id := strings.TrimSuffix(name, ".conf")

		opt := &resolve.BootOption{
			ID:       fmt.Sprintf("%s#%s", e.deviceID, id),
			Name:     entry.title,
			BootArgs: entry.options,
			DeviceID: e.deviceID,
			Resolver: e.resolver,
			BootImage: &resolve.Resource{
				Kind: resolve.KindResolved,
				URL:  fileURL(e.mountPath, entry.linux),
			},
		}

		if entry.initrd != "" {
			opt.Initrd = &resolve.Resource{Kind: resolve.KindResolved, URL: fileURL(e.mountPath, entry.initrd)}
		}
		if entry.devicetree != "" {
			opt.DeviceTree = &resolve.Resource{Kind: resolve.KindResolved, URL: fileURL(e.mountPath, entry.devicetree)}
		}

		opt.IsDefault = e.defaultID == id || e.defaultID == name

		e.ctx.AddBootOption(opt)
	}
}

func readConfNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, ent := range entries {
		if !ent.IsDir() && strings.HasSuffix(ent.Name(), ".conf") {
			names = append(names, ent.Name())
		}
	}

	return names, nil
}

type blsEntry struct {
	title      string
	linux      string
	initrd     string
	devicetree string
	options    string
}

// parseBLSEntry parses a BootLoaderSpec "type #1" entry file: one
// "key value" pair per line.
func parseBLSEntry(data []byte) blsEntry {
	var e blsEntry

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}

		key, value := fields[0], strings.TrimSpace(fields[1])

		switch key {
		case "title":
			e.title = value
		case "linux":
			e.linux = value
		case "initrd":
			e.initrd = value
		case "devicetree":
			e.devicetree = value
		case "options":
			e.options = value
		}
	}

	return e
}

// strverscmp implements the subset of glibc's version-aware string
// comparison BLS ordering relies on: runs of digits compare numerically,
// everything else compares byte-wise.
func strverscmp(a, b string) int {
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			ni, ai := scanDigits(a, i)
			nj, bj := scanDigits(b, j)
			if ai != bj {
				if ai < bj {
					return -1
				}
				return 1
			}
			i, j = ni, nj
			continue
		}

		if a[i] != b[j] {
			if a[i] < b[j] {
				return -1
			}
			return 1
		}

		i++
		j++
	}

	return len(a) - len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func scanDigits(s string, i int) (next int, value int) {
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	for k := start; k < i; k++ {
		value = value*10 + int(s[k]-'0')
	}
	return i, value
}
