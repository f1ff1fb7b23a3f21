// Package syslinux implements the syslinux/pxelinux/isolinux config
// dialect (spec.md §4.5): LABEL-delimited entries, global and per-entry
// APPEND, INITRD, and INCLUDE with a bounded depth.
package syslinux

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/resolve"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
)

// Name is the parser's registry name.
const Name = "syslinux"

// MaxIncludeDepth bounds INCLUDE recursion (spec.md §4.5: "limited to
// depth 16").
const MaxIncludeDepth = 16

func init() {
	parser.Register(&Parser{})
}

// Parser implements parser.Parser for syslinux-family configs.
type Parser struct{}

// Name returns the parser's registry name.
func (p *Parser) Name() string { return Name }

// CandidateFiles lists the config filenames this parser looks for.
func (p *Parser) CandidateFiles() []string {
	return []string{
		"/syslinux.cfg",
		"/syslinux/syslinux.cfg",
		"/isolinux/isolinux.cfg",
		"/boot/syslinux/syslinux.cfg",
	}
}

// ResolveResource always reports resolved: syslinux entries only ever
// reference files on their own device.
func (p *Parser) ResolveResource(dev resolve.DeviceLookup, res *resolve.Resource) bool {
	return res == nil || res.Kind == resolve.KindResolved
}

// unsupportedKernelExt is the set of loader-extension kernels that don't
// name a Linux image and are ignored (spec.md §4.5).
var unsupportedKernelExt = map[string]bool{
	".c32": true,
	".com": true,
}

type entry struct {
	label       string
	hasLabel    bool
	kernel      string
	initrd      string
	appendLine  string
	appendStop  bool // "APPEND -": suppress global append for this entry
}

// parseState threads global options and accumulated entries through
// recursive INCLUDE expansion.
type parseState struct {
	ctx         *parser.DiscoverContext
	resolver    resolve.ResourceResolver
	readFile    func(relPath string) ([]byte, error)
	implicit    bool
	globalAppnd string
	entries     []*entry
	seenDefault string
}

// Parse tokenizes buf as the root syslinux config and recursively expands
// INCLUDE directives relative to the device's mount root.
func (p *Parser) Parse(ctx *parser.DiscoverContext, buf []byte) error {
	mountPath := ctx.Device.MountPath()

	st := &parseState{
		ctx:      ctx,
		resolver: p,
		implicit: true,
		readFile: func(relPath string) ([]byte, error) {
			return readRelative(mountPath, relPath)
		},
	}

	if err := st.parseLines(buf, 0); err != nil {
		return err
	}

	deviceID := ctx.Device.ID()

	for _, e := range st.entries {
		if e.kernel == "" {
			continue
		}
		if !e.hasLabel && !st.implicit {
			continue
		}
		if hasUnsupportedExt(e.kernel) {
			continue
		}

		label := e.label
		if label == "" {
			label = strings.TrimSuffix(path.Base(e.kernel), path.Ext(e.kernel))
		}

		args := st.globalAppnd
		if e.appendStop {
			args = ""
		}
		if e.appendLine != "" {
			if args != "" {
				args += " " + e.appendLine
			} else {
				args = e.appendLine
			}
		}

		opt := &resolve.BootOption{
			ID:        fmt.Sprintf("%s#%s", deviceID, label),
			Name:      label,
			BootArgs:  args,
			DeviceID:  deviceID,
			Resolver:  st.resolver,
			IsDefault: st.seenDefault != "" && st.seenDefault == label,
			BootImage: &resolve.Resource{Kind: resolve.KindResolved, URL: fileURL(mountPath, e.kernel)},
		}

		if e.initrd != "" {
			opt.Initrd = &resolve.Resource{Kind: resolve.KindResolved, URL: fileURL(mountPath, e.initrd)}
		}

		ctx.AddBootOption(opt)
	}

	return nil
}

func hasUnsupportedExt(p string) bool {
	return unsupportedKernelExt[strings.ToLower(path.Ext(p))]
}

func fileURL(mountPath, p string) *petiturl.URL {
	return petiturl.Parse("file://" + mountPath + "/" + strings.TrimPrefix(p, "/"))
}

func readRelative(mountPath, relPath string) ([]byte, error) {
	return os.ReadFile(mountPath + "/" + strings.TrimPrefix(relPath, "/"))
}

// parseLines walks buf line by line, dispatching on the leading directive
// keyword; depth tracks INCLUDE nesting against MaxIncludeDepth.
func (st *parseState) parseLines(buf []byte, depth int) error {
	if depth > MaxIncludeDepth {
		return fmt.Errorf("syslinux: include depth exceeds %d", MaxIncludeDepth)
	}

	var cur *entry

	flush := func() {
		if cur != nil {
			st.entries = append(st.entries, cur)
		}
	}

	for _, raw := range strings.Split(string(buf), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		directive := strings.ToUpper(fields[0])
		value := ""
		if len(fields) == 2 {
			value = strings.TrimSpace(fields[1])
		}

		switch directive {
		case "LABEL":
			flush()
			cur = &entry{label: value, hasLabel: true}
		case "LINUX", "KERNEL":
			if cur != nil {
				cur.kernel = value
			}
		case "INITRD":
			if cur != nil {
				cur.initrd = value
			}
		case "APPEND":
			if value == "-" {
				if cur != nil {
					cur.appendStop = true
				}
				continue
			}
			if cur != nil {
				cur.appendLine = value
			} else {
				st.globalAppnd = value
			}
		case "DEFAULT":
			st.seenDefault = value
		case "IMPLICIT":
			st.implicit = value != "0"
		case "INCLUDE":
			flush()
			cur = nil
			data, err := st.readFile(value)
			if err != nil {
				continue
			}
			if err := st.parseLines(data, depth+1); err != nil {
				return err
			}
		}
	}

	flush()
	return nil
}
