// Package pxe implements the network-delivered PXELINUX config dialect
// (spec.md §4.5): LABEL/KERNEL/APPEND entries whose paths resolve against
// the DHCP-provided config URL rather than a mounted filesystem.
package pxe

import (
	"fmt"
	"strings"

	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/resolve"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
)

// Name is the parser's registry name.
const Name = "pxe"

func init() {
	parser.Register(&Parser{})
}

// Parser implements parser.Parser for PXE configs. Unlike the other
// format parsers, its candidates are not read from the device's mounted
// root (PXE has none); discover's Handler.OnURL fetches the config via
// loader and runs it through ParseAt with ctx.ConfURL set.
type Parser struct{}

// Name returns the parser's registry name.
func (p *Parser) Name() string { return Name }

// CandidateFiles returns nil: PXE configs are located via DHCP, not by
// scanning a mounted filesystem.
func (p *Parser) CandidateFiles() []string { return nil }

// ResolveResource always reports resolved: PXE entries resolve against
// the config's own base URL at parse time.
func (p *Parser) ResolveResource(dev resolve.DeviceLookup, res *resolve.Resource) bool {
	return res == nil || res.Kind == resolve.KindResolved
}

type entry struct {
	label      string
	kernel     string
	appendLine string
}

// Parse tokenizes buf as a PXELINUX config; every path is joined against
// ctx.ConfURL (spec.md §4.5).
func (p *Parser) Parse(ctx *parser.DiscoverContext, buf []byte) error {
	var cur *entry
	var entries []*entry
	globalAppend := ""

	flush := func() {
		if cur != nil {
			entries = append(entries, cur)
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
			cur = &entry{label: value}
		case "KERNEL", "LINUX":
			if cur != nil {
				cur.kernel = value
			}
		case "APPEND":
			if cur != nil {
				cur.appendLine = value
			} else {
				globalAppend = value
			}
		}
	}
	flush()

	deviceID := ctx.Device.ID()

	for _, e := range entries {
		if e.kernel == "" {
			continue
		}

		args := globalAppend
		if e.appendLine != "" {
			if args != "" {
				args += " " + e.appendLine
			} else {
				args = e.appendLine
			}
		}

		opt := &resolve.BootOption{
			ID:        fmt.Sprintf("%s#%s", deviceID, e.label),
			Name:      e.label,
			BootArgs:  args,
			DeviceID:  deviceID,
			Resolver:  p,
			BootImage: &resolve.Resource{Kind: resolve.KindResolved, URL: petiturl.Join(ctx.ConfURL, e.kernel)},
		}

		ctx.AddBootOption(opt)
	}

	return nil
}
