// Package grub2 implements the grub2 bootloader config dialect: a small
// shell-like scripting language (set/if/for/function/menuentry), plus the
// blscfg command that pulls entries from BootLoaderSpec drop-in files
// (spec.md §4.5).
package grub2

import (
	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/resolve"
)

// Name is the parser's registry name.
const Name = "grub2"

func init() {
	parser.Register(&Parser{})
}

// Parser implements parser.Parser for grub2 configs.
type Parser struct{}

// Name returns the parser's registry name.
func (p *Parser) Name() string { return Name }

// CandidateFiles lists the config filenames this parser looks for, in
// the several locations grub2 is commonly installed to.
func (p *Parser) CandidateFiles() []string {
	return []string{
		"/boot/grub/grub.cfg",
		"/boot/grub2/grub.cfg",
		"/grub/grub.cfg",
		"/grub2/grub.cfg",
	}
}

// ResolveResource resolves a grub2 Grub2Pending resource against a
// device directory, delegating to resolve.ResolveGrub2.
func (p *Parser) ResolveResource(dev resolve.DeviceLookup, res *resolve.Resource) bool {
	return resolve.ResolveGrub2(dev, res)
}

// Parse parses buf as a grub.cfg script and evaluates it, appending one
// boot option per menuentry (or per BLS entry reached via blscfg) to ctx.
func (p *Parser) Parse(ctx *parser.DiscoverContext, buf []byte) error {
	block := Parse(buf)
	Eval(ctx, p, block)
	return nil
}
