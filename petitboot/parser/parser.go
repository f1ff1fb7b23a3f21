// Package parser is the format-parser framework of spec.md §4.4: a
// key/value tokenizer, a per-parser global-option table, file discovery
// across candidate paths, and the Parser/DiscoverContext contracts that
// every format backend implements against.
package parser

import (
	"github.com/petitboot/petitboot/petitboot/resolve"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
	"github.com/petitboot/petitboot/shared/api"
)

// Device is the minimal view of a device a parser needs: its identity and
// a mounted root to read config files from. It is satisfied by
// discover.Device without creating an import cycle between parser and
// discover.
type Device interface {
	ID() string
	MountPath() string
	IsMounted() bool
}

// DiscoverContext is passed to every parser invocation (spec.md §4.4): the
// device being scanned, the URL the configuration was fetched from (for
// network-delivered formats), and the triggering event, if any.
type DiscoverContext struct {
	Device  Device
	ConfURL *petiturl.URL
	Event   *api.Event

	options []*resolve.BootOption
}

// AddBootOption is the callback parsers use to publish a discovered,
// possibly-unresolved boot option (spec.md §4.4).
func (c *DiscoverContext) AddBootOption(opt *resolve.BootOption) {
	c.options = append(c.options, opt)
}

// Options returns every boot option produced during this discovery pass.
func (c *DiscoverContext) Options() []*resolve.BootOption {
	return c.options
}

// Parser is a named strategy with an optional list of candidate filenames
// and a parse function; it may optionally resolve its own deferred
// resource variants for the sweep in petitboot/resolve (spec.md §4.4,
// §4.6).
type Parser interface {
	Name() string
	CandidateFiles() []string
	Parse(ctx *DiscoverContext, buf []byte) error
	ResolveResource(dev resolve.DeviceLookup, res *resolve.Resource) bool
}

// Registry is the ordered set of known parsers; ordering defines priority
// (spec.md §9, "Parser self-registration via linker sections").
var Registry []Parser

// Register appends p to the global parser registry. Format packages call
// this from an init function, so the registry order is the order in which
// those packages are initialized.
func Register(p Parser) {
	Registry = append(Registry, p)
}
