// Package kboot implements the kboot bootloader config dialect (spec.md
// §4.5): key=value pairs, where "image" starts a new option. Global
// options (root, initrd, dtb, video, default) propagate to options that
// don't override them.
package kboot

import (
	"fmt"
	"strings"

	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/resolve"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
)

// Name is the parser's registry name.
const Name = "kboot"

// Parser implements parser.Parser for the kboot dialect. yaboot uses the
// identical grammar (spec.md §4.5 documents them together); the yaboot
// package registers a second instance with its own name and candidate
// files via New.
type Parser struct {
	name       string
	candidates []string
}

func init() {
	parser.Register(New(Name, []string{"/etc/kboot.conf", "/kboot.conf"}))
}

// New returns a kboot-grammar parser registered under name, looking for
// candidates on a device's mounted root.
func New(name string, candidates []string) *Parser {
	return &Parser{name: name, candidates: candidates}
}

// Name returns the parser's registry name.
func (p *Parser) Name() string { return p.name }

// CandidateFiles lists the config filenames this parser looks for.
func (p *Parser) CandidateFiles() []string {
	return p.candidates
}

// ResolveResource resolves a kboot resource; kboot never produces a
// deferred resource (it can only reference its own device), so this
// always reports "already resolved".
func (p *Parser) ResolveResource(dev resolve.DeviceLookup, res *resolve.Resource) bool {
	return res == nil || res.Kind == resolve.KindResolved
}

type pendingOption struct {
	label  string
	image  string
	initrd string
	dtb    string
	video  string
	append string
}

// Parse tokenizes buf and builds one boot option per "image=" entry,
// applying global-option propagation and the append/ro/rw normalization
// of spec.md §4.5.
func (p *Parser) Parse(ctx *parser.DiscoverContext, buf []byte) error {
	globals := parser.NewGlobalOptions()

	var current *pendingOption
	var entries []*pendingOption

	flush := func() {
		if current != nil {
			entries = append(entries, current)
		}
	}

	for _, tok := range parser.Tokenize(buf, "=") {
		switch tok.Name {
		case "image", "linux":
			flush()
			// Default label is the directive name itself
			// ("image" or "linux"); an explicit "label=" below
			// overrides it.
			current = &pendingOption{label: tok.Name, image: tok.Value}
		case "label":
			if current != nil {
				current.label = tok.Value
			}
		case "initrd":
			if current != nil {
				current.initrd = tok.Value
			} else {
				globals.Set("initrd", tok.Value)
			}
		case "dtb":
			if current != nil {
				current.dtb = tok.Value
			} else {
				globals.Set("dtb", tok.Value)
			}
		case "video":
			if current != nil {
				current.video = tok.Value
			} else {
				globals.Set("video", tok.Value)
			}
		case "root":
			globals.Set("root", tok.Value)
		case "append":
			if current != nil {
				if current.append != "" {
					current.append += " " + tok.Value
				} else {
					current.append = tok.Value
				}
			}
		case "default":
			globals.Set("default", tok.Value)
		}
	}
	flush()

	deviceID := ctx.Device.ID()

	for _, e := range entries {
		bootArgs := buildBootArgs(e, globals)

		opt := &resolve.BootOption{
			ID:       fmt.Sprintf("%s#%s", deviceID, e.label),
			Name:     e.label,
			BootArgs: bootArgs,
			DeviceID: deviceID,
			Resolver: p,
		}

		opt.IsDefault = e.label == globals.Get("default")

		mountPath := ctx.Device.MountPath()
		opt.BootImage = &resolve.Resource{Kind: resolve.KindResolved, URL: petiturl.Parse("file://" + mountPath + "/" + strings.TrimPrefix(e.image, "/"))}

		initrd := e.initrd
		if initrd == "" {
			initrd = globals.Get("initrd")
		}
		if initrd != "" {
			opt.Initrd = &resolve.Resource{Kind: resolve.KindResolved, URL: petiturl.Parse("file://" + mountPath + "/" + strings.TrimPrefix(initrd, "/"))}
		}

		dtb := e.dtb
		if dtb == "" {
			dtb = globals.Get("dtb")
		}
		if dtb != "" {
			opt.DeviceTree = &resolve.Resource{Kind: resolve.KindResolved, URL: petiturl.Parse("file://" + mountPath + "/" + strings.TrimPrefix(dtb, "/"))}
		}

		ctx.AddBootOption(opt)
	}

	return nil
}

// buildBootArgs derives boot_args from the "linux=" style inline string
// (root=... initrd=... trailing inline args) and the append chain,
// normalizing a trailing ro/rw token (spec.md §4.5).
func buildBootArgs(e *pendingOption, globals *parser.GlobalOptions) string {
	var parts []string

	// The kboot "image" value may itself be a single-line spec of the
	// form "/vmlinux root=LABEL=boot initrd=/initrd"; split it and pull
	// out the kernel path (already consumed as e.image) plus any
	// inline root=/initrd= overrides, leaving the rest as boot args.
	fields := strings.Fields(e.image)
	if len(fields) > 1 {
		e.image = fields[0]
		for _, f := range fields[1:] {
			switch {
			case strings.HasPrefix(f, "root="):
				parts = append(parts, f)
			case strings.HasPrefix(f, "initrd="):
				e.initrd = strings.TrimPrefix(f, "initrd=")
			default:
				parts = append(parts, f)
			}
		}
	}

	if len(parts) == 0 {
		if root := globals.Get("root"); root != "" {
			parts = append(parts, "root="+root)
		}
	}

	video := e.video
	if video == "" {
		video = globals.Get("video")
	}
	if video != "" {
		parts = append(parts, "video="+video)
	}

	if e.append != "" {
		parts = append(parts, e.append)
	}

	args := strings.Join(parts, " ")
	return normalizeTrailingRW(args)
}

// normalizeTrailingRW folds a trailing bare "ro"/"rw" token into the
// canonical form (spec.md §4.5: "trailing ro/rw is normalized into
// boot_args as ro or rw").
func normalizeTrailingRW(args string) string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return args
	}

	last := fields[len(fields)-1]
	if last == "ro" || last == "rw" {
		return strings.Join(fields, " ")
	}

	return args
}
