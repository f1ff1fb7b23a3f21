package grub2

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/resolve"
)

// pendingEntry accumulates a menuentry body's "linux"/"initrd"/
// "devicetree" commands before it is turned into a resolve.BootOption.
type pendingEntry struct {
	title    string
	id       string
	rootSpec string // "" (own device), "uuid=X" from a "set root=(uuid=X)"
	kernel   string
	args     []string
	initrd   string
	dtb      string
}

// evaluator walks a parsed Block, maintaining grub2's variable
// environment and function table, and emits one resolve.BootOption per
// menuentry encountered (spec.md §4.5).
type evaluator struct {
	env       *Env
	functions map[string]Function
	ctx       *parser.DiscoverContext
	resolver  resolve.ResourceResolver
	deviceID  string
	mountPath string
	blsDir    string // not set anywhere; blscfg always scans loader/entries under mountPath
	defaultID string
}

// Eval runs block against a fresh environment for device ctx.Device,
// resolver is the ResourceResolver a produced BootOption's pending
// resources delegate to (the grub2 Parser itself).
func Eval(ctx *parser.DiscoverContext, resolver resolve.ResourceResolver, block Block) {
	e := &evaluator{
		env:       NewEnv(),
		functions: map[string]Function{},
		ctx:       ctx,
		resolver:  resolver,
		deviceID:  ctx.Device.ID(),
		mountPath: ctx.Device.MountPath(),
	}

	e.env.Set("root", "")
	e.run(block)
}

func (e *evaluator) run(b Block) {
	for _, st := range b.Statements {
		e.exec(st)
	}
}

func (e *evaluator) exec(st Statement) {
	switch n := st.(type) {
	case Simple:
		e.execSimple(n)
	case Block:
		e.run(n)
	case If:
		e.execIf(n)
	case For:
		e.execFor(n)
	case Function:
		e.functions[n.Name] = n
	case Menuentry:
		e.execMenuentry(n)
	}
}

func (e *evaluator) execIf(n If) {
	for i, cond := range n.Conds {
		if e.evalCond(cond) {
			e.run(n.Bodies[i])
			return
		}
	}
	if n.Else != nil {
		e.run(*n.Else)
	}
}

// evalCond evaluates a condition statement's truthiness. grub2 conditions
// are themselves commands whose exit status drives the branch; petitboot
// supports the common "[ STRING_TEST ]" form and treats an unrecognized
// command as true (so bodies that call into unmodeled built-ins are not
// silently dropped).
func (e *evaluator) evalCond(st Statement) bool {
	simple, ok := st.(Simple)
	if !ok {
		return true
	}

	words := expandWords(e.env, simple.Words)
	if len(words) == 0 {
		return false
	}

	if words[0] == "[" {
		words = words[1:]
		if len(words) > 0 && words[len(words)-1] == "]" {
			words = words[:len(words)-1]
		}
	}

	switch len(words) {
	case 1:
		return words[0] != ""
	case 2:
		if words[0] == "-n" {
			return words[1] != ""
		}
		if words[0] == "-z" {
			return words[1] == ""
		}
		return true
	case 3:
		switch words[1] {
		case "=", "==":
			return words[0] == words[2]
		case "!=":
			return words[0] != words[2]
		case "-eq":
			return atoi(words[0]) == atoi(words[2])
		case "-ne":
			return atoi(words[0]) != atoi(words[2])
		case "-lt":
			return atoi(words[0]) < atoi(words[2])
		case "-gt":
			return atoi(words[0]) > atoi(words[2])
		}
	}

	return true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func (e *evaluator) execFor(n For) {
	items := expandWords(e.env, n.Items)
	saved := e.env.Get(n.Var)

	for _, item := range items {
		e.env.Set(n.Var, item)
		e.run(n.Body)
	}

	e.env.Set(n.Var, saved)
}

func (e *evaluator) execSimple(n Simple) {
	words := expandWords(e.env, n.Words)
	if len(words) == 0 {
		return
	}

	cmd := words[0]
	args := words[1:]

	switch cmd {
	case "set":
		e.cmdSet(args)
	case "load_env", "save_env":
		// Environment block persistence is out of scope without a
		// real disk to read/write; no-op beyond variable tracking
		// already done by "set".
	case "blscfg":
		e.cmdBlscfg()
	case "default", "timeout", "menuentry_id_option":
		if cmd == "default" && len(args) > 0 {
			e.defaultID = args[0]
		}
	default:
		if fn, ok := e.functions[cmd]; ok {
			e.run(fn.Body)
		}
	}
}

// cmdSet implements "set NAME=VALUE". It stores the value as given; the
// "root=(uuid=X)" form is interpreted only by menuEval.cmdSetRoot inside a
// menuentry body, and "(hdN,M)" references are not interpreted.
func (e *evaluator) cmdSet(args []string) {
	if len(args) == 0 {
		return
	}

	eq := strings.IndexByte(args[0], '=')
	if eq < 0 {
		return
	}

	name := args[0][:eq]
	value := args[0][eq+1:]
	e.env.Set(name, value)

	if name == "default" {
		e.defaultID = value
	}
}

// execMenuentry evaluates a menuentry body to build a pendingEntry, then
// emits a resolve.BootOption whose resources are resolved or deferred
// depending on whether "root" names the entry's own device or another
// one by UUID (spec.md §4.6, Grub2Pending).
func (e *evaluator) execMenuentry(n Menuentry) {
	saved := e.env.Get("root")

	pe := &pendingEntry{title: n.Title, id: n.ID}
	sub := &menuEval{evaluator: e, pe: pe}
	sub.run(n.Body)

	e.env.Set("root", saved)

	if pe.kernel == "" {
		return
	}

	id := pe.id
	if id == "" {
		id = fmt.Sprintf("%s#%s", e.deviceID, pe.title)
	}

	opt := &resolve.BootOption{
		ID:        id,
		Name:      pe.title,
		BootArgs:  strings.Join(pe.args, " "),
		DeviceID:  e.deviceID,
		Resolver:  e.resolver,
		IsDefault: e.defaultID != "" && (e.defaultID == pe.id || e.defaultID == pe.title),
	}

	opt.BootImage = e.resourceFor(pe.rootSpec, pe.kernel)
	if pe.initrd != "" {
		opt.Initrd = e.resourceFor(pe.rootSpec, pe.initrd)
	}
	if pe.dtb != "" {
		opt.DeviceTree = e.resourceFor(pe.rootSpec, pe.dtb)
	}

	e.ctx.AddBootOption(opt)
}

// resourceFor builds the Resource for a path, given the "root" device
// spec in effect when the menuentry's load commands ran: "" means the
// entry's own (already-mounted) device, and a non-empty uuid= spec means
// the file lives on a device that may not have appeared yet.
func (e *evaluator) resourceFor(rootSpec, path string) *resolve.Resource {
	path = "/" + strings.TrimPrefix(path, "/")

	if rootSpec == "" {
		return &resolve.Resource{Kind: resolve.KindResolved, URL: fileURL(e.mountPath, path)}
	}

	uuid := strings.TrimPrefix(rootSpec, "uuid=")
	return &resolve.Resource{Kind: resolve.KindGrub2Pending, RootUUID: uuid, Path: path}
}
