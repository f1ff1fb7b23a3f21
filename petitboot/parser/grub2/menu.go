package grub2

import (
	"strings"

	petiturl "github.com/petitboot/petitboot/petitboot/url"
)

// menuEval evaluates a menuentry's body. It behaves like the parent
// evaluator for control flow (if/for) but additionally recognizes the
// "root" assignment and the kernel/initrd/devicetree load commands,
// recording them into pe rather than the enclosing script's state.
type menuEval struct {
	*evaluator
	pe *pendingEntry
}

func (m *menuEval) run(b Block) {
	for _, st := range b.Statements {
		m.exec(st)
	}
}

func (m *menuEval) exec(st Statement) {
	switch n := st.(type) {
	case Simple:
		m.execSimple(n)
	case Block:
		m.run(n)
	case If:
		m.execIf(n)
	case For:
		m.execFor(n)
	}
}

func (m *menuEval) execIf(n If) {
	for i, cond := range n.Conds {
		if m.evalCond(cond) {
			m.run(n.Bodies[i])
			return
		}
	}
	if n.Else != nil {
		m.run(*n.Else)
	}
}

func (m *menuEval) execFor(n For) {
	items := expandWords(m.env, n.Items)
	saved := m.env.Get(n.Var)

	for _, item := range items {
		m.env.Set(n.Var, item)
		m.run(n.Body)
	}

	m.env.Set(n.Var, saved)
}

func (m *menuEval) execSimple(n Simple) {
	words := expandWords(m.env, n.Words)
	if len(words) == 0 {
		return
	}

	cmd := words[0]
	args := words[1:]

	switch cmd {
	case "set":
		m.cmdSetRoot(args)
	case "linux", "linuxefi":
		if len(args) > 0 {
			m.pe.kernel = args[0]
			m.pe.args = args[1:]
		}
	case "initrd", "initrdefi":
		if len(args) > 0 {
			m.pe.initrd = args[0]
		}
	case "devicetree":
		if len(args) > 0 {
			m.pe.dtb = args[0]
		}
	default:
		if fn, ok := m.functions[cmd]; ok {
			m.run(fn.Body)
		}
	}
}

// cmdSetRoot handles "set" inside a menuentry, tracking a "root=(uuid=X)"
// assignment into pe.rootSpec alongside the normal variable set.
func (m *menuEval) cmdSetRoot(args []string) {
	if len(args) == 0 {
		return
	}

	eq := strings.IndexByte(args[0], '=')
	if eq < 0 {
		return
	}

	name := args[0][:eq]
	value := args[0][eq+1:]
	m.env.Set(name, value)

	if name != "root" {
		return
	}

	value = strings.TrimPrefix(value, "(")
	value = strings.TrimSuffix(value, ")")

	if strings.HasPrefix(value, "uuid=") {
		m.pe.rootSpec = value
	}
}

func fileURL(mountPath, path string) *petiturl.URL {
	return petiturl.Parse("file://" + mountPath + "/" + strings.TrimPrefix(path, "/"))
}
