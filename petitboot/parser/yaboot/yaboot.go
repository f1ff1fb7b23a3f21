// Package yaboot registers the yaboot bootloader config dialect. Per
// spec.md §4.5, yaboot shares kboot's exact grammar (key=value pairs,
// image= starts a new option, global option propagation, append
// concatenation); only the candidate filenames and registry name differ.
package yaboot

import (
	"github.com/petitboot/petitboot/petitboot/parser"
	"github.com/petitboot/petitboot/petitboot/parser/kboot"
)

// Name is the parser's registry name.
const Name = "yaboot"

func init() {
	parser.Register(kboot.New(Name, []string{"/etc/yaboot.conf", "/yaboot.conf"}))
}
