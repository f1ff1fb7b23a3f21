package netmon

import (
	"context"

	"github.com/petitboot/petitboot/petitboot/process"
)

// runSync runs a short external command to completion, matching spec.md
// §5's "short synchronous child processes explicitly marked run_sync"
// (here: ip address/route configuration, which the daemon must wait for
// before declaring an interface Configured).
func runSync(name string, args []string) ([]byte, int, error) {
	return process.RunSync(context.Background(), name, args)
}
