package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/petitboot/petitboot/petitboot/loader"
	"github.com/petitboot/petitboot/petitboot/resolve"
	"github.com/petitboot/petitboot/shared/api"
	"github.com/petitboot/petitboot/shared/logger"
)

// emitFunc pushes a status line to clients.
type emitFunc func(t api.StatusType, msg string, progress int)

// BootTask runs the three load phases and the kexec handoff of spec.md
// §4.7's boot task, with cancellation guaranteeing temp-file cleanup.
type BootTask struct {
	ID        string
	opt       *resolve.BootOption
	cmd       api.BootCommand
	toolPaths ToolPaths
	dryRun    bool
	emit      emitFunc

	loader *loader.Loader
	cancel context.CancelFunc
	done   chan struct{}

	tempPaths []string
}

// NewBootTask constructs a BootTask for opt, applying cmd's per-resource
// overrides if present. ID is a fresh uuid, used only to correlate this
// task's log lines across its async load/kexec phases.
func NewBootTask(opt *resolve.BootOption, cmd api.BootCommand, toolPaths ToolPaths, dryRun bool, emit emitFunc) *BootTask {
	return &BootTask{
		ID:        uuid.NewString(),
		opt:       opt,
		cmd:       cmd,
		toolPaths: toolPaths,
		dryRun:    dryRun,
		emit:      emit,
		loader:    loader.New(loader.DefaultPaths()),
		done:      make(chan struct{}),
	}
}

// Start runs the task in the background.
func (t *BootTask) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	logger.Info("boot task started", logger.Ctx{"task": t.ID, "option": t.opt.ID})

	go func() {
		defer close(t.done)
		t.run(ctx)
	}()
}

// Cancel aborts the task; cleanup still runs (spec.md §4.7, §5).
func (t *BootTask) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Wait blocks until the task has finished (used by tests and by the
// daemon's shutdown path).
func (t *BootTask) Wait() {
	<-t.done
}

func (t *BootTask) run(ctx context.Context) {
	defer t.cleanup()

	kernelPath, ok := t.fetch(ctx, "kernel", t.cmd.BootImageFile, t.opt.BootImage)
	if !ok {
		return
	}

	var initrdPath string
	if t.cmd.InitrdFile != "" || t.opt.Initrd != nil {
		initrdPath, ok = t.fetch(ctx, "initrd", t.cmd.InitrdFile, t.opt.Initrd)
		if !ok {
			return
		}
	}

	var dtbPath string
	if t.cmd.DtbFile != "" || t.opt.DeviceTree != nil {
		dtbPath, ok = t.fetch(ctx, "dtb", t.cmd.DtbFile, t.opt.DeviceTree)
		if !ok {
			return
		}
	}

	if ctx.Err() != nil {
		t.emit(api.StatusInfo, "boot cancelled", -1)
		return
	}

	bootArgs := t.opt.BootArgs
	if t.cmd.BootArgs != "" {
		bootArgs = t.cmd.BootArgs
	}

	if err := t.kexecLoad(kernelPath, initrdPath, dtbPath, bootArgs); err != nil {
		t.emit(api.StatusError, fmt.Sprintf("kexec -l failed: %v", err), -1)
		return
	}

	t.reboot()
}

// fetch resolves one of the three boot resources, honoring a command
// override path if given; empty overridePath falls back to res.
func (t *BootTask) fetch(ctx context.Context, kind, overridePath string, res *resolve.Resource) (string, bool) {
	if overridePath != "" {
		return overridePath, true
	}

	if res == nil {
		return "", true
	}

	t.emit(api.StatusInfo, fmt.Sprintf("loading %s", kind), -1)

	result, err := t.loader.Load(ctx, res.URL)
	if err != nil {
		t.emit(api.StatusError, fmt.Sprintf("failed to load %s: %v", kind, err), -1)
		return "", false
	}

	if result.CleanupLocal {
		t.tempPaths = append(t.tempPaths, result.LocalPath)
	}

	return result.LocalPath, true
}

func (t *BootTask) kexecLoad(kernel, initrd, dtb, bootArgs string) error {
	args := []string{"-l"}
	if initrd != "" {
		args = append(args, "--initrd="+initrd)
	}
	if dtb != "" {
		args = append(args, "--dtb="+dtb)
	}
	if bootArgs != "" {
		args = append(args, "--append="+bootArgs)
	}
	args = append(args, kernel)

	return t.runTool(t.toolPaths.Kexec, args...)
}

// reboot implements the shutdown/kexec-e/kexec-e-f fallback chain of
// spec.md §4.7 step 5.
func (t *BootTask) reboot() {
	attempts := []struct {
		tool string
		args []string
	}{
		{t.toolPaths.Shutdown, []string{"-r", "now"}},
		{t.toolPaths.Kexec, []string{"-e"}},
		{t.toolPaths.Kexec, []string{"-e", "-f"}},
	}

	for i, a := range attempts {
		err := t.runTool(a.tool, a.args...)
		if err == nil {
			return
		}

		final := i == len(attempts)-1
		level := api.StatusInfo
		if final {
			level = api.StatusError
		}
		t.emit(level, fmt.Sprintf("%s %s failed: %v", a.tool, strings.Join(a.args, " "), err), -1)
	}
}

func (t *BootTask) runTool(tool string, args ...string) error {
	if t.dryRun {
		t.emit(api.StatusInfo, fmt.Sprintf("dry-run: would run %s %s", tool, strings.Join(args, " ")), -1)
		return nil
	}

	return exec.Command(tool, args...).Run()
}

func (t *BootTask) cleanup() {
	for _, p := range t.tempPaths {
		os.Remove(p)
	}
}
