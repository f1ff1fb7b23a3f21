// Package loader fetches a URL to a guaranteed-local path (spec.md §4.3).
// It supports synchronous and asynchronous modes, wraps external transfer
// tools (or, for sftp, an in-process client), reports progress parsed from
// busybox-style stdout, and supports cancellation.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	petiturl "github.com/petitboot/petitboot/petitboot/url"
	"github.com/petitboot/petitboot/shared/logger"
)

// Status is the terminal state of a load.
type Status int

const (
	StatusOK Status = iota
	StatusError
	StatusCancelled
	StatusAsync
)

// Result is what a completed (or in-flight-async) load produces.
type Result struct {
	LocalPath   string
	CleanupLocal bool
	Status      Status
	Err         error
}

// Progress is a parsed busybox-style transfer progress line.
type Progress struct {
	Percent int
	Size    float64
	Unit    string
}

// Paths configures the absolute paths of the external tools the loader
// shells out to (spec.md §6, "External tools invoked").
type Paths struct {
	Wget  string
	Tftp  string
	Sftp  string
	Mount string
	Umount string
}

// DefaultPaths matches the spec's external-tools list.
func DefaultPaths() Paths {
	return Paths{
		Wget:   "/usr/bin/wget",
		Tftp:   "/usr/bin/tftp",
		Sftp:   "/usr/bin/sftp",
		Mount:  "/bin/mount",
		Umount: "/bin/umount",
	}
}

// TftpFlavor classifies the installed tftp client (spec.md §4.3).
type TftpFlavor int

const (
	TftpUnknown TftpFlavor = iota
	TftpHPA
	TftpBusybox
	TftpBroken
)

// Loader fetches URLs to local paths, matching the external-tool contract
// of spec.md §4.3.
type Loader struct {
	Paths Paths
	DryRun bool

	tftpOnce   sync.Once
	tftpFlavor TftpFlavor
}

// New returns a Loader with the given tool paths.
func New(paths Paths) *Loader {
	return &Loader{Paths: paths}
}

// progressRe matches the common busybox progress line, e.g.
// "vmlinux        42% |*****              |  4096k  0:00:03 ETA"
var progressRe = regexp.MustCompile(`(\d+)%\s+\|[^|]*\|\s*(\d+(?:\.\d+)?)\s*([a-zA-Z]*)\s+[\d:]+\s+ETA`)

// parseProgress extracts percent/size/unit from a busybox transfer line, or
// reports ok=false if the line doesn't match.
func parseProgress(line string) (p Progress, ok bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	pct, err := strconv.Atoi(m[1])
	if err != nil {
		return Progress{}, false
	}

	size, _ := strconv.ParseFloat(m[2], 64)
	return Progress{Percent: pct, Size: size, Unit: m[3]}, true
}

// Handle represents an in-flight async load.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel transitions the result to StatusCancelled; the completion
// callback still fires (spec.md §4.3, §5).
func (h *Handle) Cancel() {
	h.cancel()
}

// Wait blocks until the async load has completed (test helper).
func (h *Handle) Wait() {
	<-h.done
}

// Load fetches url synchronously.
func (l *Loader) Load(ctx context.Context, url *petiturl.URL) (*Result, error) {
	return l.load(ctx, url, nil)
}

// LoadAsync fetches url in the background; onProgress (optional) is
// invoked for each parsed progress update, and onComplete is invoked
// exactly once when the transfer terminates (success, error, or
// cancellation).
func (l *Loader) LoadAsync(ctx context.Context, url *petiturl.URL, onComplete func(*Result), onProgress func(Progress)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)

		res, err := l.load(ctx, url, onProgress)
		if err != nil && res == nil {
			res = &Result{Status: StatusError, Err: err}
		}

		if ctx.Err() != nil && res.Status != StatusCancelled {
			res.Status = StatusCancelled
		}

		if onComplete != nil {
			onComplete(res)
		}
	}()

	return h
}

func (l *Loader) load(ctx context.Context, u *petiturl.URL, onProgress func(Progress)) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return &Result{Status: StatusCancelled, Err: err}, err
	}

	switch u.Scheme {
	case petiturl.SchemeFile:
		return l.loadFile(u)
	case petiturl.SchemeHTTP, petiturl.SchemeHTTPS, petiturl.SchemeFTP:
		return l.loadWget(ctx, u, onProgress)
	case petiturl.SchemeTFTP:
		return l.loadTftp(ctx, u, onProgress)
	case petiturl.SchemeSFTP:
		return l.loadSftp(ctx, u)
	case petiturl.SchemeNFS:
		return l.loadNFS(ctx, u)
	default:
		return nil, fmt.Errorf("loader: unsupported scheme %q", u.Scheme)
	}
}

func (l *Loader) loadFile(u *petiturl.URL) (*Result, error) {
	if _, err := os.Stat(u.Path); err != nil {
		return &Result{Status: StatusError, Err: err}, err
	}

	return &Result{LocalPath: u.Path, CleanupLocal: false, Status: StatusOK}, nil
}

// mkTemp allocates a fresh destination under /tmp, matching spec.md §6's
// mkstemp("/tmp/pb-XXXXXX") convention.
func mkTemp() (string, error) {
	f, err := os.CreateTemp("", "pb-")
	if err != nil {
		return "", err
	}
	path := f.Name()
	_ = f.Close()
	_ = os.Chmod(path, 0644)
	return path, nil
}

func cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove temp file", logger.Ctx{"path": path, "err": err})
	}
}
