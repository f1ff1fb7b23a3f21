package loader_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/loader"
	petiturl "github.com/petitboot/petitboot/petitboot/url"
)

func TestLoadFileScheme(t *testing.T) {
	f, err := os.CreateTemp("", "pb-test-")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	f.Close()

	l := loader.New(loader.DefaultPaths())
	res, err := l.Load(context.Background(), petiturl.Parse(f.Name()))
	require.NoError(t, err)
	require.Equal(t, loader.StatusOK, res.Status)
	require.Equal(t, f.Name(), res.LocalPath)
	require.False(t, res.CleanupLocal)
}

func TestLoadFileSchemeMissing(t *testing.T) {
	l := loader.New(loader.DefaultPaths())
	res, err := l.Load(context.Background(), petiturl.Parse("/does/not/exist"))
	require.Error(t, err)
	require.Equal(t, loader.StatusError, res.Status)
}

func TestLoadAsyncCompletion(t *testing.T) {
	f, err := os.CreateTemp("", "pb-test-")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	f.Close()

	l := loader.New(loader.DefaultPaths())

	var result *loader.Result
	done := make(chan struct{})

	h := l.LoadAsync(context.Background(), petiturl.Parse(f.Name()), func(r *loader.Result) {
		result = r
		close(done)
	}, nil)
	_ = h

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async load to complete")
	}

	require.NotNil(t, result)
	require.Equal(t, loader.StatusOK, result.Status)
}

func TestLoadCancelledContextShortCircuits(t *testing.T) {
	paths := loader.DefaultPaths()
	paths.Wget = "/bin/sleep"
	l := loader.New(paths)

	// The dest arg still gets passed as "-O <tmp> 5", which /bin/sleep
	// ignores positionally except for its first numeric argument; sleep
	// parses "-O" as an invalid option and exits immediately in most
	// implementations, so instead we drive cancellation through the
	// lower-level process package directly — see process_test.go for the
	// authoritative cancellation coverage. Here we only assert that an
	// already-cancelled context short-circuits the load before any
	// subprocess work happens.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := l.Load(ctx, petiturl.Parse("http://example.invalid/vmlinux"))
	require.Error(t, err)
	require.Equal(t, loader.StatusCancelled, res.Status)
	require.False(t, fileExists(res.LocalPath))
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
