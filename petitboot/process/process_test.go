package process_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petitboot/petitboot/petitboot/process"
)

func TestRunSyncCapturesOutput(t *testing.T) {
	out, code, err := process.RunSync(context.Background(), "echo", []string{"hello"})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, "hello\n", string(out))
}

func TestRunAndWait(t *testing.T) {
	p, err := process.Run(context.Background(), "true", nil)
	require.NoError(t, err)

	code, err := p.Wait()
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestRunLineCallback(t *testing.T) {
	var lines []string

	p, err := process.Run(context.Background(), "printf", []string{"a\\nb\\n"}, process.WithLineCallback(func(l string) {
		lines = append(lines, l)
	}))
	require.NoError(t, err)

	_, err = p.Wait()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, lines)
}

func TestCancelStillReportsCompletion(t *testing.T) {
	p, err := process.Run(context.Background(), "sleep", []string{"5"})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Cancel()
	}()

	_, err = p.Wait()
	require.Error(t, err)
}
