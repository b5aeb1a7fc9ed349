package pyext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateInterpreter(t *testing.T) {
	t.Run("environment override", func(t *testing.T) {
		stubLookPath(t, "python3")
		path, err := LocateInterpreter(envMap(map[string]string{"PYTHON": "/opt/py/bin/python3.12"}))
		require.NoError(t, err)
		assert.Equal(t, "/opt/py/bin/python3.12", path)
	})

	t.Run("python3 first", func(t *testing.T) {
		stubLookPath(t, "python", "python3")
		path, err := LocateInterpreter(envMap(nil))
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/python3", path)
	})

	t.Run("python fallback", func(t *testing.T) {
		stubLookPath(t, "python")
		path, err := LocateInterpreter(nil)
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/python", path)
	})

	t.Run("none", func(t *testing.T) {
		stubLookPath(t)
		_, err := LocateInterpreter(envMap(map[string]string{"PYTHON": ""}))
		assert.ErrorIs(t, err, ErrInterpreterNotFound)
	})
}

func TestProbeInterpreter(t *testing.T) {
	testCases := []struct {
		name    string
		output  []string
		exit    int
		want    *Interpreter
		wantErr bool
	}{
		{
			name:   "tagged suffix",
			output: []string{".cpython-312-x86_64-linux-gnu.so", "3.12.1"},
			want:   &Interpreter{Path: "/usr/bin/python3", ExtSuffix: ".cpython-312-x86_64-linux-gnu.so", Version: "3.12.1"},
		},
		{
			name:   "no suffix",
			output: []string{"", "3.8.10"},
			want:   &Interpreter{Path: "/usr/bin/python3", Version: "3.8.10"},
		},
		{name: "unexpected output", output: []string{"a", "b", "c"}, wantErr: true},
		{name: "failing interpreter", output: []string{"Traceback"}, exit: 1, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{handler: func(_ int, cmd Command) (*ProcessResult, error) {
				return &ProcessResult{Command: cmd, ExitCode: tc.exit, Output: tc.output}, nil
			}}

			interp, err := ProbeInterpreter(context.Background(), runner, "/usr/bin/python3")
			require.Len(t, runner.calls, 1)
			assert.Equal(t, "-c", runner.calls[0].Args[0])

			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, interp)
		})
	}

	t.Run("runner error", func(t *testing.T) {
		runner := &fakeRunner{handler: func(int, Command) (*ProcessResult, error) {
			return nil, errors.New("exec: not started")
		}}
		_, err := ProbeInterpreter(context.Background(), runner, "/usr/bin/python3")
		assert.ErrorContains(t, err, "failed to probe /usr/bin/python3")
	})
}
