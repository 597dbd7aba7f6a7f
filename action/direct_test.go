package action

import (
	"context"
	"testing"

	"github.com/feynman-go/actionkit/host"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runContext(t *testing.T, env map[string]string) *host.RunContext {
	rc, err := host.LoadContext(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.NoError(t, err)
	return rc
}

func TestRunDirect(t *testing.T) {
	h := &host.Test{Input: "custom value"}
	rc := runContext(t, map[string]string{
		"GITHUB_EVENT_NAME": "push",
		"GITHUB_REPOSITORY": "test-owner/test-repo",
	})

	require.NoError(t, RunDirect(context.Background(), h, rc))
	assert.Equal(t, []string{
		"Example input: custom value",
		"Event: push",
		"Repo: test-owner/test-repo",
		"Action completed successfully!",
	}, h.Infos())
	assert.Equal(t, map[string]string{OutputKey: "Processed: custom value"}, h.Outputs())
	assert.Empty(t, h.Failures())
}

func TestRunDirectFailures(t *testing.T) {
	withRepo := map[string]string{"GITHUB_REPOSITORY": "o/r"}

	for _, c := range []struct {
		name    string
		host    *host.Test
		env     map[string]string
		nilRC   bool
		message string
	}{
		{name: "no run context", host: host.NewTest(), nilRC: true, message: "run context is not loaded"},
		{name: "no repository", host: host.NewTest(), env: nil, message: host.ErrNoRepository.Error()},
		{name: "input", host: &host.Test{InputErr: errors.New("closed stdin")}, env: withRepo, message: "closed stdin"},
		{name: "output", host: &host.Test{Input: "v", OutputErr: errors.New("disk full")}, env: withRepo, message: "disk full"},
		{name: "empty error", host: &host.Test{Input: "v", OutputErr: errors.New("")}, env: withRepo, message: UnexpectedMessage},
	} {
		t.Run(c.name, func(t *testing.T) {
			var rc *host.RunContext
			if !c.nilRC {
				rc = runContext(t, c.env)
			}
			err := RunDirect(context.Background(), c.host, rc)
			require.Error(t, err)
			assert.Equal(t, []string{c.message}, c.host.Failures())
			assert.NotContains(t, c.host.Infos(), SuccessMessage+"!")
		})
	}
}

type panicHost struct {
	*host.Test
	value interface{}
}

func (h panicHost) Info(ctx context.Context, message string) error {
	panic(h.value)
}

func TestRunDirectPanic(t *testing.T) {
	for _, c := range []struct {
		value   interface{}
		message string
	}{
		{value: errors.New("boom"), message: "boom"},
		{value: "not an error", message: UnexpectedMessage},
	} {
		h := panicHost{Test: host.NewTest(), value: c.value}
		err := RunDirect(context.Background(), h, runContext(t, nil))
		require.Error(t, err)
		assert.Equal(t, []string{c.message}, h.Failures())
	}
}
