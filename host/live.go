package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	envOutputFile = "GITHUB_OUTPUT"
	inputPrefix   = "INPUT_"
	eol           = "\n"
)

var ErrInputRequired = errors.New("Input required and not supplied")

// InputRequiredError names the required input that was blank. It matches
// ErrInputRequired under errors.Is.
type InputRequiredError struct {
	Name string
}

func (e *InputRequiredError) Error() string {
	return ErrInputRequired.Error() + ": " + e.Name
}

func (e *InputRequiredError) Is(target error) bool {
	return target == ErrInputRequired
}

type LiveOption struct {
	// Stdout receives workflow commands and info messages. Defaults to os.Stdout.
	Stdout io.Writer
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
	Logger    *zap.Logger
}

// Live talks to a GitHub Actions style runner: inputs come from INPUT_*
// environment variables, outputs go to the GITHUB_OUTPUT file and everything
// else is written to stdout.
type Live struct {
	mu        sync.Mutex
	stdout    io.Writer
	lookupEnv func(string) (string, bool)
	logger    *zap.Logger
	exitCode  int
}

func NewLive(option LiveOption) *Live {
	if option.Stdout == nil {
		option.Stdout = os.Stdout
	}
	if option.LookupEnv == nil {
		option.LookupEnv = os.LookupEnv
	}
	if option.Logger == nil {
		option.Logger = zap.L()
	}
	return &Live{
		stdout:    option.Stdout,
		lookupEnv: option.LookupEnv,
		logger:    option.Logger,
	}
}

type InputOptions struct {
	Required bool
	// KeepWhitespace disables trimming of the value.
	KeepWhitespace bool
}

func (live *Live) GetInput(ctx context.Context, name string) (string, error) {
	return live.GetInputWith(ctx, name, InputOptions{})
}

func (live *Live) GetInputWith(ctx context.Context, name string, opts InputOptions) (string, error) {
	val, _ := live.lookupEnv(InputEnvName(name))
	if opts.Required && val == "" {
		return "", &InputRequiredError{Name: name}
	}
	if opts.KeepWhitespace {
		return val, nil
	}
	return strings.TrimSpace(val), nil
}

// InputEnvName is the environment variable the runner stores input name in.
func InputEnvName(name string) string {
	return inputPrefix + strings.ToUpper(strings.Replace(name, " ", "_", -1))
}

func (live *Live) SetOutput(ctx context.Context, name, value string) error {
	live.mu.Lock()
	defer live.mu.Unlock()

	if path, ok := live.lookupEnv(envOutputFile); ok && path != "" {
		msg, err := keyValueMessage(name, value)
		if err != nil {
			return err
		}
		return appendFile(path, msg+eol)
	}

	// runners without output files still understand the legacy command
	_, err := io.WriteString(live.stdout, eol+formatCommand("set-output", map[string]string{"name": name}, value)+eol)
	return errors.Wrap(err, "write set-output command")
}

func (live *Live) SetFailed(ctx context.Context, message string) error {
	live.mu.Lock()
	defer live.mu.Unlock()

	live.exitCode = 1
	live.logger.Debug("task marked as failed", zap.String("message", message))
	_, err := io.WriteString(live.stdout, formatCommand("error", nil, message)+eol)
	return errors.Wrap(err, "write error command")
}

func (live *Live) Info(ctx context.Context, message string) error {
	live.mu.Lock()
	defer live.mu.Unlock()

	_, err := io.WriteString(live.stdout, message+eol)
	return errors.Wrap(err, "write info")
}

// ExitCode is 1 once SetFailed has been called, 0 before.
func (live *Live) ExitCode() int {
	live.mu.Lock()
	defer live.mu.Unlock()
	return live.exitCode
}

func keyValueMessage(key, value string) (string, error) {
	delimiter := "ghadelimiter_" + uuid.New().String()
	if strings.Contains(key, delimiter) {
		return "", errors.Errorf("unexpected input: name should not contain the delimiter %q", delimiter)
	}
	if strings.Contains(value, delimiter) {
		return "", errors.Errorf("unexpected input: value should not contain the delimiter %q", delimiter)
	}
	return fmt.Sprintf("%s<<%s%s%s%s%s", key, delimiter, eol, value, eol, delimiter), nil
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open output file %s", path)
	}
	if _, err = f.WriteString(content); err != nil {
		f.Close()
		return errors.Wrapf(err, "write output file %s", path)
	}
	return errors.Wrapf(f.Close(), "close output file %s", path)
}

var _ Host = (*Live)(nil)
