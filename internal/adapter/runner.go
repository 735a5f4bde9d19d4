package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/BAL-DMU/mapcov/internal/logging"
	m "github.com/BAL-DMU/mapcov/internal/model"
)

// pytest exit codes this runner distinguishes. Code 1 means tests ran
// and some failed; 5 means nothing was collected. Everything else is an
// infrastructure fault.
const (
	exitTestsFailed = 1
	exitNoTests     = 5
)

const defaultRunTimeout = 5 * time.Minute

// TestRunner executes test suites against whatever the engine currently
// holds and reports per-test outcomes.
type TestRunner interface {
	// Run executes the given test ids. It reports one entry per
	// requested id, assumed passing, and adds one failing entry per
	// FAILED or ERROR line the runner printed. Failing entries use
	// pytest's node ids, which is what ends up as coverage evidence.
	Run(ctx context.Context, testIDs []string) (map[string]m.TestOutcome, error)
}

type pytestRunner struct {
	command []string
	args    []string
	dir     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPytestRunner creates a TestRunner that shells out to pytest. The
// command is the interpreter invocation, args are appended after the
// test ids, and dir is the working directory of the run.
func NewPytestRunner(command, args []string, dir string, timeout time.Duration) TestRunner {
	if len(command) == 0 {
		command = []string{"python3", "-m", "pytest"}
	}

	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	return &pytestRunner{
		command: command,
		args:    args,
		dir:     dir,
		timeout: timeout,
		logger:  logging.New("pytest"),
	}
}

func (r *pytestRunner) Run(ctx context.Context, testIDs []string) (map[string]m.TestOutcome, error) {
	if len(testIDs) == 0 {
		return map[string]m.TestOutcome{}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := make([]string, 0, len(r.command)+len(testIDs)+len(r.args))
	argv = append(argv, r.command...)
	argv = append(argv, testIDs...)
	argv = append(argv, r.args...)

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.dir

	r.logger.Debug("running tests", slog.String("command", strings.Join(argv, " ")))

	output, err := cmd.CombinedOutput()

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("test run timed out after %s", r.timeout)
		}

		return nil, ctxErr
	}

	exitCode := 0

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", argv[0], err)
		}

		exitCode = exitErr.ExitCode()
	}

	return r.parseOutput(testIDs, exitCode, string(output))
}

func (r *pytestRunner) parseOutput(testIDs []string, exitCode int, output string) (map[string]m.TestOutcome, error) {
	switch exitCode {
	case 0, exitTestsFailed, exitNoTests:
	default:
		return nil, fmt.Errorf("pytest exited with code %d: %s", exitCode, lastLines(output, 5))
	}

	if exitCode == exitNoTests {
		r.logger.Warn("no tests collected", slog.String("tests", strings.Join(testIDs, " ")))

		return map[string]m.TestOutcome{}, nil
	}

	outcomes := make(map[string]m.TestOutcome, len(testIDs))
	for _, id := range testIDs {
		outcomes[id] = m.TestOutcome{Passed: true}
	}

	failures := parseFailureLines(output)
	for id, msg := range failures {
		outcomes[id] = m.TestOutcome{Passed: false, Message: msg}
	}

	// Exit code 1 promises failures. Seeing none means the output
	// format changed under us, which must not pass as coverage.
	if exitCode == exitTestsFailed && len(failures) == 0 {
		return nil, fmt.Errorf("pytest reported failures but none were found in its output")
	}

	return outcomes, nil
}

// parseFailureLines extracts failing node ids from the short test
// summary, e.g.
//
//	FAILED tests/test_utils.py::test_birthdate - AssertionError: ...
//	ERROR tests/test_utils.py - ImportError: ...
func parseFailureLines(output string) map[string]string {
	failures := make(map[string]string)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		var rest string

		switch {
		case strings.HasPrefix(line, "FAILED "):
			rest = strings.TrimPrefix(line, "FAILED ")
		case strings.HasPrefix(line, "ERROR "):
			rest = strings.TrimPrefix(line, "ERROR ")
		default:
			continue
		}

		id, msg, _ := strings.Cut(rest, " - ")
		failures[strings.TrimSpace(id)] = strings.TrimSpace(msg)
	}

	return failures
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n")
}
