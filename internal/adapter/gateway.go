// Package adapter contains the engine, filesystem and test-runner
// adapters for the mapcov CLI.
package adapter

import (
	"context"
	"strings"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// Gateway is the engine surface a verification run drives: readiness,
// map upload and test execution. Implementations hide how the mapping
// engine is reached so the domain logic can be tested without one.
type Gateway interface {
	// Ready blocks until the engine accepts requests or the startup
	// window closes.
	Ready(ctx context.Context) error

	// Upload replaces the named map on the engine with content.
	Upload(ctx context.Context, file m.Path, content string) error

	// RunTests executes the given test ids and returns one outcome per
	// test that ran. An error means the run itself broke, not that
	// tests failed.
	RunTests(ctx context.Context, testIDs []string) (map[string]m.TestOutcome, error)
}

// Engine extends Gateway with map removal for cleanup.
type Engine interface {
	Gateway

	// Delete removes the named map from the engine. Deleting a map the
	// engine does not hold returns an error satisfying IsNotFound.
	Delete(ctx context.Context, file m.Path) error
}

type engine struct {
	client *MatchboxClient
	runner TestRunner
}

// NewEngine combines the matchbox client and the test runner into the
// Engine the workflow drives.
func NewEngine(client *MatchboxClient, runner TestRunner) Engine {
	return &engine{
		client: client,
		runner: runner,
	}
}

func (e *engine) Ready(ctx context.Context) error {
	return e.client.WaitReady(ctx)
}

func (e *engine) Upload(ctx context.Context, file m.Path, content string) error {
	return e.client.UploadMap(ctx, mapName(file), content)
}

func (e *engine) RunTests(ctx context.Context, testIDs []string) (map[string]m.TestOutcome, error) {
	return e.runner.Run(ctx, testIDs)
}

func (e *engine) Delete(ctx context.Context, file m.Path) error {
	return e.client.DeleteMap(ctx, mapName(file))
}

// mapName derives the canonical StructureMap name from a mapping file
// name, by convention the file name without its extension.
func mapName(file m.Path) string {
	return strings.TrimSuffix(string(file), ".map")
}
