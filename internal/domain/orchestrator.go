package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BAL-DMU/mapcov/internal/adapter"
	"github.com/BAL-DMU/mapcov/internal/logging"
	m "github.com/BAL-DMU/mapcov/internal/model"
)

// Orchestrator drives a single rule through its verify cycle: mutate,
// upload, test, classify, restore. The engine's live copy of the file is
// an exclusive lease held for the duration of the cycle; releasing it
// re-uploads the clean content on every exit path, including
// cancellation, so an interrupted run never leaves a mutant live.
type Orchestrator interface {
	VerifyRule(ctx context.Context, content string, rule m.Rule, testIDs []string) m.CoverageResult
}

type orchestrator struct {
	gateway adapter.Gateway
	mutator Mutator
	backoff time.Duration
	logger  *slog.Logger
}

// NewOrchestrator constructs an Orchestrator backed by the provided
// engine gateway. backoff is the wait before the single retry applied
// to infrastructure faults.
func NewOrchestrator(gateway adapter.Gateway, backoff time.Duration) Orchestrator {
	return &orchestrator{
		gateway: gateway,
		mutator: NewMutator(),
		backoff: backoff,
		logger:  logging.New("orchestrator"),
	}
}

func (o *orchestrator) VerifyRule(ctx context.Context, content string, rule m.Rule, testIDs []string) m.CoverageResult {
	// A rule with no associated tests can never be proven covered. This
	// is reported explicitly, before any mutation happens.
	if len(testIDs) == 0 {
		return m.CoverageResult{Rule: rule, Status: m.StatusMissing, Reason: "no tests associated"}
	}

	mutation, err := o.mutator.Apply(content, rule)
	if err != nil {
		reason, ok := SkipReason(err)
		if !ok {
			reason = err.Error()
		}

		o.logger.Warn("rule skipped",
			slog.String("rule", rule.ID()), slog.String("reason", reason))

		return m.CoverageResult{Rule: rule, Status: m.StatusSkipped, Reason: reason}
	}

	outcomes, err := o.runMutated(ctx, mutation, testIDs)
	if err != nil {
		o.logger.Error("rule verification failed",
			slog.String("rule", rule.ID()), slog.Any("error", err))

		return m.CoverageResult{Rule: rule, Status: m.StatusError, Reason: err.Error()}
	}

	result := classify(rule, outcomes)

	o.logger.Info("rule verified",
		slog.String("rule", rule.ID()),
		slog.String("label", rule.Label),
		slog.String("status", string(result.Status)))

	return result
}

// runMutated uploads the mutant and runs the associated tests while
// holding the lease on the engine's live copy of the file.
func (o *orchestrator) runMutated(ctx context.Context, mutation m.Mutation, testIDs []string) (map[string]m.TestOutcome, error) {
	l := o.acquire(mutation)
	defer l.release(ctx)

	err := retryOnce(ctx, o.backoff, func(ctx context.Context) error {
		return o.gateway.Upload(ctx, mutation.Rule.File, mutation.Mutated)
	})
	if err != nil {
		return nil, fmt.Errorf("upload mutant: %w", err)
	}

	outcomes, err := o.runTests(ctx, testIDs)
	if err != nil {
		return nil, fmt.Errorf("run tests: %w", err)
	}

	return outcomes, nil
}

func (o *orchestrator) runTests(ctx context.Context, testIDs []string) (map[string]m.TestOutcome, error) {
	outcomes, err := o.gateway.RunTests(ctx, testIDs)
	if err == nil {
		return outcomes, nil
	}

	if waitErr := waitBackoff(ctx, o.backoff); waitErr != nil {
		return nil, waitErr
	}

	return o.gateway.RunTests(ctx, testIDs)
}

// classify turns test outcomes into a coverage signal: any failing
// associated test proves the rule is covered.
func classify(rule m.Rule, outcomes map[string]m.TestOutcome) m.CoverageResult {
	var failed []string

	for id, outcome := range outcomes {
		if !outcome.Passed {
			failed = append(failed, id)
		}
	}

	if len(failed) == 0 {
		return m.CoverageResult{Rule: rule, Status: m.StatusMissing}
	}

	sort.Strings(failed)

	return m.CoverageResult{Rule: rule, Status: m.StatusCovered, Evidence: failed}
}

// lease is the exclusive hold on the engine's live copy of one file
// while its mutant is uploaded.
type lease struct {
	orch     *orchestrator
	file     m.Path
	original string
	released bool
}

func (o *orchestrator) acquire(mutation m.Mutation) *lease {
	return &lease{orch: o, file: mutation.Rule.File, original: mutation.Original}
}

// release restores the clean file content in the engine. It is detached
// from cancellation: a user abort mid-test must still restore, so the
// engine never keeps serving a mutated map.
func (l *lease) release(ctx context.Context) {
	if l.released {
		return
	}

	l.released = true
	ctx = context.WithoutCancel(ctx)

	err := retryOnce(ctx, l.orch.backoff, func(ctx context.Context) error {
		return l.orch.gateway.Upload(ctx, l.file, l.original)
	})
	if err != nil {
		l.orch.logger.Error("restore failed, engine may hold a mutated map",
			slog.String("map", string(l.file)), slog.Any("error", err))
	}
}

// retryOnce runs op and, on failure, retries exactly once after the
// backoff. Persistent failure surfaces the second error.
func retryOnce(ctx context.Context, backoff time.Duration, op func(context.Context) error) error {
	if err := op(ctx); err == nil {
		return nil
	}

	if err := waitBackoff(ctx, backoff); err != nil {
		return err
	}

	return op(ctx)
}

func waitBackoff(ctx context.Context, backoff time.Duration) error {
	if backoff <= 0 {
		return nil
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
