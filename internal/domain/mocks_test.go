package domain

import (
	"context"
	"fmt"
	"sync"

	"github.com/BAL-DMU/mapcov/internal/controller"
	m "github.com/BAL-DMU/mapcov/internal/model"
)

// engineStub implements adapter.Engine. It records every call and keeps
// the last uploaded content per file, so tests can inspect exactly what
// the engine would be serving at any point of a run.
type engineStub struct {
	mu         sync.Mutex
	live       map[m.Path]string
	uploads    []m.Path
	deleted    []m.Path
	readyCalls int
	runCalls   int

	readyErr  error
	uploadErr func(file m.Path, content string) error
	deleteErr func(file m.Path) error
	runTests  func(ctx context.Context, testIDs []string) (map[string]m.TestOutcome, error)
}

func newEngineStub() *engineStub {
	return &engineStub{live: make(map[m.Path]string)}
}

func (e *engineStub) Ready(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.readyCalls++

	return e.readyErr
}

func (e *engineStub) Upload(_ context.Context, file m.Path, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.uploadErr != nil {
		if err := e.uploadErr(file, content); err != nil {
			return err
		}
	}

	e.uploads = append(e.uploads, file)
	e.live[file] = content

	return nil
}

func (e *engineStub) RunTests(ctx context.Context, testIDs []string) (map[string]m.TestOutcome, error) {
	e.mu.Lock()
	e.runCalls++
	fn := e.runTests
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, testIDs)
	}

	outcomes := make(map[string]m.TestOutcome, len(testIDs))
	for _, id := range testIDs {
		outcomes[id] = m.TestOutcome{Passed: true}
	}

	return outcomes, nil
}

func (e *engineStub) Delete(_ context.Context, file m.Path) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleteErr != nil {
		if err := e.deleteErr(file); err != nil {
			return err
		}
	}

	e.deleted = append(e.deleted, file)

	return nil
}

func (e *engineStub) liveContent(file m.Path) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.live[file]
}

func (e *engineStub) uploadedFiles() []m.Path {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]m.Path(nil), e.uploads...)
}

// mapStoreStub implements adapter.MapStore over an in-memory file set.
type mapStoreStub struct {
	names   []m.Path
	files   map[m.Path]string
	listErr error
	readErr error
}

func (s *mapStoreStub) List() ([]m.Path, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}

	return append([]m.Path(nil), s.names...), nil
}

func (s *mapStoreStub) Read(file m.Path) (string, error) {
	if s.readErr != nil {
		return "", s.readErr
	}

	content, ok := s.files[file]
	if !ok {
		return "", fmt.Errorf("open %s: file does not exist", file)
	}

	return content, nil
}

// assocStub implements adapter.TestAssociation from a fixed table.
type assocStub struct {
	tests map[m.Path][]string
}

func (a *assocStub) TestsFor(file m.Path) []string {
	return a.tests[file]
}

// reportStoreStub implements adapter.ReportStore in memory.
type reportStoreStub struct {
	mu      sync.Mutex
	saved   map[m.Path]m.Report
	saveErr error
}

func (r *reportStoreStub) Save(path m.Path, report m.Report) error {
	if r.saveErr != nil {
		return r.saveErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saved == nil {
		r.saved = make(map[m.Path]m.Report)
	}

	r.saved[path] = report

	return nil
}

func (r *reportStoreStub) Load(path m.Path) (m.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.saved[path]
	if !ok {
		return m.Report{}, fmt.Errorf("no report at %s", path)
	}

	return report, nil
}

// uiStub implements controller.UI and records the events it receives.
type uiStub struct {
	mu         sync.Mutex
	runStarts  []int
	ruleStarts int
	results    []m.CoverageResult
	reports    []m.Report
	ruleSets   [][]m.RuleSet
}

func (u *uiStub) Start(_ ...controller.StartOption) error { return nil }

func (u *uiStub) Close() {}

func (u *uiStub) Wait() {}

func (u *uiStub) DisplayRuleSets(sets []m.RuleSet) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.ruleSets = append(u.ruleSets, sets)
}

func (u *uiStub) DisplayRunStart(_, rules int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.runStarts = append(u.runStarts, rules)
}

func (u *uiStub) DisplayRuleStart(_ m.Rule, _, _ int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.ruleStarts++
}

func (u *uiStub) DisplayRuleResult(result m.CoverageResult, _, _ int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.results = append(u.results, result)
}

func (u *uiStub) DisplayReport(report m.Report) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.reports = append(u.reports, report)
}

// extractorStub implements Extractor from a fixed table, bypassing real
// parsing so tests can hand the workflow arbitrary rule sets.
type extractorStub struct {
	sets map[m.Path]m.RuleSet
	err  error
}

func (e *extractorStub) Extract(file m.Path, _ string) (m.RuleSet, error) {
	if e.err != nil {
		return m.RuleSet{}, e.err
	}

	return e.sets[file], nil
}
