package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BAL-DMU/mapcov/internal/adapter"
	"github.com/BAL-DMU/mapcov/internal/controller"
	"github.com/BAL-DMU/mapcov/internal/logging"
	m "github.com/BAL-DMU/mapcov/internal/model"
)

const extractWorkers = 4

// VerifyArgs selects what a verification run covers.
type VerifyArgs struct {
	Maps       []m.Path // explicit map selection; empty verifies every known map
	MaxDepth   int      // rule nesting filter; negative verifies all depths
	ReportPath string   // where the report is persisted; empty disables persistence
}

// Workflow is the entry point for coverage verification runs.
type Workflow interface {
	Verify(ctx context.Context, args VerifyArgs) (m.Report, error)
	ListRuleSets(ctx context.Context, maps []m.Path) ([]m.RuleSet, error)
	Clean(ctx context.Context) error
}

type workflow struct {
	mapStore    adapter.MapStore
	reportStore adapter.ReportStore
	assoc       adapter.TestAssociation
	engine      adapter.Engine
	ui          controller.UI
	orch        Orchestrator
	extractor   Extractor
	order       []string
	logger      *slog.Logger
}

// NewWorkflow creates a Workflow on top of the provided adapters. The
// order argument overrides the derived dependency order of baseline
// uploads; leave it empty to sort by imports.
func NewWorkflow(
	mapStore adapter.MapStore,
	reportStore adapter.ReportStore,
	assoc adapter.TestAssociation,
	engine adapter.Engine,
	ui controller.UI,
	orch Orchestrator,
	extractor Extractor,
	order []string,
) Workflow {
	return &workflow{
		mapStore:    mapStore,
		reportStore: reportStore,
		assoc:       assoc,
		engine:      engine,
		ui:          ui,
		orch:        orch,
		extractor:   extractor,
		order:       order,
		logger:      logging.New("workflow"),
	}
}

// Verify disables every selected rule in turn and classifies the
// response of the associated test suites. Maps that fail to parse are
// reported as unparseable instead of aborting the run. The returned
// report is valid even on error; a cancelled run returns the partial
// report together with the context's error.
func (w *workflow) Verify(ctx context.Context, args VerifyArgs) (m.Report, error) {
	report := m.Report{Started: time.Now()}

	known, err := w.mapStore.List()
	if err != nil {
		return report, fmt.Errorf("list maps: %w", err)
	}

	if len(known) == 0 {
		return report, fmt.Errorf("no mapping files found")
	}

	targets, err := selectMaps(known, args.Maps)
	if err != nil {
		return report, err
	}

	contents, sets, extractErrs, err := w.loadAll(known)
	if err != nil {
		return report, err
	}

	if err := w.engine.Ready(ctx); err != nil {
		return report, fmt.Errorf("engine not ready: %w", err)
	}

	order := w.uploadOrder(known, sets)

	// Baseline: every known map goes up unmodified, dependencies first,
	// so the engine can resolve imports for the whole run.
	for _, file := range order {
		if err := w.engine.Upload(ctx, file, contents[file]); err != nil {
			return report, fmt.Errorf("baseline upload of %s: %w", file, err)
		}
	}

	targetOrder := make([]m.Path, 0, len(targets))

	for _, file := range order {
		if targets[file] {
			targetOrder = append(targetOrder, file)
		}
	}

	totalRules := 0
	for _, file := range targetOrder {
		totalRules += len(sets[file].AtDepth(args.MaxDepth))
	}

	w.ui.DisplayRunStart(len(targetOrder), totalRules)

	done := 0
	cancelled := false

	for _, file := range targetOrder {
		fileRes := m.FileResult{Set: sets[file]}

		if exErr, ok := extractErrs[file]; ok {
			fileRes.Err = exErr.Error()
			w.logger.Warn("map not parseable, skipping",
				slog.String("map", string(file)),
				slog.Any("error", exErr))
			report.Files = append(report.Files, fileRes)

			continue
		}

		testIDs := w.assoc.TestsFor(file)
		rules := sets[file].AtDepth(args.MaxDepth)
		ignores := ruleIgnores(contents[file], rules)
		seenSpans := make(map[string]bool, len(rules))

		for _, rule := range rules {
			if ctx.Err() != nil {
				cancelled = true
				break
			}

			done++
			w.ui.DisplayRuleStart(rule, done, totalRules)

			var res m.CoverageResult

			switch span := rule.Span(); {
			case ignores[rule.ID()] != "":
				res = m.CoverageResult{Rule: rule, Status: m.StatusSkipped, Reason: ignores[rule.ID()]}
			case seenSpans[span]:
				// Two rules sharing one span would produce identical
				// mutants; the first is verified, the rest are flagged.
				res = m.CoverageResult{Rule: rule, Status: m.StatusSkipped, Reason: "duplicate span"}
			default:
				seenSpans[span] = true
				res = w.orch.VerifyRule(ctx, contents[file], rule, testIDs)
			}

			w.ui.DisplayRuleResult(res, done, totalRules)
			fileRes.Results = append(fileRes.Results, res)
		}

		report.Files = append(report.Files, fileRes)

		if cancelled {
			break
		}
	}

	report.Finished = time.Now()

	w.ui.DisplayReport(report)

	if args.ReportPath != "" {
		if err := w.reportStore.Save(m.Path(args.ReportPath), report); err != nil {
			return report, fmt.Errorf("save report: %w", err)
		}
	}

	if cancelled {
		return report, ctx.Err()
	}

	return report, nil
}

// ListRuleSets extracts the rules of the selected maps without touching
// the engine. Files are read and parsed concurrently.
func (w *workflow) ListRuleSets(ctx context.Context, maps []m.Path) ([]m.RuleSet, error) {
	known, err := w.mapStore.List()
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}

	targets, err := selectMaps(known, maps)
	if err != nil {
		return nil, err
	}

	files := make([]m.Path, 0, len(targets))

	for _, file := range known {
		if targets[file] {
			files = append(files, file)
		}
	}

	sets := make([]m.RuleSet, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(extractWorkers)

	for i, file := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			content, err := w.mapStore.Read(file)
			if err != nil {
				return fmt.Errorf("read map %s: %w", file, err)
			}

			set, err := w.extractor.Extract(file, content)
			if err != nil {
				return err
			}

			sets[i] = set

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return sets, nil
}

// Clean deletes previously uploaded maps from the engine, in reverse
// upload order so dependents disappear before their dependencies. Maps
// the engine does not know are fine; any other delete failure is
// collected and reported at the end.
func (w *workflow) Clean(ctx context.Context) error {
	known, err := w.mapStore.List()
	if err != nil {
		return fmt.Errorf("list maps: %w", err)
	}

	_, sets, _, err := w.loadAll(known)
	if err != nil {
		return err
	}

	order := w.uploadOrder(known, sets)
	failed := 0

	for i := len(order) - 1; i >= 0; i-- {
		file := order[i]

		err := w.engine.Delete(ctx, file)
		switch {
		case err == nil:
			w.logger.Info("map deleted", slog.String("map", string(file)))
		case adapter.IsNotFound(err):
			w.logger.Debug("map not present in engine", slog.String("map", string(file)))
		default:
			failed++
			w.logger.Error("failed to delete map",
				slog.String("map", string(file)),
				slog.Any("error", err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to delete %d of %d maps", failed, len(order))
	}

	return nil
}

// loadAll reads and parses every known map. Read failures abort, parse
// failures are recorded per file so the run can report them.
func (w *workflow) loadAll(known []m.Path) (map[m.Path]string, map[m.Path]m.RuleSet, map[m.Path]error, error) {
	contents := make(map[m.Path]string, len(known))
	sets := make(map[m.Path]m.RuleSet, len(known))
	extractErrs := make(map[m.Path]error)

	for _, file := range known {
		content, err := w.mapStore.Read(file)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read map %s: %w", file, err)
		}

		contents[file] = content

		set, err := w.extractor.Extract(file, content)
		if err != nil {
			extractErrs[file] = err
			set = m.RuleSet{File: file}
		}

		sets[file] = set
	}

	return contents, sets, extractErrs, nil
}

// uploadOrder returns all known maps with dependencies before their
// dependents. An explicitly configured order wins; otherwise the order
// derives from the imports declared in the maps themselves, with the
// store order as tie-break.
func (w *workflow) uploadOrder(known []m.Path, sets map[m.Path]m.RuleSet) []m.Path {
	if len(w.order) > 0 {
		return w.explicitOrder(known)
	}

	knownSet := make(map[m.Path]bool, len(known))
	for _, file := range known {
		knownSet[file] = true
	}

	indegree := make(map[m.Path]int, len(known))
	dependents := make(map[m.Path][]m.Path)

	for _, file := range known {
		for _, imp := range sets[file].Imports {
			dep := importFile(imp)
			if dep == file || !knownSet[dep] {
				continue
			}

			indegree[file]++
			dependents[dep] = append(dependents[dep], file)
		}
	}

	order := make([]m.Path, 0, len(known))
	queue := make([]m.Path, 0, len(known))

	for _, file := range known {
		if indegree[file] == 0 {
			queue = append(queue, file)
		}
	}

	for len(queue) > 0 {
		file := queue[0]
		queue = queue[1:]
		order = append(order, file)

		for _, dep := range dependents[file] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) < len(known) {
		w.logger.Warn("import cycle between maps, keeping store order for the rest")

		for _, file := range known {
			if indegree[file] > 0 {
				order = append(order, file)
			}
		}
	}

	return order
}

// explicitOrder applies the configured upload order. Maps missing from
// the configuration are appended in store order so none are dropped.
func (w *workflow) explicitOrder(known []m.Path) []m.Path {
	knownSet := make(map[m.Path]bool, len(known))
	for _, file := range known {
		knownSet[file] = true
	}

	order := make([]m.Path, 0, len(known))
	seen := make(map[m.Path]bool, len(known))

	for _, name := range w.order {
		file := m.Path(name)
		if knownSet[file] && !seen[file] {
			order = append(order, file)
			seen[file] = true
		}
	}

	for _, file := range known {
		if !seen[file] {
			order = append(order, file)
		}
	}

	return order
}

// selectMaps validates an explicit selection against the known maps. An
// unknown name fails the whole run: nothing is mutated on a typo.
func selectMaps(known []m.Path, selected []m.Path) (map[m.Path]bool, error) {
	targets := make(map[m.Path]bool, len(known))

	if len(selected) == 0 {
		for _, file := range known {
			targets[file] = true
		}

		return targets, nil
	}

	knownSet := make(map[m.Path]bool, len(known))
	for _, file := range known {
		knownSet[file] = true
	}

	for _, file := range selected {
		if !knownSet[file] {
			return nil, fmt.Errorf("unknown map %q", file)
		}

		targets[file] = true
	}

	return targets, nil
}

// importFile resolves an imported canonical url to the mapping file
// that declares it, by convention the last url segment plus ".map".
func importFile(url string) m.Path {
	segment := url
	if i := strings.LastIndex(url, "/"); i >= 0 {
		segment = url[i+1:]
	}

	return m.Path(segment + ".map")
}
