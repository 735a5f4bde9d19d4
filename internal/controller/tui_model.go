package controller

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

// ruleRow is one rule in the results list.
type ruleRow struct {
	span   string
	file   string
	status string
	desc   string
	detail string
}

// Implement list.Item interface for ruleRow.
func (r ruleRow) FilterValue() string {
	return r.file + " " + r.span + " " + r.status + " " + r.desc
}

// ruleRowDelegate is the delegate for rendering rule rows in the list.
type ruleRowDelegate struct{}

func (d ruleRowDelegate) Height() int  { return 1 }
func (d ruleRowDelegate) Spacing() int { return 0 }
func (d ruleRowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d ruleRowDelegate) Render(w io.Writer, lm list.Model, index int, item list.Item) {
	row, ok := item.(ruleRow)
	if !ok {
		return
	}

	isSelected := index == lm.Index()
	descWidth := lm.Width() - 48 // Reserve space for Lines, Status, Map columns and spacing

	spanStyle, statusStyle, descStyle := rowStyles(row.status, isSelected)

	line := fmt.Sprintf("%s  %s  %s  %s",
		spanStyle.Render(fmt.Sprintf("%-9s", row.span)),
		statusStyle.Render(fmt.Sprintf("%-8s", row.status)),
		spanStyle.Render(fmt.Sprintf("%-24s", truncateCell(row.file, 24))),
		descStyle.Render(truncateCell(row.desc, descWidth)),
	)
	_, _ = fmt.Fprint(w, line)
}

func rowStyles(status string, isSelected bool) (lipgloss.Style, lipgloss.Style, lipgloss.Style) {
	if isSelected {
		selected := lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("6")).
			Bold(true)

		return selected, selected, selected
	}

	statusColorMap := map[string]lipgloss.Color{
		string(m.StatusCovered): lipgloss.Color("2"), // Green
		string(m.StatusMissing): lipgloss.Color("1"), // Red
		string(m.StatusError):   lipgloss.Color("3"), // Yellow
		string(m.StatusSkipped): lipgloss.Color("8"), // Gray
	}

	statusColor, ok := statusColorMap[status]
	if !ok {
		statusColor = lipgloss.Color("8")
	}

	return lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		lipgloss.NewStyle().
			Foreground(statusColor).
			Bold(true),
		lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))
}

// runModel handles the TUI display during a verification run.
type runModel struct {
	mode        StartMode
	width       int
	height      int
	progressBar progress.Model
	totalFiles  int
	totalRules  int
	doneCount   int
	current     string
	rendered    bool
	finished    bool
	counts      map[m.Status]int
	coverage    float64
	results     []ruleRow
	resultsList list.Model
}

func newRunModel(mode StartMode) runModel {
	prog := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	resultsList := list.New([]list.Item{}, ruleRowDelegate{}, 80, 20)
	resultsList.SetShowPagination(false)
	resultsList.SetShowFilter(true)
	resultsList.SetShowHelp(false)
	resultsList.SetShowTitle(false)
	resultsList.SetShowStatusBar(false)
	resultsList.FilterInput.Placeholder = "Filter rules…"

	return runModel{
		mode:        mode,
		progressBar: prog,
		resultsList: resultsList,
		counts:      make(map[m.Status]int),
	}
}

func (rm runModel) Init() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		rm = rm.handleWindowSize(msg)

	case tea.KeyMsg:
		rm, cmd = rm.handleKeyMsg(msg)

	case tickMsg:
		return rm, tea.Tick(time.Millisecond*150, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})

	case runStartMsg:
		rm.totalFiles = msg.files
		rm.totalRules = msg.rules
		rm.doneCount = 0
		rm.rendered = true

	case ruleStartMsg:
		rm.current = fmt.Sprintf("%s %s  %s", msg.rule.File, msg.rule.Span(), msg.rule.Desc)
		rm.rendered = true

	case ruleResultMsg:
		rm = rm.handleRuleResult(msg)

	case ruleSetsMsg:
		rm = rm.handleRuleSets(msg)

	case reportMsg:
		rm = rm.handleReport(msg)
	}

	return rm, cmd
}

func (rm runModel) View() string {
	if !rm.rendered && !rm.finished {
		if rm.mode == ModeRun {
			return "Waiting for the engine…\n"
		}

		return "Loading…\n"
	}

	if rm.finished {
		return rm.viewResults()
	}

	return rm.viewProgress()
}

func (rm runModel) viewProgress() string {
	accentColor := lipgloss.Color("6") // Cyan

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true).
		Padding(1, 0, 0, 2)

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Padding(0, 0, 1, 2)

	accentStyle := lipgloss.NewStyle().Foreground(accentColor)

	title := titleStyle.Render("🧪 Mapping Rule Coverage")

	summary := summaryStyle.Render(fmt.Sprintf(
		"Progress: %s / %s  •  Maps: %s",
		accentStyle.Render(fmt.Sprintf("%d", rm.doneCount)),
		accentStyle.Render(fmt.Sprintf("%d", rm.totalRules)),
		accentStyle.Render(fmt.Sprintf("%d", rm.totalFiles)),
	))

	progressStyle := lipgloss.NewStyle().
		Padding(0, 2)

	percent := 0.0
	if rm.totalRules > 0 {
		percent = float64(rm.doneCount) / float64(rm.totalRules)
	}

	progressView := progressStyle.Render(rm.progressBar.ViewAs(percent))

	currentBox := rm.renderCurrentBox(accentColor)

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Align(lipgloss.Center).
		Width(rm.width)

	footer := footerStyle.Render("Press q to quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		summary,
		progressView,
		currentBox,
		footer,
	)
}

func (rm runModel) renderCurrentBox(accentColor lipgloss.Color) string {
	contentStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1).
		Margin(1, 1, 1, 0).
		Width(rm.width - 4)

	availableWidth := rm.width - 4 - 2 - 2

	line := "idle"
	if rm.current != "" {
		line = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Render(truncateCell(rm.current, availableWidth))
	}

	return contentStyle.Render(line)
}

func (rm runModel) viewResults() string {
	accentColor := lipgloss.Color("6") // Cyan

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true).
		Padding(1, 0, 0, 2)

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Padding(0, 0, 1, 2)

	accentStyle := lipgloss.NewStyle().Foreground(accentColor)

	title := titleStyle.Render("🧪 Coverage Results")

	summary := summaryStyle.Render(fmt.Sprintf(
		"Covered: %s  •  Missing: %s  •  Errors: %s  •  Skipped: %s  •  Coverage: %s",
		accentStyle.Render(fmt.Sprintf("%d", rm.counts[m.StatusCovered])),
		accentStyle.Render(fmt.Sprintf("%d", rm.counts[m.StatusMissing])),
		accentStyle.Render(fmt.Sprintf("%d", rm.counts[m.StatusError])),
		accentStyle.Render(fmt.Sprintf("%d", rm.counts[m.StatusSkipped])),
		accentStyle.Render(fmt.Sprintf("%.1f%%", rm.coverage)),
	))

	resultsBox := rm.renderResultsBox(accentColor)

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Align(lipgloss.Center).
		Width(rm.width)

	footer := footerStyle.Render("↑/k up • ↓/j down • g/G top/bottom • / filter • q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		summary,
		resultsBox,
		footer,
	)
}

func (rm runModel) renderResultsBox(accentColor lipgloss.Color) string {
	listWidth := rm.width - 4

	listHeight := rm.height - 9
	if listHeight < 5 {
		listHeight = 5
	}

	rm.resultsList.SetHeight(listHeight)
	rm.resultsList.SetWidth(listWidth)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Bold(true).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("8")).
		Width(listWidth)

	headers := headerStyle.Render(fmt.Sprintf("%-9s  %-8s  %-24s  %s", "Lines", "Status", "Map", "Rule"))

	resultsStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Margin(0, 1, 0, 0).
		Padding(0, 1)

	return resultsStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			headers,
			rm.resultsList.View(),
		),
	)
}

func (rm runModel) handleRuleResult(msg ruleResultMsg) runModel {
	rm.doneCount = msg.done
	rm.totalRules = msg.total
	rm.counts[msg.result.Status]++
	rm.results = append(rm.results, resultRow(msg.result))
	rm.rendered = true

	rm.syncListItems()

	return rm
}

func (rm runModel) handleRuleSets(msg ruleSetsMsg) runModel {
	rm.results = rm.results[:0]

	for _, set := range msg.sets {
		for _, rule := range set.Rules {
			rm.results = append(rm.results, ruleRow{
				span:   rule.Span(),
				file:   string(rule.File),
				status: string(rule.Kind),
				desc:   rule.Desc,
				detail: rule.Label,
			})
		}
	}

	rm.finished = true
	rm.rendered = true

	rm.syncListItems()

	return rm
}

func (rm runModel) handleReport(msg reportMsg) runModel {
	rm.counts = msg.report.Counts()
	rm.coverage = msg.report.CoveragePct()
	rm.results = rm.results[:0]

	for _, file := range msg.report.Files {
		for _, res := range file.Results {
			rm.results = append(rm.results, resultRow(res))
		}
	}

	rm.finished = true
	rm.rendered = true

	rm.syncListItems()

	return rm
}

func (rm *runModel) syncListItems() {
	items := make([]list.Item, 0, len(rm.results))

	for _, row := range rm.results {
		items = append(items, row)
	}

	rm.resultsList.SetItems(items)
}

func resultRow(res m.CoverageResult) ruleRow {
	detail := res.Reason
	if len(res.Evidence) > 0 {
		detail = strings.Join(res.Evidence, ", ")
	}

	return ruleRow{
		span:   res.Rule.Span(),
		file:   string(res.Rule.File),
		status: string(res.Status),
		desc:   res.Rule.Desc,
		detail: detail,
	}
}

func (rm runModel) handleKeyMsg(msg tea.KeyMsg) (runModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.String() {
	case "q", "ctrl+c":
		return rm, tea.Quit
	default:
		if rm.finished {
			var newList list.Model

			newList, cmd = rm.resultsList.Update(msg)
			rm.resultsList = newList

			return rm, cmd
		}
	}

	return rm, nil
}

func (rm runModel) handleWindowSize(msg tea.WindowSizeMsg) runModel {
	rm.width = msg.Width
	rm.height = msg.Height

	rm.progressBar.Width = rm.width - 8
	if rm.progressBar.Width < 20 {
		rm.progressBar.Width = 20
	}

	return rm
}

func truncateCell(text string, width int) string {
	if width <= 0 {
		return ""
	}

	if lipgloss.Width(text) <= width {
		return text
	}

	ellipsis := "…"

	maxWidth := width - lipgloss.Width(ellipsis)
	if maxWidth <= 0 {
		return ellipsis
	}

	currentWidth := 0

	result := make([]rune, 0, len(text))
	for _, r := range text {
		rWidth := lipgloss.Width(string(r))
		if currentWidth+rWidth > maxWidth {
			break
		}

		result = append(result, r)
		currentWidth += rWidth
	}

	return string(result) + ellipsis
}
