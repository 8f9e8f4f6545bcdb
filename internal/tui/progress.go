// Package tui shows batch rollout progress in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/lsdc/internal/dynamo"
	"github.com/san-kum/lsdc/internal/viz"
)

// StepMsg reports one rollout timestep.
type StepMsg struct {
	Trial   int
	T       int
	X, Xdot dynamo.Vec2
	U       dynamo.Control
}

// TrialDoneMsg reports the end of a trial. Err is set when it aborted.
type TrialDoneMsg struct {
	Trial  int
	Score  float64
	Scored bool
	Err    error
}

// DoneMsg ends the program after the last trial.
type DoneMsg struct{}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type trialResult struct {
	score  float64
	scored bool
	err    error
}

// Progress is the bubbletea model for a batch of trials.
type Progress struct {
	title  string
	trials int
	steps  int
	goal   *dynamo.Vec2
	extent float64

	trial   int
	t       int
	path    []dynamo.Vec2
	speeds  []float64
	lastU   dynamo.Control
	results []trialResult

	frame     int
	done      bool
	cancelled bool
	width     int
}

func NewProgress(title string, trials, steps int, goal []float64) Progress {
	p := Progress{
		title:  title,
		trials: trials,
		steps:  steps,
		extent: 0.5,
		width:  80,
	}
	if len(goal) == 2 {
		p.goal = &dynamo.Vec2{goal[0], goal[1]}
	}
	return p
}

func (p Progress) Init() tea.Cmd { return tick() }

// Cancelled reports whether the user quit before the batch finished.
func (p Progress) Cancelled() bool { return p.cancelled }

func (p Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			p.cancelled = true
			return p, tea.Quit
		}
	case tea.WindowSizeMsg:
		p.width = msg.Width
	case tickMsg:
		if p.done {
			return p, nil
		}
		p.frame++
		return p, tick()
	case StepMsg:
		if msg.Trial != p.trial || msg.T == 0 {
			p.trial = msg.Trial
			p.path = p.path[:0]
			p.speeds = p.speeds[:0]
		}
		p.t = msg.T
		p.path = append(p.path, msg.X)
		p.speeds = append(p.speeds, msg.Xdot.Norm())
		p.lastU = msg.U
	case TrialDoneMsg:
		p.results = append(p.results, trialResult{score: msg.Score, scored: msg.Scored, err: msg.Err})
	case DoneMsg:
		p.done = true
		return p, tea.Quit
	}
	return p, nil
}

func (p Progress) View() string {
	var b strings.Builder

	status := StatusRunning.Render(Spinner(p.frame) + " running")
	if p.done {
		status = StatusDone.Render("done")
	}
	b.WriteString(Title.Render(p.title) + "  " + status + "\n\n")

	finished := len(p.results)
	b.WriteString(fmt.Sprintf("%s %s %d/%d\n",
		MetricLabel.Render("trials"),
		ProgressBar(ratio(finished, p.trials), 30),
		finished, p.trials))
	b.WriteString(fmt.Sprintf("%s %s %d/%d\n\n",
		MetricLabel.Render("steps "),
		ProgressBar(ratio(len(p.path), p.steps), 30),
		len(p.path), p.steps))

	preview := viz.PathPreview(p.path, p.goal, 24, 8, p.extent)
	b.WriteString(Panel.Render(preview) + "\n")

	if len(p.path) > 0 {
		x := p.path[len(p.path)-1]
		b.WriteString(fmt.Sprintf("%s %s  %s %s\n",
			MetricLabel.Render("x"), MetricValue.Render(fmt.Sprintf("(%+.3f, %+.3f)", x[0], x[1])),
			MetricLabel.Render("u"), MetricValue.Render(formatControl(p.lastU))))
		b.WriteString(MetricLabel.Render("speed ") + Sparkline(p.speeds, 30) + "\n")
	}

	if line := p.scoreLine(); line != "" {
		b.WriteString("\n" + line + "\n")
	}
	b.WriteString("\n" + KeyHint.Render("q quit"))
	return b.String()
}

func (p Progress) scoreLine() string {
	var scored, failed int
	var sum float64
	for _, r := range p.results {
		switch {
		case r.err != nil:
			failed++
		case r.scored:
			scored++
			sum += r.score
		}
	}
	var parts []string
	if scored > 0 {
		parts = append(parts, MetricLabel.Render("mean goal distance ")+MetricValue.Render(fmt.Sprintf("%.4f", sum/float64(scored))))
	}
	if failed > 0 {
		parts = append(parts, StatusFailed.Render(fmt.Sprintf("%d failed", failed)))
	}
	return strings.Join(parts, "  ")
}

func ratio(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func formatControl(u dynamo.Control) string {
	parts := make([]string, len(u))
	for i, v := range u {
		parts[i] = fmt.Sprintf("%+.3f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
