package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/lsdc/internal/dynamo"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Reporter forwards rollout steps and trial results to a running program.
// It is a dynamo.Observer.
type Reporter struct {
	out   Sender
	trial int
}

func NewReporter(out Sender) *Reporter {
	return &Reporter{out: out}
}

// BeginTrial tags the following steps with trial i.
func (r *Reporter) BeginTrial(i int) { r.trial = i }

func (r *Reporter) OnStep(t int, x, xdot dynamo.Vec2, u dynamo.Control) {
	r.out.Send(StepMsg{Trial: r.trial, T: t, X: x, Xdot: xdot, U: u.Clone()})
}

func (r *Reporter) EndTrial(score float64, scored bool, err error) {
	r.out.Send(TrialDoneMsg{Trial: r.trial, Score: score, Scored: scored, Err: err})
}

// Run shows p while work executes and returns work's error. Quitting the
// view cancels the context handed to work.
func Run(ctx context.Context, p Progress, work func(ctx context.Context, r *Reporter) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(p, tea.WithContext(ctx))
	errc := make(chan error, 1)
	go func() {
		err := work(ctx, NewReporter(prog))
		prog.Send(DoneMsg{})
		errc <- err
	}()

	_, runErr := prog.Run()
	cancel()
	if err := <-errc; err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return nil
}
