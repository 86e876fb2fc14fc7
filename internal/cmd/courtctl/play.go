package courtctl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/louisbranch/courtroom/internal/platform/i18n/catalog"
	"github.com/louisbranch/courtroom/internal/services/court/api/view"
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/domain/match"
	"github.com/louisbranch/courtroom/internal/services/court/engine"
	"github.com/louisbranch/courtroom/internal/services/court/session"
)

func newPlayCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "play <match-id>",
		Short: "Play a match in the terminal",
		Long:  "Plays a match turn by turn. Enter the number of an option to answer. End input (Ctrl-D) pauses the match.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runtime, err := openRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer runtime.Close()

			p := &player{
				out:       cmd.OutOrStdout(),
				in:        bufio.NewScanner(cmd.InOrStdin()),
				localizer: view.NewLocalizer(catalog.Default(), cfg.DefaultLocale),
				changed:   make(chan struct{}, 1),
			}
			s, err := runtime.Orchestrator.Open(cmd.Context(), args[0], session.OpenOptions{
				Observer: p.observe,
				OnPersistError: func(kind session.WriteKind, err error) {
					p.printf("! %s write failed: %s\n", kind, p.localizer.Error(err).Message)
				},
			})
			if err != nil {
				return err
			}
			return p.play(cmd.Context(), s)
		},
	}
}

// player drives one session from line input.
type player struct {
	out       io.Writer
	in        *bufio.Scanner
	localizer view.Localizer
	changed   chan struct{}

	mu      sync.Mutex
	printed int
}

func (p *player) observe(snapshot engine.Snapshot) {
	p.mu.Lock()
	if p.printed > len(snapshot.Messages) {
		p.printed = 0
	}
	for _, message := range snapshot.Messages[p.printed:] {
		fmt.Fprintln(p.out, formatMessage(message))
	}
	p.printed = len(snapshot.Messages)
	p.mu.Unlock()

	select {
	case p.changed <- struct{}{}:
	default:
	}
}

func (p *player) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *player) play(ctx context.Context, s *session.Session) error {
	if err := s.Start(ctx); err != nil {
		s.Close()
		return err
	}
	prompted := -1
	for {
		snapshot := s.Snapshot()
		switch {
		case snapshot.State.Terminal():
			p.printResult(snapshot)
			return s.Pause(ctx)
		case snapshot.Awaiting != nil && snapshot.State == engine.StateAwaitingChoice:
			if prompted != snapshot.Awaiting.TurnIndex {
				p.printOptions(snapshot.Awaiting)
				prompted = snapshot.Awaiting.TurnIndex
			}
			index, ok := p.readChoice(len(snapshot.Awaiting.Options))
			if !ok {
				p.printf("pausing match %s\n", s.MatchID())
				return s.Pause(ctx)
			}
			if err := p.choose(ctx, s, snapshot.Awaiting, index); err != nil {
				p.printf("! %s\n", p.localizer.Error(err).Message)
				prompted = -1
			}
			continue
		}

		select {
		case <-p.changed:
		case <-s.Done():
			return nil
		case <-ctx.Done():
			return s.Pause(context.WithoutCancel(ctx))
		}
	}
}

func (p *player) choose(ctx context.Context, s *session.Session, awaiting *engine.Awaiting, index int) error {
	if awaiting.Type == casefile.TurnEvidencePresentation {
		return s.SelectEvidence(ctx, awaiting.TurnIndex, index)
	}
	return s.SelectOption(ctx, awaiting.TurnIndex, index)
}

// readChoice reads a 1-based option number. It returns false at end of input.
func (p *player) readChoice(count int) (int, bool) {
	for {
		p.printf("> ")
		if !p.in.Scan() {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(p.in.Text()))
		if err == nil && n >= 1 && n <= count {
			return n - 1, true
		}
		p.printf("enter a number from 1 to %d\n", count)
	}
}

func (p *player) printOptions(awaiting *engine.Awaiting) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, option := range awaiting.Options {
		if option.Description != "" {
			fmt.Fprintf(p.out, "  %d. %s: %s\n", option.Index+1, option.Text, option.Description)
			continue
		}
		fmt.Fprintf(p.out, "  %d. %s\n", option.Index+1, option.Text)
	}
}

func (p *player) printResult(snapshot engine.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snapshot.Verdict == nil {
		if snapshot.Err != nil {
			fmt.Fprintf(p.out, "hearing failed: %s\n", p.localizer.Error(snapshot.Err).Message)
		}
		return
	}
	fmt.Fprintf(p.out, "verdict: %s (%d/%d)\n", *snapshot.Verdict, snapshot.Score, snapshot.MaxScore)
	for _, line := range snapshot.PositiveFeedback {
		fmt.Fprintf(p.out, "  + %s\n", line)
	}
	for _, line := range snapshot.NegativeFeedback {
		fmt.Fprintf(p.out, "  - %s\n", line)
	}
	for _, line := range snapshot.Tips {
		fmt.Fprintf(p.out, "  tip: %s\n", line)
	}
	if snapshot.FinalSaveError != nil {
		fmt.Fprintf(p.out, "! %s\n", p.localizer.Error(snapshot.FinalSaveError).Message)
	}
}

func formatMessage(m match.Message) string {
	if m.SpeakerName != "" {
		return m.SpeakerName + ": " + m.Text
	}
	return "[" + string(m.Kind) + "] " + m.Text
}
