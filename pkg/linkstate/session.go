package linkstate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
	"github.com/marccolburn/poc-helper-menu/pkg/prompt"
	"github.com/marccolburn/poc-helper-menu/pkg/util"
)

// menuItem is one entry of the impairment menu.
type menuItem struct {
	key   string
	label string
	ask   func(p prompt.Prompter) (Change, error)
}

func askOne(field model.ImpairmentField, question string) func(prompt.Prompter) (Change, error) {
	return func(p prompt.Prompter) (Change, error) {
		n, err := prompt.Int(p, question)
		if err != nil {
			return nil, err
		}
		return Change{field: n}, nil
	}
}

var menu = []menuItem{
	{"d", "Delay and Jitter", func(p prompt.Prompter) (Change, error) {
		delay, err := prompt.Int(p, "Enter delay value (ms): ")
		if err != nil {
			return nil, err
		}
		jitter, err := prompt.Int(p, "Enter jitter value (ms): ")
		if err != nil {
			return nil, err
		}
		return DelayJitter(delay, jitter), nil
	}},
	{"l", "Latency", askOne(model.FieldLatency, "Enter latency value (ms): ")},
	{"o", "Loss", askOne(model.FieldLoss, "Enter loss value (%): ")},
	{"r", "Rate", askOne(model.FieldRate, "Enter rate value (kbit/s): ")},
	{"c", "Corruption", askOne(model.FieldCorruption, "Enter corruption value (%): ")},
}

// Session is the interactive impairment editor for one link.
type Session struct {
	m   *Machine
	p   prompt.Prompter
	out io.Writer
}

// NewSession creates an editor writing to out.
func NewSession(m *Machine, p prompt.Prompter, out io.Writer) *Session {
	return &Session{m: m, p: p, out: out}
}

// Run edits a link's impairments until the operator goes back.
//
// When impairments are present they are shown with an offer to remove them
// all; accepting clears, applies and ends the session. Otherwise the
// operator picks one dimension, the value is stored and applied, and the
// loop starts over. A failed apply is reported and the loop continues.
func (s *Session) Run(ctx context.Context, lab *model.Lab, linkID string) error {
	if err := requireImpairable(lab); err != nil {
		return err
	}
	for {
		link, err := s.m.store.GetLink(ctx, lab.Name, linkID)
		if err != nil {
			return err
		}

		if !link.Impairment.IsZero() {
			done, err := s.offerClear(ctx, lab, link)
			if err != nil || done {
				return err
			}
		}

		c, back, err := s.choose()
		if err != nil || back {
			return err
		}
		if c == nil {
			continue
		}
		if _, err := s.m.SetImpairment(ctx, lab, linkID, c); err != nil {
			if !errors.Is(err, util.ErrDispatchFailed) {
				return err
			}
			fmt.Fprintf(s.out, "Failed to apply impairments: %v\n", err)
			continue
		}
		fmt.Fprintln(s.out, "Impairment set.")
	}
}

// offerClear shows the current impairments and clears them on request.
// done is true when they were cleared.
func (s *Session) offerClear(ctx context.Context, lab *model.Lab, link *model.Link) (done bool, err error) {
	fmt.Fprintf(s.out, "Current impairments on %s:\n", link)
	for _, f := range link.Impairment.NonZero() {
		fmt.Fprintf(s.out, "%s: %d\n", util.CapitalizeFirst(string(f)), link.Impairment.Get(f))
	}
	remove, err := prompt.Confirm(s.p, "Do you want to remove the impairments?")
	if err != nil || !remove {
		return false, err
	}
	if _, err := s.m.ClearImpairments(ctx, lab, link.ID); err != nil {
		return false, err
	}
	fmt.Fprintln(s.out, "Impairments removed.")
	return true, nil
}

// choose shows the menu and asks for values. A nil change with back false
// means the choice was not recognised.
func (s *Session) choose() (c Change, back bool, err error) {
	fmt.Fprintln(s.out, "Set Impairments")
	keys := make([]string, 0, len(menu)+1)
	for _, item := range menu {
		fmt.Fprintf(s.out, "  [%s] %s\n", item.key, item.label)
		keys = append(keys, item.key)
	}
	fmt.Fprintln(s.out, "  [b] Back")
	keys = append(keys, "b")

	answer, err := s.p.Input(fmt.Sprintf("Select [%s]: ", strings.Join(keys, "/")))
	if err != nil {
		return nil, false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "b" || answer == "" {
		return nil, true, nil
	}
	for _, item := range menu {
		if item.key == answer {
			c, err := item.ask(s.p)
			return c, false, err
		}
	}
	fmt.Fprintf(s.out, "Unknown option %q\n", answer)
	return nil, false, nil
}
