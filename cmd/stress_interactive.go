package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/olimci/lazycell/pkg/config"
)

var ErrCancelled = errors.New("cancelled")

// runStressInteractive lets the user pick scenarios and override their
// goroutine and call counts.
func runStressInteractive(ctx context.Context, cfg *config.Config, selected []config.Scenario) ([]config.Scenario, error) {
	names := make([]string, 0, len(selected))
	for _, s := range selected {
		names = append(names, s.Name)
	}

	options := make([]huh.Option[string], 0, len(cfg.Scenarios))
	for _, s := range cfg.Scenarios {
		label := fmt.Sprintf("%s (%dx%d %s)", s.Name, s.Goroutines, s.Calls, s.Initializer)
		options = append(options, huh.NewOption(label, s.Name))
	}

	var goroutines, calls string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Scenarios").
				Options(options...).
				Value(&names).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return errors.New("pick at least one scenario")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Goroutines").
				Description("Leave empty to keep each scenario's value").
				Value(&goroutines).
				Validate(countValidator(1)),
			huh.NewInput().
				Title("Calls per goroutine").
				Description("Leave empty to keep each scenario's value").
				Value(&calls).
				Validate(countValidator(0)),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrCancelled
		}
		return nil, err
	}

	scenarios, err := cfg.Select(names...)
	if err != nil {
		return nil, err
	}
	return applyOverrides(scenarios, goroutines, calls), nil
}

func countValidator(least int) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < least {
			return fmt.Errorf("must be a whole number >= %d", least)
		}
		return nil
	}
}

// applyOverrides replaces counts with the form's values where they were given.
// Inputs are assumed to have passed countValidator.
func applyOverrides(scenarios []config.Scenario, goroutines, calls string) []config.Scenario {
	out := make([]config.Scenario, len(scenarios))
	for i, s := range scenarios {
		if n, err := strconv.Atoi(strings.TrimSpace(goroutines)); err == nil {
			s.Goroutines = n
		}
		if n, err := strconv.Atoi(strings.TrimSpace(calls)); err == nil {
			s.Calls = n
		}
		out[i] = s
	}
	return out
}
