package stress

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/olimci/lazycell/pkg/config"
	"github.com/olimci/lazycell/pkg/events"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunDefaultScenarios(t *testing.T) {
	cfg := config.DefaultConfig()

	for _, s := range cfg.Scenarios {
		t.Run(s.Name, func(t *testing.T) {
			res, err := Run(context.Background(), s)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if err := res.Check(); err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res.Accesses != int64(s.Accesses()) {
				t.Errorf("Accesses = %d, want %d", res.Accesses, s.Accesses())
			}
		})
	}
}

func TestRunStress(t *testing.T) {
	s := config.Scenario{Name: "stress", Goroutines: 50, Calls: 20, Initializer: config.InitCounter}

	res, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Invocations != 1 {
		t.Errorf("Invocations = %d, want 1", res.Invocations)
	}
	if res.Accesses != 1000 {
		t.Errorf("Accesses = %d, want 1000", res.Accesses)
	}
	if res.Pointers != 1 || res.Values != 1 {
		t.Errorf("observed %d pointers and %d values, want 1 each", res.Pointers, res.Values)
	}
	if res.Releases != 1 {
		t.Errorf("Releases = %d, want 1", res.Releases)
	}
}

func TestRunLimitedWorkers(t *testing.T) {
	s := config.Scenario{Name: "limited", Goroutines: 16, Calls: 4, Initializer: config.InitConstant, Value: 9}

	res, err := Run(context.Background(), s, WithMaxWorkers(2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := res.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestRunForwardsEvents(t *testing.T) {
	var mu sync.Mutex
	kinds := map[events.Kind]int{}
	handler := events.NewHandlerFunc(func(e events.Event) {
		mu.Lock()
		kinds[e.Kind]++
		mu.Unlock()
	})

	s := config.Scenario{Name: "single", Goroutines: 1, Calls: 2, Initializer: config.InitConstant, Value: 42}
	if _, err := Run(context.Background(), s, WithEventHandler(handler)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if kinds[events.InitDone] != 1 || kinds[events.Released] != 1 {
		t.Fatalf("forwarded events %v, want one init-done and one released", kinds)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := config.Scenario{Name: "cancelled", Goroutines: 4, Calls: 10, Initializer: config.InitConstant}
	if _, err := Run(ctx, s); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want %v", err, context.Canceled)
	}
}

func TestCheck(t *testing.T) {
	base := config.Scenario{Name: "x", Goroutines: 2, Calls: 2, Initializer: config.InitConstant}
	idle := config.Scenario{Name: "idle", Goroutines: 2, Calls: 0, Initializer: config.InitConstant}
	panicky := config.Scenario{Name: "p", Goroutines: 2, Calls: 2, Initializer: config.InitPanic}

	tests := []struct {
		name    string
		result  Result
		wantErr error
	}{
		{
			name:   "healthy",
			result: Result{Scenario: base, Invocations: 1, Accesses: 4, Pointers: 1, Values: 1, Releases: 1},
		},
		{
			name:    "double init",
			result:  Result{Scenario: base, Invocations: 2, Accesses: 4, Pointers: 1, Values: 1, Releases: 2},
			wantErr: ErrMultipleInit,
		},
		{
			name:    "eager",
			result:  Result{Scenario: idle, Invocations: 1, Releases: 1},
			wantErr: ErrNotLazy,
		},
		{
			name:    "never initialized",
			result:  Result{Scenario: base, Accesses: 4},
			wantErr: ErrNeverInit,
		},
		{
			name:    "divergent",
			result:  Result{Scenario: base, Invocations: 1, Accesses: 4, Pointers: 2, Values: 1, Releases: 1},
			wantErr: ErrDivergent,
		},
		{
			name:    "leaked",
			result:  Result{Scenario: base, Invocations: 1, Accesses: 4, Pointers: 1, Values: 1},
			wantErr: ErrReleaseMismatch,
		},
		{
			name:   "poisoned",
			result: Result{Scenario: panicky, Invocations: 1, Accesses: 4, Poisoned: 4},
		},
		{
			name:    "poison escaped",
			result:  Result{Scenario: panicky, Invocations: 1, Accesses: 4, Poisoned: 3, Pointers: 1, Values: 1},
			wantErr: ErrPoisonMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Check()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Check = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Check = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReport(t *testing.T) {
	var seen []string
	results, err := RunAll(context.Background(), config.DefaultConfig().Scenarios, func(r *Result) {
		seen = append(seen, r.Scenario.Name)
	})
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(seen) != len(results) {
		t.Fatalf("report called %d times for %d results", len(seen), len(results))
	}

	bad := *results[0]
	bad.Invocations = 2
	results = append(results, &bad)

	md := Markdown(results)
	for _, want := range []string{"| single |", "| stress |", "| poison |", "## Failures", "**single**"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown report missing %q", want)
		}
	}

	var buf bytes.Buffer
	if err := WriteHTML(&buf, results); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"<table>", "stress", "Failures"} {
		if !strings.Contains(html, want) {
			t.Errorf("html report missing %q", want)
		}
	}
}
