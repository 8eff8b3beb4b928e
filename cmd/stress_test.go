package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/olimci/lazycell/pkg/config"
	"github.com/olimci/lazycell/pkg/stress"
)

func TestExecuteVersion(t *testing.T) {
	if err := Execute(context.Background(), []string{"lazycell", "version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
}

func TestExecuteStress(t *testing.T) {
	report := filepath.Join(t.TempDir(), "report.html")

	err := Execute(context.Background(), []string{
		"lazycell", "stress", "--no-ui",
		"--only", "single", "--only", "stress",
		"--html", report,
	})
	if err != nil {
		t.Fatalf("stress: %v", err)
	}

	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	for _, want := range []string{"<table>", "single", "stress"} {
		if !strings.Contains(string(b), want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestExecuteStressConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	content := "scenario:\n  - name: pair\n    goroutines: 2\n    calls: 3\n    initializer: counter\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Execute(context.Background(), []string{"lazycell", "stress", "--no-ui", "-c", path}); err != nil {
		t.Fatalf("stress: %v", err)
	}

	err := Execute(context.Background(), []string{"lazycell", "stress", "--no-ui", "-c", path, "--only", "missing"})
	if !errors.Is(err, config.ErrInvalidScenario) {
		t.Fatalf("stress --only missing = %v, want %v", err, config.ErrInvalidScenario)
	}
}

func TestExecuteUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"watch without config", []string{"--watch"}},
		{"watch with interactive", []string{"--watch", "-c", "scenarios.toml", "--interactive"}},
		{"negative workers", []string{"--no-ui", "--only", "single", "--workers", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"lazycell", "stress"}, tt.args...)
			err := Execute(context.Background(), args)
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("stress %v = %v, want %v", tt.args, err, ErrUsage)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	in := config.DefaultConfig().Scenarios[:2]

	got := applyOverrides(in, "8", "")
	for i, s := range got {
		if s.Goroutines != 8 {
			t.Errorf("%s: Goroutines = %d, want 8", s.Name, s.Goroutines)
		}
		if s.Calls != in[i].Calls {
			t.Errorf("%s: Calls = %d, want %d", s.Name, s.Calls, in[i].Calls)
		}
	}
	if in[0].Goroutines == 8 {
		t.Error("applyOverrides modified its input")
	}
}

func TestCountValidator(t *testing.T) {
	tests := []struct {
		in      string
		least   int
		wantErr bool
	}{
		{"", 1, false},
		{" 4 ", 1, false},
		{"0", 0, false},
		{"0", 1, true},
		{"many", 0, true},
	}

	for _, tt := range tests {
		err := countValidator(tt.least)(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("countValidator(%d)(%q) = %v, wantErr %v", tt.least, tt.in, err, tt.wantErr)
		}
	}
}

func TestFormatResultPlain(t *testing.T) {
	r := &stress.Result{
		Scenario:    config.Scenario{Name: "race", Goroutines: 2, Calls: 1, Initializer: config.InitConstant},
		Invocations: 1,
		Accesses:    2,
		Pointers:    1,
		Values:      1,
		Releases:    1,
		Contended:   1,
		Spins:       3,
	}

	line := formatResultPlain(r, r.Check())
	for _, want := range []string{"OK", "[race]", "2x1 constant", "1 contended (3 spins)"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	r.Invocations = 2
	r.Releases = 2
	line = formatResultPlain(r, r.Check())
	if !strings.HasPrefix(line, "FAIL") || !strings.Contains(line, "more than once") {
		t.Errorf("unexpected failure line %q", line)
	}
}
