package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olimci/lazycell/pkg/version"
)

var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrIncompatible    = errors.New("incompatible config version")
)

// Initializer kinds a scenario can use.
const (
	// InitConstant returns the scenario's value.
	InitConstant = "constant"
	// InitCounter increments a shared counter and returns its previous value.
	InitCounter = "counter"
	// InitPanic panics, poisoning the cell.
	InitPanic = "panic"
)

// Config is a set of stress scenarios.
type Config struct {
	Lazycell  ConfigLazycell `toml:"lazycell" yaml:"lazycell" json:"lazycell"`
	Scenarios []Scenario     `toml:"scenario" yaml:"scenario" json:"scenario"`
}

type ConfigLazycell struct {
	Version string `toml:"version" yaml:"version" json:"version"`
}

// Scenario describes one race: Goroutines workers each access a fresh cell
// Calls times.
type Scenario struct {
	Name        string   `toml:"name" yaml:"name" json:"name"`
	Goroutines  int      `toml:"goroutines" yaml:"goroutines" json:"goroutines"`
	Calls       int      `toml:"calls" yaml:"calls" json:"calls"`
	Initializer string   `toml:"initializer" yaml:"initializer" json:"initializer"`
	Value       int64    `toml:"value" yaml:"value" json:"value"`
	InitDelay   Duration `toml:"init_delay" yaml:"init_delay" json:"init_delay"`
}

// Accesses is the total number of accesses the scenario performs.
func (s Scenario) Accesses() int {
	return s.Goroutines * s.Calls
}

// Duration decodes from strings such as "1ms" in every supported format.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig constructs the built-in scenarios.
func DefaultConfig() *Config {
	return &Config{
		Lazycell: ConfigLazycell{
			Version: version.String(),
		},
		Scenarios: []Scenario{
			{Name: "single", Goroutines: 1, Calls: 2, Initializer: InitConstant, Value: 42},
			{Name: "race", Goroutines: 2, Calls: 1, Initializer: InitConstant, Value: 42},
			{Name: "stress", Goroutines: 50, Calls: 20, Initializer: InitCounter},
			{Name: "untouched", Goroutines: 1, Calls: 0, Initializer: InitConstant, Value: 42},
			{Name: "poison", Goroutines: 8, Calls: 4, Initializer: InitPanic},
		},
	}
}

// Load loads a Config from a file. TOML is assumed unless the extension says
// otherwise.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := decodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// Validate fills defaults and checks the Config.
func (c *Config) Validate() error {
	c.Lazycell.Version = strings.TrimSpace(c.Lazycell.Version)
	if c.Lazycell.Version == "" {
		c.Lazycell.Version = version.String()
	}
	fileVersion, err := version.Parse(c.Lazycell.Version)
	if err != nil {
		return err
	}
	if !version.Current().Compatible(fileVersion) {
		return fmt.Errorf("%w: file %s, binary %s", ErrIncompatible, fileVersion, version.Current())
	}

	if len(c.Scenarios) == 0 {
		return fmt.Errorf("%w: no scenarios defined", ErrInvalidScenario)
	}

	seen := make(map[string]struct{}, len(c.Scenarios))
	for i := range c.Scenarios {
		s := &c.Scenarios[i]

		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return fmt.Errorf("%w: scenario %d has no name", ErrInvalidScenario, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidScenario, s.Name)
		}
		seen[s.Name] = struct{}{}

		if s.Goroutines <= 0 {
			return fmt.Errorf("%w: %s: goroutines must be > 0 (got %d)", ErrInvalidScenario, s.Name, s.Goroutines)
		}
		if s.Calls < 0 {
			return fmt.Errorf("%w: %s: calls must be >= 0 (got %d)", ErrInvalidScenario, s.Name, s.Calls)
		}
		if s.InitDelay.Duration < 0 {
			return fmt.Errorf("%w: %s: init_delay must not be negative", ErrInvalidScenario, s.Name)
		}

		s.Initializer = strings.ToLower(strings.TrimSpace(s.Initializer))
		switch s.Initializer {
		case "":
			s.Initializer = InitConstant
		case InitConstant, InitCounter, InitPanic:
		default:
			return fmt.Errorf("%w: %s: unknown initializer %q", ErrInvalidScenario, s.Name, s.Initializer)
		}
	}

	return nil
}

// Select returns the scenarios with the given names, in config order. No
// names selects everything.
func (c *Config) Select(names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		return c.Scenarios, nil
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[strings.TrimSpace(name)] = false
	}

	out := make([]Scenario, 0, len(names))
	for _, s := range c.Scenarios {
		if _, ok := want[s.Name]; ok {
			want[s.Name] = true
			out = append(out, s)
		}
	}

	for name, found := range want {
		if !found {
			return nil, fmt.Errorf("%w: no scenario named %q", ErrInvalidScenario, name)
		}
	}
	return out, nil
}

// Names lists the scenario names in config order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Scenarios))
	for i, s := range c.Scenarios {
		names[i] = s.Name
	}
	return names
}
