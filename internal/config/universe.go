package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aristath/factorlens/internal/modules/correlation"
)

// ErrUnknownUniverse is returned when a universe name is not registered.
var ErrUnknownUniverse = errors.New("unknown universe")

// Group is a named subset of a universe, such as the nuclear names or their benchmarks.
type Group struct {
	Name    string   `yaml:"name" json:"name"`
	Symbols []string `yaml:"symbols" json:"symbols"`
}

// AnalysisSettings overrides the default analysis configuration for one universe.
// Unset fields keep their defaults.
type AnalysisSettings struct {
	Mode               string   `yaml:"mode,omitempty"`
	VarianceTarget     *float64 `yaml:"variance_target,omitempty"`
	RollingWindow      *int     `yaml:"rolling_window,omitempty"`
	CorrelationWindow  *int     `yaml:"correlation_window,omitempty"`
	ResidualUnits      string   `yaml:"residual_units,omitempty"`
	LookbackDays       *int     `yaml:"lookback_days,omitempty"`
	MaxComponents      *int     `yaml:"max_components,omitempty"`
	ForwardFill        *bool    `yaml:"forward_fill,omitempty"`
	MaxFillGap         *int     `yaml:"max_fill_gap,omitempty"`
	MaxMissingFraction *float64 `yaml:"max_missing_fraction,omitempty"`
}

// Universe is a named set of assets analysed together.
type Universe struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Groups      []Group            `yaml:"groups"`
	Pairs       []correlation.Pair `yaml:"pairs,omitempty"`
	Analysis    AnalysisSettings   `yaml:"analysis,omitempty"`
}

// Symbols returns every symbol of the universe once, in group order.
func (u *Universe) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range u.Groups {
		for _, s := range g.Symbols {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// GroupOf returns the name of the first group containing symbol, or "".
func (u *Universe) GroupOf(symbol string) string {
	for _, g := range u.Groups {
		for _, s := range g.Symbols {
			if s == symbol {
				return g.Name
			}
		}
	}
	return ""
}

// Validate checks that the universe is usable and that every pair refers to its symbols.
func (u *Universe) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("universe has no name")
	}
	symbols := make(map[string]bool)
	for _, g := range u.Groups {
		if g.Name == "" {
			return fmt.Errorf("universe %s: group without a name", u.Name)
		}
		for _, s := range g.Symbols {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("universe %s: blank symbol in group %s", u.Name, g.Name)
			}
			symbols[s] = true
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("universe %s has no symbols", u.Name)
	}
	for _, p := range u.Pairs {
		for _, s := range []string{p.A, p.B} {
			if !symbols[s] {
				return fmt.Errorf("universe %s: pair %s refers to unknown symbol %q", u.Name, p, s)
			}
		}
	}
	return nil
}

// ParseUniverse decodes a universe from YAML. A missing name falls back to defaultName.
func ParseUniverse(data []byte, defaultName string) (*Universe, error) {
	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to parse universe: %w", err)
	}
	if u.Name == "" {
		u.Name = defaultName
	}
	for gi := range u.Groups {
		for si, s := range u.Groups[gi].Symbols {
			u.Groups[gi].Symbols[si] = strings.ToUpper(strings.TrimSpace(s))
		}
	}
	for i := range u.Pairs {
		u.Pairs[i].A = strings.ToUpper(strings.TrimSpace(u.Pairs[i].A))
		u.Pairs[i].B = strings.ToUpper(strings.TrimSpace(u.Pairs[i].B))
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return &u, nil
}

// LoadUniverse reads a universe file. The file name (without extension) is the default name.
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	u, err := ParseUniverse(data, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// Universes is a registry of universes keyed by name.
type Universes struct {
	byName map[string]*Universe
}

// NewUniverses builds a registry, rejecting duplicate names.
func NewUniverses(list ...*Universe) (*Universes, error) {
	r := &Universes{byName: make(map[string]*Universe, len(list))}
	for _, u := range list {
		if _, dup := r.byName[u.Name]; dup {
			return nil, fmt.Errorf("duplicate universe %q", u.Name)
		}
		r.byName[u.Name] = u
	}
	return r, nil
}

// LoadUniverses reads every *.yaml and *.yml file in dir.
func LoadUniverses(dir string) (*Universes, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe directory: %w", err)
	}

	var list []*Universe
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		u, err := LoadUniverse(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return NewUniverses(list...)
}

// Get returns the universe called name.
func (r *Universes) Get(name string) (*Universe, error) {
	u, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUniverse, name)
	}
	return u, nil
}

// Names returns the registered names in sorted order.
func (r *Universes) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns the registered universes sorted by name.
func (r *Universes) All() []*Universe {
	out := make([]*Universe, 0, len(r.byName))
	for _, n := range r.Names() {
		out = append(out, r.byName[n])
	}
	return out
}
