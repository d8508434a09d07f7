package strategyfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Strategy is the externally-persisted tunable strategy document. The
// adjustment engine mutates it; the slot allocator and language balancer
// read it. Pillar weights form an implicitly normalized distribution.
type Strategy struct {
	Pillars   map[string]float64  `yaml:"pillars"`
	Platforms map[string]Platform `yaml:"platforms"`

	PrimaryLanguage   string `yaml:"primary_language"`
	SecondaryLanguage string `yaml:"secondary_language,omitempty"`
}

type Platform struct {
	FrequencyPerWeek int      `yaml:"frequency_per_week"`
	PreferredTimes   []string `yaml:"preferred_times,omitempty"`
	FormatPreference []string `yaml:"format_preference,omitempty"`
}

// WeeklyCapacity is the sum of per-platform posting frequencies.
func (s *Strategy) WeeklyCapacity() int {
	total := 0
	for _, p := range s.Platforms {
		if p.FrequencyPerWeek > 0 {
			total += p.FrequencyPerWeek
		}
	}
	return total
}

// PillarNames returns the configured pillars in a stable order.
func (s *Strategy) PillarNames() []string {
	names := make([]string, 0, len(s.Pillars))
	for name := range s.Pillars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultPillar is the explicit fallback chain for selection logic that
// needs some pillar: highest weight first, ties broken alphabetically.
func (s *Strategy) DefaultPillar() string {
	best := ""
	bestWeight := -1.0
	for _, name := range s.PillarNames() {
		if w := s.Pillars[name]; w > bestWeight {
			best = name
			bestWeight = w
		}
	}
	return best
}

// Store reads and writes per-tenant strategy documents under a base
// directory. Every write goes through a temp file and an atomic rename so a
// reader never observes a half-written document.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("strategyfile: missing dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("strategyfile: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (st *Store) Path(tenantID uuid.UUID) string {
	return filepath.Join(st.dir, tenantID.String()+".yaml")
}

func (st *Store) Load(tenantID uuid.UUID) (*Strategy, error) {
	raw, err := os.ReadFile(st.Path(tenantID))
	if err != nil {
		return nil, err
	}
	var s Strategy
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("strategyfile: parse %s: %w", st.Path(tenantID), err)
	}
	if s.Pillars == nil {
		s.Pillars = map[string]float64{}
	}
	if s.Platforms == nil {
		s.Platforms = map[string]Platform{}
	}
	return &s, nil
}

func (st *Store) Save(tenantID uuid.UUID, s *Strategy) error {
	if s == nil {
		return fmt.Errorf("strategyfile: nil strategy")
	}
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("strategyfile: marshal: %w", err)
	}
	return atomicWrite(st.Path(tenantID), raw)
}

// Mutate re-reads the document, applies fn and atomically replaces the
// file. The document is never held open across a whole cycle; each mutation
// pass sees the latest on-disk state.
func (st *Store) Mutate(tenantID uuid.UUID, fn func(*Strategy) error) error {
	s, err := st.Load(tenantID)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return st.Save(tenantID, s)
}

// Tenants lists every tenant with a strategy document on disk.
func (st *Store) Tenants() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("strategyfile: read dir: %w", err)
	}
	out := []uuid.UUID{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ".yaml" {
			continue
		}
		id, err := uuid.Parse(name[:len(name)-len(".yaml")])
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("strategyfile: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("strategyfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("strategyfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("strategyfile: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("strategyfile: replace: %w", err)
	}
	return nil
}
