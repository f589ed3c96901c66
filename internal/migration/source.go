package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Source discovers a namespace's migration set. Discover returns
// migrations in strictly ascending version order; an unknown namespace
// yields an empty set, not an error.
type Source interface {
	Discover(ctx context.Context, namespace string) ([]Migration, error)
}

// ErrDuplicateVersion is returned when a migration set declares the same
// version twice.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// MemorySource holds migration sets registered programmatically, typically
// by caller modules at startup.
type MemorySource struct {
	mu   sync.RWMutex
	sets map[string][]Migration
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{sets: make(map[string][]Migration)}
}

// Register adds one migration to its namespace's set. The checksum is
// computed here; a pre-set checksum is overwritten.
func (s *MemorySource) Register(m Migration) error {
	if m.Namespace == "" {
		return errors.New("migration namespace is required")
	}
	if m.Version == 0 {
		return errors.New("migration version must be positive")
	}
	m.Checksum = Checksum(m.Forward)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sets[m.Namespace] {
		if existing.Version == m.Version {
			return fmt.Errorf("%w: %s version %d", ErrDuplicateVersion, m.Namespace, m.Version)
		}
	}
	set := append(s.sets[m.Namespace], m)
	sort.Slice(set, func(i, j int) bool { return set[i].Version < set[j].Version })
	s.sets[m.Namespace] = set
	return nil
}

// Discover returns the namespace's migrations ascending by version
func (s *MemorySource) Discover(_ context.Context, namespace string) ([]Migration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.sets[namespace]
	out := make([]Migration, len(set))
	copy(out, set)
	return out, nil
}

// FSSource reads migration sets from a filesystem tree laid out as
// <namespace>/NNNN_name.up.sql plus a matching NNNN_name.down.sql.
type FSSource struct {
	fsys fs.FS
}

// NewFSSource creates a source over the given filesystem root
func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fsys: fsys}
}

var scriptNamePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// Discover reads and pairs the namespace's script files, ascending by
// version. A missing namespace directory yields an empty set.
func (s *FSSource) Discover(_ context.Context, namespace string) ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, namespace)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migration directory %s: %w", namespace, err)
	}

	byVersion := make(map[uint32]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := scriptNamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version64, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil || version64 == 0 {
			return nil, fmt.Errorf("invalid migration version in %s/%s", namespace, entry.Name())
		}
		version := uint32(version64)
		name := match[2]
		direction := match[3]

		content, err := fs.ReadFile(s.fsys, namespace+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration script %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Namespace: namespace, Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("version %d has mismatched script names %q and %q", version, m.Name, name)
		}
		script := strings.TrimSpace(string(content))
		if direction == "up" {
			if m.Forward != "" {
				return nil, fmt.Errorf("%w: %s version %d", ErrDuplicateVersion, namespace, version)
			}
			m.Forward = script
		} else {
			if m.Backward != "" {
				return nil, fmt.Errorf("%w: %s version %d", ErrDuplicateVersion, namespace, version)
			}
			m.Backward = script
		}
	}

	set := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Forward == "" {
			return nil, fmt.Errorf("version %d of %s has no forward script", m.Version, namespace)
		}
		m.Checksum = Checksum(m.Forward)
		set = append(set, *m)
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Version < set[j].Version })
	return set, nil
}

// Pending selects the migrations to apply: ascending, strictly above the
// current version, up to and including the target. Version gaps are legal.
func Pending(set []Migration, current, target uint32) []Migration {
	out := make([]Migration, 0, len(set))
	for _, m := range set {
		if m.Version > current && m.Version <= target {
			out = append(out, m)
		}
	}
	return out
}

// ForRollback selects the migrations to revert: descending, strictly above
// the target, down to and including the current version.
func ForRollback(set []Migration, current, target uint32) []Migration {
	out := make([]Migration, 0, len(set))
	for i := len(set) - 1; i >= 0; i-- {
		m := set[i]
		if m.Version > target && m.Version <= current {
			out = append(out, m)
		}
	}
	return out
}

// Target is a resolved or symbolic target version for apply requests.
type Target struct {
	Latest  bool
	Version uint32
}

// Latest is the symbolic "apply everything" target.
var Latest = Target{Latest: true}

// ToVersion resolves a Target against a discovered set. "latest" over an
// empty set resolves to 0, which yields an empty pending list.
func (t Target) ToVersion(set []Migration) uint32 {
	if !t.Latest {
		return t.Version
	}
	if len(set) == 0 {
		return 0
	}
	return set[len(set)-1].Version
}

// ParseTarget parses a request's target: "latest" or a version number.
func ParseTarget(s string) (Target, error) {
	if strings.EqualFold(strings.TrimSpace(s), "latest") {
		return Latest, nil
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return Target{}, fmt.Errorf("target must be a version number or \"latest\": %q", s)
	}
	return Target{Version: uint32(v)}, nil
}
