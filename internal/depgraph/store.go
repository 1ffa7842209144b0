package depgraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lithium-ci/lithium/pkg/log"
)

// Node records a unit's resolved dependencies in the durable graph.
type Node struct {
	DirectDependencies     []string `json:"directDependencies"`
	TransitiveDependencies []string `json:"transitiveDependencies"`
	LastModified           int64    `json:"lastModified"`
}

// Store is the durable dependency graph, keyed by unit identity.
// A single writer per process is assumed; mutation is serialized by
// the store's own mutex.
type Store struct {
	mu    sync.Mutex
	path  string
	nodes map[string]Node
}

// NewStore loads the graph persisted at path. A corrupt or missing
// file resets the graph to empty.
func NewStore(path string) *Store {
	s := &Store{path: path, nodes: map[string]Node{}}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}

	if err := json.Unmarshal(data, &s.nodes); err != nil {
		log.Warn("dependency graph store corrupt, resetting", "path", path, "error", err)
		s.nodes = map[string]Node{}
	}

	return s
}

// Node returns the recorded node for a unit identity.
func (s *Store) Node(identity string) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[Normalize(identity)]
	return node, ok
}

// Update records a unit's direct and transitive dependencies.
func (s *Store) Update(identity string, direct, transitive []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[Normalize(identity)] = Node{
		DirectDependencies:     direct,
		TransitiveDependencies: transitive,
		LastModified:           time.Now().UnixMilli(),
	}
}

// Delete removes a unit's node.
func (s *Store) Delete(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.nodes, Normalize(identity))
}

// Len returns the number of recorded nodes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.nodes)
}

// Save persists the graph atomically (write to a temp file, rename
// over the target). Persistence is best-effort; callers log and
// swallow failures.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.nodes, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}
