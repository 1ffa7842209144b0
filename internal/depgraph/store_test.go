package depgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")

	store := NewStore(path)
	store.Update("src/app.test.ts", []string{"src/app.ts"}, []string{"src/app.ts", "src/util.ts"})
	require.NoError(t, store.Save())

	reloaded := NewStore(path)
	node, ok := reloaded.Node("src/app.test.ts")
	require.True(t, ok)

	want := Node{
		DirectDependencies:     []string{"src/app.ts"},
		TransitiveDependencies: []string{"src/app.ts", "src/util.ts"},
	}
	if diff := cmp.Diff(want, node, cmpopts.IgnoreFields(Node{}, "LastModified")); diff != "" {
		t.Fatalf("node mismatch (-want +got):\n%s", diff)
	}
	assert.NotZero(t, node.LastModified)
}

func TestStoreResetsOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewStore(path)
	assert.Zero(t, store.Len())
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "graph.json"))
	store.Update("a.ts", nil, nil)
	store.Delete("a.ts")

	_, ok := store.Node("a.ts")
	assert.False(t, ok)
}
