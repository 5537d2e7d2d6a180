package content

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func files(paths ...string) []FileRecord {
	out := make([]FileRecord, 0, len(paths))
	for _, p := range paths {
		out = append(out, FileRecord{Path: p, Content: "body of " + p})
	}
	return out
}

func TestMaterializeSingleNestedFile(t *testing.T) {
	tree := Materialize([]FileRecord{{Path: "/src/util.ts", Content: "export const x = 1;"}})

	require.Len(t, tree, 1)
	src := tree[0]
	assert.Equal(t, "/src", src.Path)
	assert.Equal(t, "src", src.Name)
	assert.True(t, src.IsFolder)

	require.Len(t, src.Children, 1)
	util := src.Children[0]
	assert.Equal(t, "/src/util.ts", util.Path)
	assert.Equal(t, "util.ts", util.Name)
	assert.False(t, util.IsFolder)
	assert.Equal(t, "export const x = 1;", util.Content)
}

func TestMaterializeRoundTrip(t *testing.T) {
	paths := []string{
		"/README.md",
		"/public/index.html",
		"/src/App.css",
		"/src/App.tsx",
		"/src/components/Button.tsx",
		"/src/components/forms/Input.tsx",
		"/src/index.tsx",
	}
	got := FilePaths(Materialize(files(paths...)))

	sort.Strings(got)
	assert.Equal(t, paths, got)
}

func TestMaterializeIsDeterministic(t *testing.T) {
	recs := files("/a/b/c.txt", "/a/d.txt", "/e.txt")
	first := Materialize(recs)
	second := Materialize(recs)

	assert.Equal(t, first, second)
	// fresh nodes every call
	assert.NotSame(t, first[0], second[0])
}

func TestMaterializePrefixIsolation(t *testing.T) {
	tree := Materialize(files("/a/b.txt", "/ab.txt"))

	require.Len(t, tree, 2)
	assert.Equal(t, "/a", tree[0].Path)
	assert.True(t, tree[0].IsFolder)
	assert.Equal(t, []string{"/a/b.txt"}, FilePaths(tree[0].Children))

	assert.Equal(t, "/ab.txt", tree[1].Path)
	assert.False(t, tree[1].IsFolder)
}

func TestMaterializeSameLeafNameInDifferentBranches(t *testing.T) {
	tree := Materialize(files("/x/lib/index.ts", "/y/lib/index.ts"))

	require.Len(t, tree, 2)
	x, y := tree[0], tree[1]
	require.Len(t, x.Children, 1)
	require.Len(t, y.Children, 1)
	assert.Equal(t, "/x/lib", x.Children[0].Path)
	assert.Equal(t, "/y/lib", y.Children[0].Path)
	assert.NotSame(t, x.Children[0], y.Children[0])
}

func TestMaterializeKeepsInputOrder(t *testing.T) {
	// backend order, folders and files interleaved
	tree := Materialize(files("/b.txt", "/a/z.txt", "/c.txt", "/a/y.txt"))

	var names []string
	for _, n := range tree {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"b.txt", "a", "c.txt"}, names)
	assert.Equal(t, []string{"/a/z.txt", "/a/y.txt"}, FilePaths(tree[1].Children))
}

func TestMaterializeSkipsFoldersAndEmptyPaths(t *testing.T) {
	recs := []FileRecord{
		{Path: "/src", IsFolder: true},
		{Path: "/public", IsFolder: true},
		{Path: "/"},
		{Path: ""},
		{Path: "/src/App.tsx"},
	}
	tree := Materialize(recs)

	require.Len(t, tree, 1)
	assert.Equal(t, "/src", tree[0].Path)
	assert.Equal(t, []string{"/src/App.tsx"}, FilePaths(tree))
}

func TestWalkDepth(t *testing.T) {
	tree := Materialize(files("/a/b/c.txt"))

	depths := map[string]int{}
	Walk(tree, func(n *TreeNode, depth int) { depths[n.Path] = depth })

	assert.Equal(t, map[string]int{"/a": 0, "/a/b": 1, "/a/b/c.txt": 2}, depths)
}
