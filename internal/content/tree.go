package content

// TreeNode is one entry of a materialized project tree. Nodes are rebuilt on
// every Materialize call and never shared between calls.
type TreeNode struct {
	Path     string      `json:"path"`
	Name     string      `json:"name"`
	IsFolder bool        `json:"is_folder"`
	Content  string      `json:"content,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Materialize derives the folder hierarchy from flat records.
//
// Only non-folder records are used; intermediate folders are synthesized from
// path prefixes and keyed by the full prefix, so "/a/b.txt" and "/ab.txt"
// never share a node. Siblings keep input order.
func Materialize(records []FileRecord) []*TreeNode {
	var root []*TreeNode
	folders := make(map[string]*TreeNode)

	for _, rec := range records {
		if rec.IsFolder {
			continue
		}
		segs := Segments(rec.Path)
		if len(segs) == 0 {
			continue
		}

		level := &root
		prefix := ""
		for i, seg := range segs {
			prefix += "/" + seg
			if i == len(segs)-1 {
				*level = append(*level, &TreeNode{
					Path:    rec.Path,
					Name:    seg,
					Content: rec.Content,
				})
				break
			}

			folder, ok := folders[prefix]
			if !ok {
				folder = &TreeNode{Path: prefix, Name: seg, IsFolder: true}
				folders[prefix] = folder
				*level = append(*level, folder)
			}
			level = &folder.Children
		}
	}
	return root
}

// Walk visits nodes depth-first, parents before children.
func Walk(nodes []*TreeNode, fn func(n *TreeNode, depth int)) {
	var walk func([]*TreeNode, int)
	walk = func(ns []*TreeNode, depth int) {
		for _, n := range ns {
			fn(n, depth)
			if n.IsFolder {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(nodes, 0)
}

// FilePaths flattens a tree into its file paths, depth-first.
func FilePaths(nodes []*TreeNode) []string {
	var out []string
	Walk(nodes, func(n *TreeNode, _ int) {
		if !n.IsFolder {
			out = append(out, n.Path)
		}
	})
	return out
}
