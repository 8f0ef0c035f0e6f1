package vault

// maxTreeDepth bounds folder-tree walks. Folder moves are cycle-guarded,
// so a deeper chain can only come from corrupted records; the bound keeps
// a bad snapshot from hanging a reconciliation pass.
const maxTreeDepth = 64

// Closure returns rootID followed by every descendant ID, breadth-first,
// using childrenOf to enumerate direct children of a folder. Delete,
// restore, share, and move all operate on the same closure so recursive
// behavior cannot drift between handlers.
//
// The walk is bounded by a visited set and maxTreeDepth; records that
// would form a cycle are skipped rather than revisited.
func Closure(rootID string, childrenOf func(id string) []string) []string {
	visited := map[string]struct{}{rootID: {}}
	out := []string{rootID}

	frontier := []string{rootID}
	for depth := 0; len(frontier) > 0 && depth < maxTreeDepth; depth++ {
		var next []string

		for _, id := range frontier {
			for _, child := range childrenOf(id) {
				if _, seen := visited[child]; seen {
					continue
				}

				visited[child] = struct{}{}
				out = append(out, child)
				next = append(next, child)
			}
		}

		frontier = next
	}

	return out
}

// IsDescendant reports whether id lies strictly below ancestorID, walking
// parentOf with the same depth bound as Closure. Used as the cycle guard
// for folder moves.
func IsDescendant(id, ancestorID string, parentOf func(id string) (string, bool)) bool {
	cur := id

	visited := make(map[string]struct{})
	for depth := 0; depth < maxTreeDepth; depth++ {
		parent, ok := parentOf(cur)
		if !ok || parent == RootFolder {
			return false
		}

		if parent == ancestorID {
			return true
		}

		if _, seen := visited[parent]; seen {
			return false
		}

		visited[parent] = struct{}{}
		cur = parent
	}

	return false
}
