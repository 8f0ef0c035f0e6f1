package vault

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// UniqueName returns candidate if it does not collide with any sibling of
// the same kind, otherwise "base (n)ext" for the smallest positive n that
// is free. The extension is the substring after the last dot, files only;
// folders never carry an extension.
//
// siblings must be the exact sibling scope relevant to the operation:
// same-parent entries for renames and uploads, trash entries for deletes,
// destination-folder entries for moves. The scope is always passed
// explicitly; this function never infers it.
func UniqueName(candidate string, kind Kind, siblings []string) string {
	taken := make(map[string]struct{}, len(siblings))
	for _, s := range siblings {
		taken[norm.NFC.String(s)] = struct{}{}
	}

	candidate = norm.NFC.String(candidate)
	if _, ok := taken[candidate]; !ok {
		return candidate
	}

	base, ext := SplitName(candidate, kind)

	for n := 1; ; n++ {
		next := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, ok := taken[next]; !ok {
			return next
		}
	}
}

// SplitName splits a name into base and extension (including the dot).
// Folders and dotfiles like ".env" keep the whole name as the base.
func SplitName(name string, kind Kind) (base, ext string) {
	if kind == KindFolder {
		return name, ""
	}

	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name, ""
	}

	return name[:dot], name[dot:]
}
