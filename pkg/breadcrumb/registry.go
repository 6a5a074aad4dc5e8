package breadcrumb

import (
	"sort"
	"strings"

	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/remote"
)

// ListSubtrees walks the remote file names and returns the sync units: the
// project root plus every path that carries its own breadcrumb. The result
// is sorted shallowest-first so the root syncs before nested subtrees.
func ListSubtrees(files []remote.File) []string {
	seen := map[string]bool{"": true}
	for _, f := range files {
		if root, ok := subtreeOf(f.Name); ok {
			seen[root] = true
		}
	}

	subtrees := make([]string, 0, len(seen))
	for path := range seen {
		subtrees = append(subtrees, path)
	}
	sort.Slice(subtrees, func(i, j int) bool {
		di, dj := strings.Count(subtrees[i], "/"), strings.Count(subtrees[j], "/")
		if di != dj {
			return di < dj
		}
		return subtrees[i] < subtrees[j]
	})
	return subtrees
}

// FilterToSubtree returns the files owned by the given subtree with the
// subtree prefix stripped. Files that belong to a deeper nested breadcrumb
// are excluded: a subtree never re-claims files owned by a leaf below it.
func FilterToSubtree(files []remote.File, subtree string) []remote.File {
	nested := nestedSubtrees(files, subtree)

	prefix := ""
	if subtree != "" {
		prefix = subtree + "/"
	}

	var filtered []remote.File
	for _, f := range files {
		rel, ok := strings.CutPrefix(f.Name, prefix)
		if !ok {
			continue
		}
		if ownedByNested(f.Name, nested) {
			continue
		}

		f.Name = rel
		filtered = append(filtered, f)
	}
	return filtered
}

// Find returns the parsed breadcrumb for the given subtree, or a
// NotLinkedError if the subtree has none. Breadcrumbs are never created
// implicitly.
func Find(files []remote.File, subtree string) (Breadcrumb, error) {
	want := FileName
	if subtree != "" {
		want = subtree + "/" + FileName
	}

	for _, f := range files {
		if f.Name == want {
			return Parse(f.Content)
		}
	}
	return Breadcrumb{}, errors.NotLinkedError{Path: subtree}
}

// subtreeOf extracts the subtree root from a breadcrumb file name.
// "sub/x/.git/config" -> ("sub/x", true); ".git/config" -> ("", true).
func subtreeOf(name string) (string, bool) {
	if name == FileName {
		return "", true
	}
	if root, ok := strings.CutSuffix(name, "/"+FileName); ok {
		return root, true
	}
	return "", false
}

// nestedSubtrees returns the breadcrumbed paths strictly below `subtree`.
func nestedSubtrees(files []remote.File, subtree string) []string {
	prefix := ""
	if subtree != "" {
		prefix = subtree + "/"
	}

	var nested []string
	for _, f := range files {
		root, ok := subtreeOf(f.Name)
		if !ok || root == subtree {
			continue
		}
		if strings.HasPrefix(root, prefix) {
			nested = append(nested, root)
		}
	}
	return nested
}

func ownedByNested(name string, nested []string) bool {
	for _, root := range nested {
		if strings.HasPrefix(name, root+"/") {
			return true
		}
	}
	return false
}
