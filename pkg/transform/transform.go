// Package transform maps between the remote file representation and the
// local filesystem representation.
//
// The mapping is a pure string transformation: no side effects, and no
// network or filesystem access. It's invertible by convention rather than
// bitwise: the module shim adds boilerplate that is stripped locally and
// regenerated on push, not byte-reproduced.
package transform

import (
	"path"
	"strings"
	"time"

	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/remote"
)

// LocalFile is the local-side representation of one remote file.
type LocalFile struct {
	// RelativePath is the file's path relative to the subtree root, using
	// forward slashes.
	RelativePath string

	// Content is the transformed file content.
	Content []byte

	// ModTime is the local modification time. Zero for files that haven't
	// been written to disk yet.
	ModTime time.Time
}

// breadcrumbDir is where breadcrumb mirrors live in the working copy. The
// real `.git` name would confuse the local git client, so the mirror is kept
// under a sibling name that git treats as ordinary content.
const breadcrumbDir = ".git-gas"

var extensionByType = map[remote.FileType]string{
	remote.TypeCode:   ".js",
	remote.TypeMarkup: ".html",
	remote.TypeData:   ".json",
}

var typeByExtension = map[string]remote.FileType{
	".js":   remote.TypeCode,
	".html": remote.TypeMarkup,
	".json": remote.TypeData,
}

// ToLocal converts a remote file into its local representation.
// The naming rules are applied in order; the first match wins.
func ToLocal(f remote.File) (LocalFile, error) {
	// Rule 1: the project README is HTML remotely, Markdown locally.
	if f.Name == "README" && f.Type == remote.TypeMarkup {
		markdown, err := htmlToMarkdown(f.Content)
		if err != nil {
			return LocalFile{}, errors.WithContext(err, "transform README")
		}
		return LocalFile{RelativePath: "README.md", Content: []byte(markdown)}, nil
	}

	// Rule 2: dotfiles keep their name and shed the remote module shim.
	if isDotfile(f.Name) {
		return LocalFile{
			RelativePath: f.Name,
			Content:      []byte(unwrapDotfile(f.Content)),
		}, nil
	}

	// Rule 3: breadcrumb files are mirrored outside the live working tree.
	if rest, ok := breadcrumbRest(f.Name); ok {
		return LocalFile{
			RelativePath: path.Join(breadcrumbDir, rest),
			Content:      []byte(f.Content),
		}, nil
	}

	// Rule 4: underscores denote directories; the extension comes from the
	// file type; code sheds the module shim.
	ext, ok := extensionByType[f.Type]
	if !ok {
		return LocalFile{}, errors.UnsupportedFileError{Path: f.Name}
	}

	content := f.Content
	if f.Type == remote.TypeCode {
		content, _, _ = UnwrapModule(content)
	}

	localPath := strings.ReplaceAll(f.Name, "_", "/") + ext
	return LocalFile{RelativePath: localPath, Content: []byte(content)}, nil
}

// ToRemote converts a local file back into its remote representation. The
// shim metadata of the file's previous remote incarnation, if known, is
// restored on re-wrap.
func ToRemote(f LocalFile, meta ShimMeta) (remote.File, error) {
	content := string(f.Content)

	// Rule 1: README.md becomes the HTML README.
	if f.RelativePath == "README.md" {
		return remote.File{
			Name:    "README",
			Type:    remote.TypeMarkup,
			Content: markdownToHTML(content),
		}, nil
	}

	// Rule 2: dotfiles are wrapped into a module so the remote store can
	// hold them.
	if isDotfile(f.RelativePath) {
		return remote.File{
			Name:    f.RelativePath,
			Type:    remote.TypeCode,
			Content: wrapDotfile(content),
		}, nil
	}

	// Rule 3: breadcrumb mirrors map back under the remote .git prefix.
	if rest, ok := strings.CutPrefix(f.RelativePath, breadcrumbDir+"/"); ok {
		return remote.File{
			Name:    path.Join(".git", rest),
			Type:    remote.TypeData,
			Content: content,
		}, nil
	}

	// Rule 4: the extension picks the type; path separators become
	// underscores; code is re-wrapped in the module shim.
	ext := path.Ext(f.RelativePath)
	typ, ok := typeByExtension[ext]
	if !ok {
		return remote.File{}, errors.UnsupportedFileError{Path: f.RelativePath}
	}

	name := strings.TrimSuffix(f.RelativePath, ext)
	name = strings.ReplaceAll(name, "/", "_")

	if typ == remote.TypeCode {
		content = WrapModule(content, meta)
	}

	return remote.File{Name: name, Type: typ, Content: content}, nil
}

// RemoteShimMeta extracts the shim metadata from a remote code file so a
// later ToRemote can restore it. Non-code and unwrapped files have no
// metadata.
func RemoteShimMeta(f remote.File) ShimMeta {
	if f.Type != remote.TypeCode {
		return ShimMeta{}
	}
	_, meta, _ := UnwrapModule(f.Content)
	return meta
}

// TypeForExtension returns the remote file type that produces the given
// local extension, if any.
func TypeForExtension(ext string) (remote.FileType, bool) {
	typ, ok := typeByExtension[ext]
	return typ, ok
}

// isDotfile reports whether the name is a top-level dotfile like .gitignore.
// Breadcrumb paths (.git/...) are not dotfiles; they carry a directory
// component.
func isDotfile(name string) bool {
	return strings.HasPrefix(name, ".") && !strings.Contains(name, "/")
}

// breadcrumbRest returns the portion of the name under the .git breadcrumb
// prefix, if the name is a breadcrumb file.
func breadcrumbRest(name string) (string, bool) {
	if rest, ok := strings.CutPrefix(name, ".git/"); ok {
		return rest, true
	}
	return "", false
}
