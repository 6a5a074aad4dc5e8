package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gasgit/gasgit/pkg/errors"
)

// Fake is an in-memory Client used by unit tests and the dry-run mode. It
// keeps the same flat, position-ordered file list the real store does.
type Fake struct {
	mu       sync.Mutex
	projects map[string]map[string]File

	// Now supplies UpdateTime stamps for mutated files. Defaults to
	// time.Now; tests override it for determinism.
	Now func() time.Time

	// FailWrites makes Write return an error, for exercising rollback paths.
	FailWrites bool
}

// NewFake returns an empty fake store.
func NewFake() *Fake {
	return &Fake{
		projects: map[string]map[string]File{},
		Now:      time.Now,
	}
}

// Seed replaces the file set of a project.
func (f *Fake) Seed(projectID string, files []File) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := map[string]File{}
	for _, file := range files {
		set[file.Name] = file
	}
	f.projects[projectID] = set
}

// List implements Client.
func (f *Fake) List(_ context.Context, projectID string) ([]File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(projectID), nil
}

// Write implements Client.
func (f *Fake) Write(_ context.Context, projectID, name, content string,
	typ FileType) ([]File, error) {

	if err := typ.Validate(); err != nil {
		return nil, err
	}
	if f.FailWrites {
		return nil, errors.New("remote store unavailable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.projects[projectID]
	if !ok {
		set = map[string]File{}
		f.projects[projectID] = set
	}

	file, exists := set[name]
	if !exists {
		file = File{Name: name, Position: len(set)}
	}
	file.Type = typ
	file.Content = content
	file.UpdateTime = f.Now()
	set[name] = file

	return f.snapshot(projectID), nil
}

// Delete implements Client.
func (f *Fake) Delete(_ context.Context, projectID, name string) ([]File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.projects[projectID], name)
	return f.snapshot(projectID), nil
}

// Get returns the named file, if present.
func (f *Fake) Get(projectID, name string) (File, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, ok := f.projects[projectID][name]
	return file, ok
}

func (f *Fake) snapshot(projectID string) []File {
	var files []File
	for _, file := range f.projects[projectID] {
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Position < files[j].Position
	})
	return files
}
