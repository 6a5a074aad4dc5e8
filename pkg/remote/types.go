// Package remote defines the remote project store model and client interface.
//
// The remote store is a scripting-platform project: a flat, position-ordered
// list of named, typed files. There are no real directories; slashes in file
// names only denote logical grouping.
package remote

import (
	"encoding/json"
	"fmt"
	"time"
)

// FileType is the type of a remote file. The remote store only knows three
// kinds of content.
type FileType string

const (
	// TypeCode is executable script source.
	TypeCode FileType = "CODE"

	// TypeMarkup is HTML content.
	TypeMarkup FileType = "MARKUP"

	// TypeData is JSON content.
	TypeData FileType = "DATA"
)

// Validate returns an error if the file type isn't one of the known kinds.
// Raw strings from the wire are validated here so that downstream code never
// has to branch on unknown values.
func (t FileType) Validate() error {
	switch t {
	case TypeCode, TypeMarkup, TypeData:
		return nil
	}
	return fmt.Errorf("unknown remote file type %q", string(t))
}

// UnmarshalJSON parses and validates a file type from the wire.
func (t *FileType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed := FileType(raw)
	if err := parsed.Validate(); err != nil {
		return err
	}
	*t = parsed
	return nil
}

// File is one file in a remote project. The engine only ever holds transient
// copies; the remote store owns the data.
type File struct {
	// Name is the path-like file name. Slashes denote logical grouping only.
	Name string `json:"name"`

	// Type determines the local file extension and content transform.
	Type FileType `json:"type"`

	// Content is the file source as stored remotely.
	Content string `json:"content"`

	// Position is the file's execution order within the project.
	Position int `json:"position"`

	// UpdateTime is when the file was last modified remotely.
	UpdateTime time.Time `json:"updateTime"`
}
