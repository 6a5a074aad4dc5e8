// Package config parses the user's gasgit configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/gasgit/gasgit/pkg/errors"
)

// parseConfigErrTemplate is a template for when the CLI fails to parse yaml
// configuration files. This can happen for a multitude of reasons, including
// extraneous fields and incorrect field types. However, the yaml library
// constructs errors in a way that loses context, and so we can only pass the
// error message on.
const parseConfigErrTemplate = "Configuration file could not be parsed. " +
	"Please review %q.\n" +
	"Common pitfalls include:\n" +
	" - Using the wrong types for fields\n" +
	" - Having extra fields inside the config file\n\n" +
	"For reference, here is the error from the parser:\n" +
	"%s"

// SupportedConfigVersion is the config version understood by this binary.
// Config files that do not specify a version default to it.
const SupportedConfigVersion = "v1"

// UserConfigPath is the location of the user's gasgit config, relative to
// their home directory.
const UserConfigPath = ".gasgit/config.yaml"

// DefaultSyncDir is the base directory for per-project working copies,
// relative to the user's home directory.
const DefaultSyncDir = "gasgit"

// User contains the user-level gasgit configuration.
type User struct {
	Version string `json:"version,omitempty"`

	// Project is the default remote project ID used when no --project flag
	// is given.
	Project string `json:"project,omitempty"`

	// Endpoint is the base URL of the remote store's JSON API.
	Endpoint string `json:"endpoint,omitempty"`

	// Token is the bearer credential sent to the remote store.
	Token string `json:"token,omitempty"`

	// SyncDir is the base directory that holds the local working copies.
	// Defaults to ~/gasgit.
	SyncDir string `json:"syncDir,omitempty"`

	// Branch is the branch checked out in new working copies.
	Branch string `json:"branch,omitempty"`

	// ValidationHooks are shell commands run against the working copy before
	// a single-file write is pushed remotely. A non-zero exit aborts the
	// write and reverts the local change.
	ValidationHooks []string `json:"validationHooks,omitempty"`
}

func (c User) getVersion() string {
	return c.Version
}

type configInterface interface {
	getVersion() string
}

type incompatibleVersionError struct {
	path, exp, actual string
}

func (err incompatibleVersionError) Error() string {
	return err.FriendlyMessage()
}

func (err incompatibleVersionError) FriendlyMessage() string {
	return fmt.Sprintf("The configuration file %q is incompatible "+
		"with this version of gasgit.\n"+
		"Expected version %q, but got %q.", err.path, err.exp, err.actual)
}

// ParseUser parses the user's gasgit config from their home directory.
// A missing config file is not an error; defaults are returned instead.
func ParseUser() (User, error) {
	home, err := homedir.Dir()
	if err != nil {
		return User{}, errors.WithContext(err, "get home directory")
	}

	config := User{Version: SupportedConfigVersion}
	path := filepath.Join(home, UserConfigPath)
	if err := parseConfig(path, &config, SupportedConfigVersion); err != nil {
		if _, ok := errors.RootCause(err).(errors.FileNotFound); !ok {
			return User{}, err
		}
	}

	if config.Branch == "" {
		config.Branch = "main"
	}
	if config.SyncDir == "" {
		config.SyncDir = filepath.Join(home, DefaultSyncDir)
	} else {
		expanded, err := homedir.Expand(config.SyncDir)
		if err != nil {
			return User{}, errors.WithContext(err, "expand syncDir")
		}
		config.SyncDir = filepath.Clean(expanded)
	}

	return config, nil
}

// ProjectDir returns the working copy directory for the given project.
func (c User) ProjectDir(projectID string) string {
	return filepath.Join(c.SyncDir, projectID)
}

func parseConfig(path string, config configInterface, expVersion string) error {
	configBytes, err := afero.ReadFile(fs, path)
	if err != nil {
		if isPathNotFoundError(err) {
			return errors.FileNotFound{Path: path}
		}
		return errors.WithContext(err, "read file")
	}

	err = yaml.Unmarshal(configBytes, config)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}

	if config.getVersion() != expVersion {
		return incompatibleVersionError{path, expVersion, config.getVersion()}
	}

	// Do a strict unmarshal to check for any extra fields. We do a non-strict
	// unmarshal first so that we can catch version errors before erroring on
	// extra fields.
	err = yaml.UnmarshalStrict(configBytes, config, yaml.DisallowUnknownFields)
	if err != nil {
		return errors.NewFriendlyError(parseConfigErrTemplate, path, err)
	}
	return nil
}

func isPathNotFoundError(err error) bool {
	if fileErr, ok := err.(*os.PathError); ok &&
		fileErr.Op == "open" && fileErr.Err.Error() == "no such file or directory" {
		return true
	}
	return os.IsNotExist(err)
}
