package util

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/gasgit/gasgit/pkg/config"
	"github.com/gasgit/gasgit/pkg/errors"
	"github.com/gasgit/gasgit/pkg/remote"
	"github.com/gasgit/gasgit/pkg/sync"
)

// HandleFatalError prints the friendliest form of err and exits.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(os.Stderr, errors.GetPrintableMessage(err))
	os.Exit(1)
}

// GetSyncer builds the Syncer shared by the CLI commands from the user's
// config.
func GetSyncer() (*sync.Syncer, config.User, error) {
	cfg, err := config.ParseUser()
	if err != nil {
		return nil, config.User{}, errors.WithContext(err, "parse user config")
	}

	client, err := GetClient(cfg)
	if err != nil {
		return nil, config.User{}, err
	}
	return sync.New(client, cfg), cfg, nil
}

// GetClient builds the remote store client from the user's config. Calls are
// retried with backoff; the store sits behind arbitrary networks.
func GetClient(cfg config.User) (remote.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.NewFriendlyError(
			"No remote endpoint is configured.\n"+
				"Set `endpoint` in ~/%s.", config.UserConfigPath)
	}
	return remote.WithRetry(
		remote.NewHTTP(cfg.Endpoint, cfg.Token), remote.DefaultRetryConfig()), nil
}

// GetProject resolves the project ID from the --project flag value, falling
// back to the configured default.
func GetProject(flagValue string, cfg config.User) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Project != "" {
		return cfg.Project, nil
	}
	return "", errors.NewFriendlyError(
		"No project is configured.\n"+
			"Pass --project or set `project` in ~/%s.", config.UserConfigPath)
}
