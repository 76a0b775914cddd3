package config

import (
	stderrors "errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"songdwh/pkg/errors"
)

// KeyringService is the service name passwords are stored under
const KeyringService = "songdwh"

// KeyringUser identifies the warehouse login a stored password belongs to
func (w WarehouseConfig) KeyringUser() string {
	endpoint := w.Host
	if endpoint == "" {
		endpoint = w.Account
	}
	return fmt.Sprintf("%s@%s/%s", w.User, endpoint, w.Database)
}

// ResolvePassword fills an empty warehouse password from the OS keyring.
// A missing keyring entry is not an error; Validate reports the gap.
func ResolvePassword(cfg *Config) error {
	if cfg.Warehouse.Password != "" || cfg.Warehouse.User == "" {
		return nil
	}

	secret, err := keyring.Get(KeyringService, cfg.Warehouse.KeyringUser())
	if err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to read password from keyring").
			WithContext("user", cfg.Warehouse.KeyringUser())
	}

	cfg.Warehouse.Password = secret
	return nil
}

// StorePassword saves the warehouse password in the OS keyring
func StorePassword(w WarehouseConfig, password string) error {
	if w.User == "" {
		return errors.ConfigError("warehouse.user is required to store a password", "warehouse.user")
	}
	if err := keyring.Set(KeyringService, w.KeyringUser(), password); err != nil {
		return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to store password in keyring").
			WithContext("user", w.KeyringUser())
	}
	return nil
}

// DeletePassword removes the stored warehouse password
func DeletePassword(w WarehouseConfig) error {
	if err := keyring.Delete(KeyringService, w.KeyringUser()); err != nil {
		if stderrors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeCredentials, "Failed to delete password from keyring").
			WithContext("user", w.KeyringUser())
	}
	return nil
}
