package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/certforge/certstore/internal/logger"
)

// Watch re-reads configPath whenever it changes on disk and hands each
// config that loads and validates to onChange. Broken edits are logged and
// skipped, so onChange only ever sees valid configs.
//
// Only settings that are safe to change at runtime should be applied by
// onChange; the server re-applies the log level.
func Watch(configPath string, onChange func(*Config)) error {
	v := newViper(configPath)
	if _, err := readConfigFile(v); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", "file", e.Name, logger.KeyError, err)
			return
		}
		logger.Info("Configuration reloaded", "file", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
