package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch loads the configuration and re-invokes onChange whenever the config
// file is rewritten. Reloads that fail validation are logged and ignored so a
// bad edit never replaces a working configuration.
func Watch(configPath string, onChange func(*Config)) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() == "" {
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			slog.Warn("ignoring config reload", "file", e.Name, "error", err)
			return
		}
		slog.Info("configuration reloaded", "file", e.Name)
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}
