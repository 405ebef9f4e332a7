package media

import (
	"fmt"
	"sort"
	"strings"

	"github.com/launchpal/launchpal/internal/config"
)

// FactoryFunc builds a Store from configuration.
type FactoryFunc func(*config.Config) (Store, error)

var factories = make(map[string]FactoryFunc)

// Register registers a backend factory. It is meant to be called from init.
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStore creates the backend named by media.backend.
func NewStore(cfg *config.Config) (Store, error) {
	factory, ok := factories[cfg.Media.Backend]
	if !ok {
		names := make([]string, 0, len(factories))
		for n := range factories {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unsupported media backend: %s (registered: %s)", cfg.Media.Backend, strings.Join(names, ", "))
	}
	return factory(cfg)
}
