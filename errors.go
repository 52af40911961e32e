package layercache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig matches every construction error returned by New.
	ErrConfig = errors.New("layercache: invalid configuration")
	// ErrNoLayers is returned by New when no layers are configured.
	ErrNoLayers = fmt.Errorf("%w: at least one layer is required", ErrConfig)
	// ErrInvalidKey is returned for keys that are empty or whitespace-only.
	ErrInvalidKey = errors.New("layercache: key is empty")
	// ErrUnknownLayer matches every *UnknownLayerError.
	ErrUnknownLayer = errors.New("layercache: unknown layer")
	// ErrNoNamedLayers matches an *UnknownLayerError raised by a cache with no named layers.
	ErrNoNamedLayers = errors.New("layercache: no named layers were configured")
)

// ConfigError reports an invalid layer list passed to New.
type ConfigError struct {
	Index  int
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("layercache: layer %d: %s", e.Index, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// UnknownLayerError is returned by Layer for a name that was never registered.
// Known lists the registered names; it is empty when the cache has no named layers.
type UnknownLayerError struct {
	Name  string
	Known []string
}

func (e *UnknownLayerError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("layercache: layer %q requested but no named layers were configured", e.Name)
	}
	return fmt.Sprintf("layercache: unknown layer %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownLayerError) Is(target error) bool {
	switch target {
	case ErrUnknownLayer:
		return true
	case ErrNoNamedLayers:
		return len(e.Known) == 0
	}
	return false
}
