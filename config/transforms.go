package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/osmundr/go-tileproc/raster"
)

// TransformFactory builds a transform from its config options.
type TransformFactory func(options map[string]string) (raster.Transform, error)

var (
	transformsMu sync.RWMutex
	transforms   = map[string]TransformFactory{}
)

// RegisterTransform makes a transform constructible from config under the
// given kind. Registering a duplicate kind panics.
func RegisterTransform(kind string, factory TransformFactory) {
	transformsMu.Lock()
	defer transformsMu.Unlock()
	if _, exists := transforms[kind]; exists {
		panic(fmt.Sprintf("tileproc: transform %q already registered", kind))
	}
	transforms[kind] = factory
}

// NewTransform builds the registered transform of the given kind.
func NewTransform(kind string, options map[string]string) (raster.Transform, error) {
	transformsMu.RLock()
	factory, found := transforms[kind]
	transformsMu.RUnlock()
	if !found {
		return nil, fmt.Errorf("tileproc: unknown transform kind %q", kind)
	}
	return factory(options)
}

func init() {
	// footprint emits each patch's extent as its result geometry, with the
	// configured options copied through as attributes. Useful for coverage
	// audits and as a pipeline smoke transform.
	RegisterTransform("footprint", func(options map[string]string) (raster.Transform, error) {
		return raster.TransformFunc(func(ctx context.Context, batch []raster.Patch) ([]raster.Result, error) {
			results := make([]raster.Result, len(batch))
			for i, patch := range batch {
				attributes := make(map[string]string, len(options))
				for key, value := range options {
					attributes[key] = value
				}
				results[i] = raster.Result{
					Anchor:     patch.Anchor,
					Geometry:   patch.Region.ToGeometry(),
					Attributes: attributes,
				}
			}
			return results, nil
		}), nil
	})
}
