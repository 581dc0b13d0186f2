package mr

import (
	"fmt"
	"plugin"
)

// App is the core's only extension point: a user-supplied pair of
// deterministic transforms. Map must be deterministic given its
// inputs and may emit zero pairs; Reduce must be deterministic given
// its inputs and invariant to the order of values.
type App interface {
	Map(filename, contents string) []KeyValue
	Reduce(key string, values []string) string
}

// MapFunc and ReduceFunc are the raw function shapes a plugin exposes
// at its top level, mirroring the signatures real 6.824-style
// mrapps export.
type MapFunc func(filename, contents string) []KeyValue
type ReduceFunc func(key string, values []string) string

// funcApp adapts a bare (MapFunc, ReduceFunc) pair into an App.
type funcApp struct {
	mapFn    MapFunc
	reduceFn ReduceFunc
}

func (a funcApp) Map(filename, contents string) []KeyValue { return a.mapFn(filename, contents) }
func (a funcApp) Reduce(key string, values []string) string { return a.reduceFn(key, values) }

// NewApp builds a compile-time-known App binding, used by tests and
// by any caller that links a user application directly instead of
// loading it as a plugin.
func NewApp(mapFn MapFunc, reduceFn ReduceFunc) App {
	return funcApp{mapFn: mapFn, reduceFn: reduceFn}
}

// LoadApp opens a Go plugin built with -buildmode=plugin and looks up
// its exported "Map" and "Reduce" symbols, matching the signatures
// above. This is the Go analog of the original Python
// importlib.util-based plugin loader: the normative contract is the
// App interface, not this loading mechanism (spec.md §9).
func LoadApp(path string) (App, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}

	mapSym, err := p.Lookup("Map")
	if err != nil {
		return nil, fmt.Errorf("plugin %s missing Map: %w", path, err)
	}
	reduceSym, err := p.Lookup("Reduce")
	if err != nil {
		return nil, fmt.Errorf("plugin %s missing Reduce: %w", path, err)
	}

	mapFn, ok := mapSym.(func(string, string) []KeyValue)
	if !ok {
		return nil, fmt.Errorf("plugin %s: Map has wrong signature", path)
	}
	reduceFn, ok := reduceSym.(func(string, []string) string)
	if !ok {
		return nil, fmt.Errorf("plugin %s: Reduce has wrong signature", path)
	}

	return NewApp(mapFn, reduceFn), nil
}
