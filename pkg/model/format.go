package model

import "sync"

// DataFormat identifies a kind of data flowing between steps (for example
// "reads" or "alignment-results"). Formats are immutable, registered once
// in the global registry, and compared by pointer identity: two ports are
// compatible only if they reference the same *DataFormat.
type DataFormat struct {
	name        string
	description string
}

// Name returns the registered format name.
func (f *DataFormat) Name() string { return f.name }

// Description returns the human-readable format description.
func (f *DataFormat) Description() string { return f.description }

func (f *DataFormat) String() string { return f.name }

var formatRegistry = struct {
	sync.RWMutex
	byName map[string]*DataFormat
}{byName: make(map[string]*DataFormat)}

// RegisterFormat registers a data format under the given name and returns
// the canonical instance. Registering a name twice returns the existing
// instance, so identity comparison keeps working across packages.
func RegisterFormat(name, description string) (*DataFormat, error) {
	if name == "" {
		return nil, NewConfigurationError("", "data format name cannot be empty")
	}

	formatRegistry.Lock()
	defer formatRegistry.Unlock()

	if f, ok := formatRegistry.byName[name]; ok {
		return f, nil
	}
	f := &DataFormat{name: name, description: description}
	formatRegistry.byName[name] = f
	return f, nil
}

// MustRegisterFormat is RegisterFormat but panics on error. Intended for
// package-level format declarations.
func MustRegisterFormat(name, description string) *DataFormat {
	f, err := RegisterFormat(name, description)
	if err != nil {
		panic(err)
	}
	return f
}

// FormatByName looks up a registered format.
func FormatByName(name string) (*DataFormat, bool) {
	formatRegistry.RLock()
	defer formatRegistry.RUnlock()
	f, ok := formatRegistry.byName[name]
	return f, ok
}

// isRegistered reports whether f is the canonical registered instance.
func isRegistered(f *DataFormat) bool {
	if f == nil {
		return false
	}
	formatRegistry.RLock()
	defer formatRegistry.RUnlock()
	return formatRegistry.byName[f.name] == f
}
