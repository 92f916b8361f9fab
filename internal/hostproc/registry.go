package hostproc

import "fmt"

// AdapterFactory builds a Backend for a given backend-object name (the
// part after the colon in a "module:object" spec, possibly empty).
type AdapterFactory func(object string) (*Backend, error)

var adapters = map[string]AdapterFactory{}

// RegisterAdapter makes a backend adapter available under module, the
// Go-native analogue of "import <module>" in the source ecosystem's host.
// Adapter packages call this from an init() function.
func RegisterAdapter(module string, factory AdapterFactory) {
	adapters[module] = factory
}

// Load resolves module to a Backend via its registered adapter factory.
func Load(module, object string) (*Backend, error) {
	factory, ok := adapters[module]
	if !ok {
		return nil, fmt.Errorf("hostproc: no adapter registered for backend module %q", module)
	}
	return factory(object)
}
