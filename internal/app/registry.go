package app

import (
	"errors"
	"fmt"
)

// Registry holds the set of registered apps in registration order. It is
// populated once at startup and closed at process teardown; the loop only
// reads from it.
type Registry struct {
	order []App
	byName map[string]App
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]App)}
}

// Register adds an app under its name. Names are unique identities;
// registering an empty or duplicate name is an error.
func (r *Registry) Register(a App) error {
	name := a.Name()
	if name == "" {
		return fmt.Errorf("app has empty name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("app %q already registered", name)
	}
	r.byName[name] = a
	r.order = append(r.order, a)
	return nil
}

// Get returns the app registered under name.
func (r *Registry) Get(name string) (App, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Names returns the registered app names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, a := range r.order {
		names[i] = a.Name()
	}
	return names
}

// Apps returns the registered apps in registration order.
func (r *Registry) Apps() []App {
	return append([]App(nil), r.order...)
}

// Len returns the number of registered apps.
func (r *Registry) Len() int {
	return len(r.order)
}

// CloseAll closes every registered app and joins any errors. Used at
// process teardown.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, a := range r.order {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing app %q: %w", a.Name(), err))
		}
	}
	return errors.Join(errs...)
}
