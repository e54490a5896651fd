// SPDX-License-Identifier: MPL-2.0

package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/bootpack/bootpack/pkg/classpath"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/types"
)

// ScriptSuffix is appended to the Start-Class path to find a script entry point.
const ScriptSuffix = ".sh"

// ErrDuplicateEntryPoint is returned when a name is registered twice.
var ErrDuplicateEntryPoint = errors.New("duplicate entry point")

// Default is the process-wide registry consulted by the launcher.
var Default = NewRegistry()

type (
	// Env is what an entry point sees of the launch: its arguments, standard
	// streams and the classpath in resolution order.
	Env struct {
		Args   []string
		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		// Loader resolves resources first-match-wins over the classpath.
		Loader *classpath.Loader
		// Image is the container path the launch started from.
		Image  string
		Logger *slog.Logger
	}

	// Func is a Go entry point. The returned status becomes the process
	// exit status.
	Func func(ctx context.Context, env *Env) (types.ExitCode, error)

	// EntryPoint is a resolved, runnable application entry point.
	EntryPoint interface {
		Name() string
		Run(ctx context.Context, env *Env) (types.ExitCode, error)
	}

	// Registry maps Start-Class names to Go entry points.
	Registry struct {
		mu      sync.RWMutex
		entries map[string]Func
	}

	funcEntry struct {
		name string
		fn   Func
	}

	scriptEntry struct {
		name     string
		resource string
	}
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Func)}
}

// Register adds fn under name.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return errors.New("entry point needs a name and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntryPoint, name)
	}
	r.entries[name] = fn
	return nil
}

// MustRegister is Register for init functions; it panics on error.
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the entry point registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.entries[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := maps.Keys(r.entries)
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// ScriptResource maps a Start-Class to the resource holding its script:
// "demo.Main" becomes "demo/Main.sh".
func ScriptResource(startClass string) string {
	return strings.ReplaceAll(startClass, ".", "/") + ScriptSuffix
}

// Resolve finds the entry point for startClass: the registry first, then a
// script resource on the classpath. Neither is a ResolutionError.
func Resolve(startClass string, reg *Registry, loader *classpath.Loader) (EntryPoint, error) {
	if startClass == "" {
		return nil, &launcherr.ResolutionError{Path: "Start-Class", Reason: "manifest declares no entry point"}
	}
	if reg == nil {
		reg = Default
	}
	if fn, ok := reg.Lookup(startClass); ok {
		return &funcEntry{name: startClass, fn: fn}, nil
	}
	if loader != nil {
		resource := ScriptResource(startClass)
		_, err := loader.Find(resource)
		if err == nil {
			return &scriptEntry{name: startClass, resource: resource}, nil
		}
		if !errors.Is(err, launcherr.ErrResolution) {
			return nil, err
		}
	}
	return nil, &launcherr.ResolutionError{
		Path:   startClass,
		Reason: fmt.Sprintf("no registered entry point and no %s resource on the classpath", ScriptResource(startClass)),
	}
}

func (e *funcEntry) Name() string { return e.name }

func (e *funcEntry) Run(ctx context.Context, env *Env) (types.ExitCode, error) {
	return e.fn(ctx, env)
}

func (e *scriptEntry) Name() string { return e.name }

func (e *scriptEntry) Run(ctx context.Context, env *Env) (types.ExitCode, error) {
	script, err := env.Loader.ReadFile(e.resource)
	if err != nil {
		return types.ExitResolution, err
	}
	return RunScript(ctx, e.resource, script, env)
}
