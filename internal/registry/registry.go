// Package registry maps tool ids to their constructors.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/core"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

var ErrNotFound = errors.New("tool not found")

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

type entry struct {
	ctor core.Constructor
	meta types.ToolMetadata
}

type registry struct {
	env   *core.Env
	mu    sync.RWMutex
	tools map[string]entry
}

// New returns an empty registry whose constructors receive env.
func New(env *core.Env) core.Registry {
	return &registry{
		env:   env,
		tools: make(map[string]entry),
	}
}

// Register calls ctor once to capture the tool's metadata.
func (r *registry) Register(id string, ctor core.Constructor) error {
	if !idPattern.MatchString(id) {
		return types.NewError(types.KindFramework, "invalid tool id %q", id)
	}
	if ctor == nil {
		return types.NewError(types.KindFramework, "tool %s has no constructor", id)
	}

	tool := ctor(r.env)
	if tool == nil {
		return types.NewError(types.KindFramework, "constructor for %s returned nil", id)
	}
	meta := tool.Metadata().Normalized()
	if !meta.Category.Valid() {
		return types.NewError(types.KindFramework, "tool %s has unknown category %q", id, meta.Category)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[id]; exists {
		return types.NewError(types.KindFramework, "tool %s already registered", id)
	}
	r.tools[id] = entry{ctor: ctor, meta: meta}
	return nil
}

func (r *registry) New(id string) (core.Tool, error) {
	r.mu.RLock()
	e, exists := r.tools[id]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.ctor(r.env), nil
}

func (r *registry) Metadata(id string) (types.ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.tools[id]
	return e.meta, exists
}

func (r *registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ByCategory groups sorted ids under each category that has tools.
func (r *registry) ByCategory() map[types.Category][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[types.Category][]string)
	for id, e := range r.tools {
		out[e.meta.Category] = append(out[e.meta.Category], id)
	}
	for _, ids := range out {
		sort.Strings(ids)
	}
	return out
}
