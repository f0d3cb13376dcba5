package core

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/params"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// Tool is a single executable unit in the catalogue.
//
// Validate returns false only after recording at least one error. Run clears
// previous results and errors, does the work and returns a summary record,
// or nil on failure; Errors is then authoritative.
type Tool interface {
	Metadata() types.ToolMetadata
	Validate(p params.Params) bool
	Run(ctx context.Context, p params.Params) types.Record

	Results() []types.Record
	Errors() []string
	Warnings() []string
	State() types.ToolState
	SetState(s types.ToolState)
}

// Constructor builds a fresh tool instance for one invocation. It must not
// perform I/O; the registry calls it once at registration to read metadata.
type Constructor func(env *Env) Tool

// Registry maps stable tool ids to constructors.
type Registry interface {
	Register(id string, ctor Constructor) error
	New(id string) (Tool, error)
	Metadata(id string) (types.ToolMetadata, bool)
	IDs() []string
	ByCategory() map[types.Category][]string
}
