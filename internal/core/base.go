package core

import (
	"sync"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
	"github.com/CodeMonkeyCybersecurity/pantest/pkg/types"
)

// Base carries the metadata and the result/error ledger a tool accumulates.
// Tools embed it by value and must be used through a pointer. All methods
// are safe for concurrent use so pooled workers can report directly.
type Base struct {
	meta types.ToolMetadata
	log  *logger.Logger

	mu              sync.Mutex
	results         []types.Record
	errors          []string
	warnings        []string
	recommendations []string
	output          []string
	state           types.ToolState
}

func NewBase(meta types.ToolMetadata, log *logger.Logger) Base {
	if log == nil {
		log = logger.Nop()
	}
	return Base{
		meta:  meta.Normalized(),
		log:   log.WithTool(meta.Name),
		state: types.StateIdle,
	}
}

func (b *Base) Metadata() types.ToolMetadata { return b.meta }

// Log returns the tool-scoped logger.
func (b *Base) Log() *logger.Logger {
	if b.log == nil {
		return logger.Nop()
	}
	return b.log
}

// Begin clears the ledger and marks the tool as running.
func (b *Base) Begin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = nil
	b.errors = nil
	b.warnings = nil
	b.recommendations = nil
	b.output = nil
	b.state = types.StateRunning
}

// Reset clears the ledger without changing state.
func (b *Base) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = nil
	b.errors = nil
	b.warnings = nil
	b.recommendations = nil
	b.output = nil
}

func (b *Base) AddResult(r types.Record) {
	b.mu.Lock()
	b.results = append(b.results, r)
	b.mu.Unlock()
}

func (b *Base) AddError(msg string) {
	b.mu.Lock()
	b.errors = append(b.errors, msg)
	b.mu.Unlock()
	b.Log().Warnw("Tool error", "error", msg)
}

// Fail records err and returns nil so Run can `return t.Fail(err)`.
func (b *Base) Fail(err error) types.Record {
	if err != nil {
		b.AddError(err.Error())
	}
	return nil
}

func (b *Base) AddWarning(msg string) {
	b.mu.Lock()
	b.warnings = append(b.warnings, msg)
	b.mu.Unlock()
	b.Log().Warnw("Tool warning", "warning", msg)
}

func (b *Base) AddSuccess(msg string) {
	b.AddOutput("[+] " + msg)
	b.Log().Infow("Tool success", "message", msg)
}

func (b *Base) AddOutput(line string) {
	b.mu.Lock()
	b.output = append(b.output, line)
	b.mu.Unlock()
}

func (b *Base) AddRecommendation(rec string) {
	b.mu.Lock()
	b.recommendations = append(b.recommendations, rec)
	b.mu.Unlock()
}

func (b *Base) Results() []types.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Record(nil), b.results...)
}

func (b *Base) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errors...)
}

func (b *Base) Warnings() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.warnings...)
}

func (b *Base) Recommendations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.recommendations...)
}

func (b *Base) Output() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.output...)
}

func (b *Base) HasErrors() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.errors) > 0
}

func (b *Base) State() types.ToolState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) SetState(s types.ToolState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Base) IsRunning() bool {
	return b.State() == types.StateRunning
}

// Check runs a tool's parser for Validate: the ledger is cleared first and
// a parse failure is recorded as an error.
func (b *Base) Check(parse func() error) bool {
	b.Reset()
	if err := parse(); err != nil {
		b.AddError(err.Error())
		return false
	}
	return true
}
