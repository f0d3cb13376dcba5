package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Envelope is the uniform JSON document every tool execution produces.
// Fields holds tool-specific top-level keys; the fixed keys take precedence.
type Envelope struct {
	Tool            string
	Timestamp       string
	Inputs          map[string]interface{}
	Results         []Record
	Errors          []string
	ElapsedMS       int64
	Verdict         string
	RiskScore       *float64
	Recommendations []string
	Fields          Record
}

var reservedKeys = map[string]bool{
	"tool":            true,
	"timestamp":       true,
	"inputs":          true,
	"results":         true,
	"errors":          true,
	"elapsed_ms":      true,
	"verdict":         true,
	"risk_score":      true,
	"recommendations": true,
}

// Absorb lifts the analytical fields out of a tool's summary record and keeps
// the rest as tool-specific fields.
func (e *Envelope) Absorb(summary Record) {
	if summary == nil {
		return
	}
	if e.Fields == nil {
		e.Fields = Record{}
	}
	for k, v := range summary {
		switch k {
		case "verdict":
			if s, ok := v.(string); ok {
				e.Verdict = s
			} else if s, ok := v.(Verdict); ok {
				e.Verdict = string(s)
			}
		case "risk_score":
			if f, ok := toFloat(v); ok {
				e.RiskScore = &f
			}
		case "recommendations":
			if recs, ok := v.([]string); ok {
				e.Recommendations = append([]string(nil), recs...)
			}
		default:
			if !reservedKeys[k] {
				e.Fields[k] = v
			}
		}
	}
}

// Succeeded reports whether the run produced a result without errors.
func (e *Envelope) Succeeded(ran bool) bool {
	return ran && len(e.Errors) == 0
}

// MarshalJSON writes the fixed keys first, in envelope order, followed by
// the tool's extra summary fields sorted by name.
func (e Envelope) MarshalJSON() ([]byte, error) {
	results := e.Results
	if results == nil {
		results = []Record{}
	}
	errs := e.Errors
	if errs == nil {
		errs = []string{}
	}
	inputs := e.Inputs
	if inputs == nil {
		inputs = map[string]interface{}{}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("envelope field %s: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(data)
		return nil
	}

	fixed := []struct {
		key   string
		value interface{}
		skip  bool
	}{
		{"tool", e.Tool, false},
		{"timestamp", e.Timestamp, false},
		{"inputs", inputs, false},
		{"results", results, false},
		{"errors", errs, false},
		{"elapsed_ms", e.ElapsedMS, false},
		{"verdict", e.Verdict, e.Verdict == ""},
		{"risk_score", e.RiskScore, e.RiskScore == nil},
		{"recommendations", e.Recommendations, e.Recommendations == nil},
	}
	for _, f := range fixed {
		if f.skip {
			continue
		}
		if err := write(f.key, f.value); err != nil {
			return nil, err
		}
	}

	extra := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if !reservedKeys[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		if err := write(k, e.Fields[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Envelope{Fields: Record{}}
	fixed := []struct {
		key string
		dst interface{}
	}{
		{"tool", &e.Tool},
		{"timestamp", &e.Timestamp},
		{"inputs", &e.Inputs},
		{"results", &e.Results},
		{"errors", &e.Errors},
		{"elapsed_ms", &e.ElapsedMS},
		{"verdict", &e.Verdict},
		{"risk_score", &e.RiskScore},
		{"recommendations", &e.Recommendations},
	}
	for _, f := range fixed {
		msg, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(msg, f.dst); err != nil {
			return fmt.Errorf("envelope field %s: %w", f.key, err)
		}
		delete(raw, f.key)
	}
	for k, msg := range raw {
		var v interface{}
		if err := json.Unmarshal(msg, &v); err != nil {
			return fmt.Errorf("envelope field %s: %w", k, err)
		}
		e.Fields[k] = v
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
