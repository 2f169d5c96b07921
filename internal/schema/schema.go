// Package schema implements the schema mapper: named JSON-shaped schema
// registration and document validation, plus named lookup tables used by
// the payload transformer's Lookup operator and consulted directly by
// routes that need a source→target value translation.
package schema

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/vyrodovalexey/avapigw/internal/observability"
	"github.com/vyrodovalexey/avapigw/internal/store"
)

// Error codes for ValidationError, per spec.md 4.4.
const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeTypeMismatch         = "TYPE_MISMATCH"
	CodeMinLength            = "MIN_LENGTH"
	CodeMaxLength            = "MAX_LENGTH"
	CodePatternMismatch      = "PATTERN_MISMATCH"
	CodeMinimum              = "MINIMUM"
	CodeMaximum              = "MAXIMUM"
	CodeNotInteger           = "NOT_INTEGER"
)

// FieldConstraint describes the per-field validation rules carried under
// Schema.Properties.
type FieldConstraint struct {
	Type      string   `yaml:"type,omitempty" json:"type,omitempty"`
	MinLength *int     `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength *int     `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Minimum   *float64 `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum   *float64 `yaml:"maximum,omitempty" json:"maximum,omitempty"`
}

// Schema is a JSON-shaped descriptor: required top-level fields plus
// per-field constraints.
type Schema struct {
	Name       string                     `yaml:"name" json:"name"`
	Required   []string                   `yaml:"required,omitempty" json:"required,omitempty"`
	Properties map[string]FieldConstraint `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// ValidationError describes a single validation failure.
type ValidationError struct {
	Path         string      `json:"path"`
	Message      string      `json:"message"`
	Code         string      `json:"code"`
	ActualValue  interface{} `json:"actualValue,omitempty"`
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// LookupTable is an in-process string→string mapping, replicated into the
// distributed store for cross-instance consistency.
type LookupTable map[string]string

// Mapper registers schemas/lookup tables and validates documents /
// resolves lookups against them.
type Mapper struct {
	logger observability.Logger
	store  store.Store

	mu       sync.RWMutex
	schemas  map[string]Schema
	tables   map[string]LookupTable
	generation uint64
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithStore attaches the distributed store consulted on a process-local
// lookup-table miss.
func WithStore(s store.Store) Option {
	return func(m *Mapper) { m.store = s }
}

// WithLogger sets the mapper's logger.
func WithLogger(logger observability.Logger) Option {
	return func(m *Mapper) { m.logger = logger }
}

// New creates an empty Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		logger:  observability.NopLogger(),
		schemas: make(map[string]Schema),
		tables:  make(map[string]LookupTable),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterSchema registers or replaces the schema under name. Schema
// registrations are versioned by a monotonic generation counter (spec.md
// 3.1) so a future reload() can be observed as having happened even though
// mutation here is already atomic under the mapper's lock.
func (m *Mapper) RegisterSchema(name string, s Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Name = name
	m.schemas[name] = s
	m.generation++
}

// RegisterLookupTable registers or replaces the named lookup table.
func (m *Mapper) RegisterLookupTable(name string, mappings LookupTable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[name] = mappings
	m.generation++
}

// Generation returns the mapper's current registration generation,
// incremented on every RegisterSchema/RegisterLookupTable call.
func (m *Mapper) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Validate walks document against the named schema. An unknown schema name
// is treated as an open-world success, with a warning logged (spec.md 4.4).
func (m *Mapper) Validate(document map[string]interface{}, schemaName string) ValidationResult {
	m.mu.RLock()
	s, ok := m.schemas[schemaName]
	m.mu.RUnlock()

	if !ok {
		m.logger.Warn("schema not registered, skipping validation",
			observability.String("schema", schemaName),
		)
		return ValidationResult{
			Valid:    true,
			Warnings: []string{fmt.Sprintf("schema %q is not registered", schemaName)},
		}
	}

	var errs []ValidationError

	for _, field := range s.Required {
		if _, present := document[field]; !present {
			errs = append(errs, ValidationError{
				Path:    "$." + field,
				Message: fmt.Sprintf("required field %q is missing", field),
				Code:    CodeRequiredFieldMissing,
			})
		}
	}

	for field, constraint := range s.Properties {
		value, present := document[field]
		if !present {
			continue
		}
		errs = append(errs, validateField("$."+field, value, constraint)...)
	}

	return ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

func validateField(path string, value interface{}, c FieldConstraint) []ValidationError {
	var errs []ValidationError

	if c.Type != "" && !matchesType(value, c.Type) {
		errs = append(errs, ValidationError{
			Path:        path,
			Message:     fmt.Sprintf("expected type %q", c.Type),
			Code:        CodeTypeMismatch,
			ActualValue: value,
		})
		return errs
	}

	switch v := value.(type) {
	case string:
		if c.MinLength != nil && len(v) < *c.MinLength {
			errs = append(errs, ValidationError{
				Path: path, Code: CodeMinLength, ActualValue: len(v),
				Message: fmt.Sprintf("length %d is below minLength %d", len(v), *c.MinLength),
			})
		}
		if c.MaxLength != nil && len(v) > *c.MaxLength {
			errs = append(errs, ValidationError{
				Path: path, Code: CodeMaxLength, ActualValue: len(v),
				Message: fmt.Sprintf("length %d exceeds maxLength %d", len(v), *c.MaxLength),
			})
		}
		if c.Pattern != "" {
			re, err := regexp.Compile(c.Pattern)
			if err == nil && !re.MatchString(v) {
				errs = append(errs, ValidationError{
					Path: path, Code: CodePatternMismatch, ActualValue: v,
					Message: fmt.Sprintf("value does not match pattern %q", c.Pattern),
				})
			}
		}
	case float64:
		if c.Type == "integer" && v != float64(int64(v)) {
			errs = append(errs, ValidationError{
				Path: path, Code: CodeNotInteger, ActualValue: v,
				Message: "value is not a whole number",
			})
		}
		if c.Minimum != nil && v < *c.Minimum {
			errs = append(errs, ValidationError{
				Path: path, Code: CodeMinimum, ActualValue: v,
				Message: fmt.Sprintf("value %v is below minimum %v", v, *c.Minimum),
			})
		}
		if c.Maximum != nil && v > *c.Maximum {
			errs = append(errs, ValidationError{
				Path: path, Code: CodeMaximum, ActualValue: v,
				Message: fmt.Sprintf("value %v exceeds maximum %v", v, *c.Maximum),
			})
		}
	}

	return errs
}

// matchesType reports whether value's runtime kind matches the declared
// JSON schema type name.
func matchesType(value interface{}, typ string) bool {
	switch typ {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}

// Lookup resolves sourceValue against tableName: the process-local table
// is authoritative when present; on a miss it falls back to the
// distributed store under "lookup:{table}:{key}". A miss at both levels
// returns ("", false) and logs a warning.
func (m *Mapper) Lookup(ctx context.Context, tableName, sourceValue string) (string, bool) {
	m.mu.RLock()
	table, ok := m.tables[tableName]
	m.mu.RUnlock()

	if ok {
		if v, found := table[sourceValue]; found {
			return v, true
		}
	}

	if m.store != nil {
		v, err := m.store.Get(ctx, store.LookupKey(tableName, sourceValue))
		if err == nil {
			return string(v), true
		}
	}

	m.logger.Warn("lookup miss",
		observability.String("table", tableName),
		observability.String("key", sourceValue),
	)
	return "", false
}

// replicate pushes a lookup table's entries into the distributed store so
// other gateway instances observe the same mappings. It is best-effort:
// failures are logged, not returned, matching the fire-and-forget posture
// spec.md assigns to LookupTable replication.
func (m *Mapper) replicate(ctx context.Context, tableName string, table LookupTable) {
	if m.store == nil {
		return
	}
	for k, v := range table {
		if err := m.store.Set(ctx, store.LookupKey(tableName, k), []byte(v), 0); err != nil {
			m.logger.Warn("lookup table replication failed",
				observability.String("table", tableName),
				observability.String("key", k),
				observability.Error(err),
			)
		}
	}
}

// RegisterLookupTableWithReplication registers mappings locally and
// replicates them into the distributed store.
func (m *Mapper) RegisterLookupTableWithReplication(ctx context.Context, name string, mappings LookupTable) {
	m.RegisterLookupTable(name, mappings)
	m.replicate(ctx, name, mappings)
}
