// Package transform implements the payload transformer (C4): typed
// field-by-field mappings between named schemas, applied to JSON request
// and response bodies as they cross the gateway (spec.md 4.5).
package transform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avapigw/internal/observability"
	"github.com/vyrodovalexey/avapigw/internal/schema"
)

// transformTracer is re-assigned in tests that install a test tracer
// provider, mirroring internal/auth's authTracer.
var transformTracer = otel.Tracer("avapigw/transform")

// Errors returned by Mapper.
var (
	ErrRequiredFieldMissing = errors.New("transform: required field produced no value")
	ErrInvalidPath          = errors.New("transform: invalid field path")
	ErrUnknownOperator      = errors.New("transform: unknown operator")
)

// Operator names the field-level transform applied to produce a target
// value from a source document (spec.md 4.5).
type Operator string

// Operators supported by FieldMapping.
const (
	// OperatorDirect copies the value found at SourcePath unchanged.
	OperatorDirect Operator = "direct"
	// OperatorConstant emits OperatorArg as a literal value.
	OperatorConstant Operator = "constant"
	// OperatorFormat reformats a timestamp or decimal found at SourcePath.
	OperatorFormat Operator = "format"
	// OperatorMap looks the stringified source value up in ValueMap.
	OperatorMap Operator = "map"
	// OperatorLookup delegates to the schema mapper's (C3) named lookup table.
	OperatorLookup Operator = "lookup"
	// OperatorComputed evaluates OperatorArg as a CEL expression.
	OperatorComputed Operator = "computed"
	// OperatorConcat expands "$.path" tokens in OperatorArg and concatenates.
	OperatorConcat Operator = "concat"
)

// FieldMapping describes how one target field is produced.
type FieldMapping struct {
	// SourcePath is a "$."-rooted path into the source document. Ignored
	// by OperatorConstant.
	SourcePath string

	// TargetPath is a "$."-rooted path describing where the produced
	// value is written in the target document.
	TargetPath string

	// Operator selects the production rule.
	Operator Operator

	// OperatorArg carries the operator's argument: the literal value for
	// Constant, the target format for Format, the lookup table name for
	// Lookup, the CEL expression for Computed, or the concat template for
	// Concat. Unused by Direct and Map.
	OperatorArg string

	// ValueMap is the inline key/value table consulted by OperatorMap.
	ValueMap map[string]string

	// DefaultValue is substituted when the operator yields nil.
	DefaultValue interface{}

	// Required aborts the transform with an error if the produced value
	// (after DefaultValue substitution) is still nil.
	Required bool
}

// SchemaMapping is a named, directional set of field mappings from a
// source schema to a target schema.
type SchemaMapping struct {
	Source string
	Target string
	Fields []FieldMapping
}

type mappingKey struct {
	source, target string
}

// Mapper registers SchemaMappings and applies them to request/response
// documents, delegating Lookup and Validate to the schema mapper (C3).
type Mapper struct {
	logger   observability.Logger
	schema   *schema.Mapper
	computed *computedEvaluator
	metrics  *TransformMetrics

	mu       sync.RWMutex
	mappings map[mappingKey]SchemaMapping
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the mapper's logger.
func WithLogger(logger observability.Logger) Option {
	return func(m *Mapper) { m.logger = logger }
}

// New creates a Mapper backed by schemaMapper (C3), used for Lookup
// operator delegation and schema Validate.
func New(schemaMapper *schema.Mapper, opts ...Option) *Mapper {
	m := &Mapper{
		logger:   observability.NopLogger(),
		schema:   schemaMapper,
		metrics:  GetTransformMetrics(),
		mappings: make(map[mappingKey]SchemaMapping),
	}
	for _, opt := range opts {
		opt(m)
	}
	evaluator, err := newComputedEvaluator()
	if err != nil {
		m.logger.Warn("computed operator environment unavailable, Computed will emit literals",
			observability.Error(err))
	} else {
		m.computed = evaluator
	}
	return m
}

// RegisterMapping validates and registers (or replaces) a SchemaMapping
// under its (Source, Target) pair. Registration rejects any field whose
// path does not parse, per the design note that unsupported path
// constructs are caught at registration rather than at transform time.
func (m *Mapper) RegisterMapping(mapping SchemaMapping) error {
	for _, f := range mapping.Fields {
		if _, err := parsePath(f.TargetPath); err != nil {
			return fmt.Errorf("%w: target path %q: %v", ErrInvalidPath, f.TargetPath, err)
		}
		if f.Operator != OperatorConstant && f.Operator != OperatorComputed {
			if _, err := parsePath(f.SourcePath); err != nil {
				return fmt.Errorf("%w: source path %q: %v", ErrInvalidPath, f.SourcePath, err)
			}
		}
		switch f.Operator {
		case OperatorDirect, OperatorConstant, OperatorFormat, OperatorMap,
			OperatorLookup, OperatorComputed, OperatorConcat:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownOperator, f.Operator)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mappings[mappingKey{mapping.Source, mapping.Target}] = mapping
	return nil
}

// UnregisterMapping removes the mapping registered for (source, target),
// if any.
func (m *Mapper) UnregisterMapping(source, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mappings, mappingKey{source, target})
}

// HasMapping reports whether a mapping is registered for (source, target).
func (m *Mapper) HasMapping(source, target string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.mappings[mappingKey{source, target}]
	return ok
}

// Validate delegates to the schema mapper (C3).
func (m *Mapper) Validate(document map[string]interface{}, schemaName string) schema.ValidationResult {
	return m.schema.Validate(document, schemaName)
}

// TransformRequest applies the (source, target) mapping to document, per
// spec.md 4.8 step 5. An unregistered mapping returns document unchanged.
func (m *Mapper) TransformRequest(ctx context.Context, document map[string]interface{}, source, target string) (map[string]interface{}, error) {
	return m.apply(ctx, document, source, target, "request")
}

// TransformResponse applies the (source, target) mapping to document, per
// spec.md 4.8 step 8. An unregistered mapping returns document unchanged.
func (m *Mapper) TransformResponse(ctx context.Context, document map[string]interface{}, source, target string) (map[string]interface{}, error) {
	return m.apply(ctx, document, source, target, "response")
}

func (m *Mapper) apply(ctx context.Context, document map[string]interface{}, source, target, direction string) (map[string]interface{}, error) {
	m.mu.RLock()
	mapping, ok := m.mappings[mappingKey{source, target}]
	m.mu.RUnlock()

	ctx, span := transformTracer.Start(ctx, "transform."+direction,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("transform.source", source),
			attribute.String("transform.target", target),
			attribute.Bool("transform.passthrough", !ok),
		),
	)
	defer span.End()

	if !ok {
		return document, nil
	}

	start := time.Now()
	result := make(map[string]interface{})

	for _, field := range mapping.Fields {
		value, err := m.applyOperator(ctx, field, document)
		if err != nil {
			m.metrics.RecordError(direction, "operator")
			return nil, fmt.Errorf("transform %s->%s field %s: %w", source, target, field.TargetPath, err)
		}

		if value == nil {
			if field.Required {
				m.metrics.RecordError(direction, "required")
				return nil, fmt.Errorf("%w: %s", ErrRequiredFieldMissing, field.TargetPath)
			}
			value = field.DefaultValue
		}

		if err := setPath(result, field.TargetPath, value); err != nil {
			m.metrics.RecordError(direction, "path")
			return nil, fmt.Errorf("transform %s->%s field %s: %w", source, target, field.TargetPath, err)
		}
	}

	m.metrics.RecordOperation(direction, "success")
	m.metrics.operationDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
	return result, nil
}

// applyOperator produces the value for a single field mapping.
func (m *Mapper) applyOperator(ctx context.Context, field FieldMapping, source map[string]interface{}) (interface{}, error) {
	switch field.Operator {
	case OperatorDirect:
		value, _ := getPath(source, field.SourcePath)
		return deepCopy(value), nil

	case OperatorConstant:
		return field.OperatorArg, nil

	case OperatorFormat:
		value, _ := getPath(source, field.SourcePath)
		return formatValue(value, field.OperatorArg), nil

	case OperatorMap:
		value, _ := getPath(source, field.SourcePath)
		key := stringify(value)
		if mapped, ok := field.ValueMap[key]; ok {
			return mapped, nil
		}
		return value, nil

	case OperatorLookup:
		value, _ := getPath(source, field.SourcePath)
		key := stringify(value)
		resolved, ok := m.schema.Lookup(ctx, field.OperatorArg, key)
		if !ok {
			return nil, nil
		}
		return resolved, nil

	case OperatorComputed:
		if m.computed == nil {
			return field.OperatorArg, nil
		}
		result, err := m.computed.evaluate(field.OperatorArg, source)
		if err != nil {
			m.logger.Warn("computed expression failed, emitting literal",
				observability.String("expression", field.OperatorArg),
				observability.Error(err))
			return field.OperatorArg, nil
		}
		return result, nil

	case OperatorConcat:
		return expandConcatTemplate(field.OperatorArg, source), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, field.Operator)
	}
}
