package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avapigw/internal/schema"
)

func TestMapper_RegisterMapping_RejectsInvalidPaths(t *testing.T) {
	m := New(schema.New())

	err := m.RegisterMapping(SchemaMapping{
		Source: "a",
		Target: "b",
		Fields: []FieldMapping{
			{SourcePath: "name", TargetPath: "$.name", Operator: OperatorDirect},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMapper_RegisterMapping_RejectsUnknownOperator(t *testing.T) {
	m := New(schema.New())

	err := m.RegisterMapping(SchemaMapping{
		Source: "a",
		Target: "b",
		Fields: []FieldMapping{
			{SourcePath: "$.name", TargetPath: "$.name", Operator: "bogus"},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestMapper_HasMapping(t *testing.T) {
	m := New(schema.New())
	assert.False(t, m.HasMapping("a", "b"))

	require.NoError(t, m.RegisterMapping(SchemaMapping{Source: "a", Target: "b"}))
	assert.True(t, m.HasMapping("a", "b"))

	m.UnregisterMapping("a", "b")
	assert.False(t, m.HasMapping("a", "b"))
}

func TestMapper_TransformRequest_Passthrough(t *testing.T) {
	m := New(schema.New())
	doc := map[string]interface{}{"a": 1}

	result, err := m.TransformRequest(context.Background(), doc, "x", "y")
	require.NoError(t, err)
	assert.Equal(t, doc, result)
}

func TestMapper_Direct(t *testing.T) {
	m := New(schema.New())
	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{SourcePath: "$.name", TargetPath: "$.name", Operator: OperatorDirect},
		},
	}))

	result, err := m.TransformRequest(context.Background(), map[string]interface{}{"name": "widget"}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "widget", result["name"])
}

func TestMapper_Constant(t *testing.T) {
	m := New(schema.New())
	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{TargetPath: "$.kind", Operator: OperatorConstant, OperatorArg: "project"},
		},
	}))

	result, err := m.TransformRequest(context.Background(), map[string]interface{}{}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "project", result["kind"])
}

func TestMapper_Map(t *testing.T) {
	m := New(schema.New())
	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{
				SourcePath: "$.status", TargetPath: "$.statuscode", Operator: OperatorMap,
				ValueMap: map[string]string{"Active": "1", "Inactive": "0"},
			},
		},
	}))

	result, err := m.TransformRequest(context.Background(), map[string]interface{}{"status": "Active"}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "1", result["statuscode"])
}

func TestMapper_Map_PassesThroughOnMiss(t *testing.T) {
	m := New(schema.New())
	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{
				SourcePath: "$.status", TargetPath: "$.statuscode", Operator: OperatorMap,
				ValueMap: map[string]string{"Active": "1"},
			},
		},
	}))

	result, err := m.TransformRequest(context.Background(), map[string]interface{}{"status": "Archived"}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "Archived", result["statuscode"])
}

func TestMapper_Lookup(t *testing.T) {
	sm := schema.New()
	sm.RegisterLookupTable("erp_customer_ids", schema.LookupTable{"CUST001": "account-guid-001"})
	m := New(sm)

	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{SourcePath: "$.customerId", TargetPath: "$.customerid", Operator: OperatorLookup, OperatorArg: "erp_customer_ids"},
		},
	}))

	result, err := m.TransformRequest(context.Background(), map[string]interface{}{"customerId": "CUST001"}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "account-guid-001", result["customerid"])
}

func TestMapper_Lookup_MissReturnsNil(t *testing.T) {
	m := New(schema.New())
	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{SourcePath: "$.customerId", TargetPath: "$.customerid", Operator: OperatorLookup, OperatorArg: "erp_customer_ids"},
		},
	}))

	result, err := m.TransformRequest(context.Background(), map[string]interface{}{"customerId": "CUST999"}, "a", "b")
	require.NoError(t, err)
	assert.Nil(t, result["customerid"])
}

func TestMapper_Concat(t *testing.T) {
	m := New(schema.New())
	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{TargetPath: "$.label", Operator: OperatorConcat, OperatorArg: "$.first-$.last"},
		},
	}))

	result, err := m.TransformRequest(context.Background(), map[string]interface{}{"first": "P", "last": "1"}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "P-1", result["label"])
}

func TestMapper_Computed(t *testing.T) {
	m := New(schema.New())
	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{TargetPath: "$.active", Operator: OperatorComputed, OperatorArg: `source.status == "Active"`},
		},
	}))

	result, err := m.TransformRequest(context.Background(), map[string]interface{}{"status": "Active"}, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, true, result["active"])
}

func TestMapper_Required_MissingProducesError(t *testing.T) {
	m := New(schema.New())
	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "a", Target: "b",
		Fields: []FieldMapping{
			{SourcePath: "$.missing", TargetPath: "$.out", Operator: OperatorDirect, Required: true},
		},
	}))

	_, err := m.TransformRequest(context.Background(), map[string]interface{}{}, "a", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequiredFieldMissing)
}

func TestMapper_ERPToCRMProjectMapping(t *testing.T) {
	sm := schema.New()
	sm.RegisterLookupTable("erp_customer_ids", schema.LookupTable{"CUST001": "account-guid-001"})
	m := New(sm)

	require.NoError(t, m.RegisterMapping(SchemaMapping{
		Source: "erp.project",
		Target: "crm.project",
		Fields: []FieldMapping{
			{SourcePath: "$.projectNumber", TargetPath: "$.name", Operator: OperatorDirect},
			{
				SourcePath: "$.status", TargetPath: "$.statuscode", Operator: OperatorMap,
				ValueMap: map[string]string{"Active": "1", "Inactive": "0"},
			},
			{SourcePath: "$.customerId", TargetPath: "$.customerid", Operator: OperatorLookup, OperatorArg: "erp_customer_ids"},
		},
	}))

	input := map[string]interface{}{
		"projectNumber": "P-1",
		"status":        "Active",
		"customerId":    "CUST001",
	}

	result, err := m.TransformRequest(context.Background(), input, "erp.project", "crm.project")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":       "P-1",
		"statuscode": "1",
		"customerid": "account-guid-001",
	}, result)
}

func TestMapper_Validate_DelegatesToSchema(t *testing.T) {
	sm := schema.New()
	m := New(sm)

	result := m.Validate(map[string]interface{}{"a": 1}, "unregistered-schema")
	assert.True(t, result.Valid)
}
