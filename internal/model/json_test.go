package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_ScanValueRoundTrip(t *testing.T) {
	in := JSONMap{"entity_id": "abc", "total": 1500.0, "manual": true}

	raw, err := in.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)
}

func TestJSONMap_ScanNil(t *testing.T) {
	var m JSONMap
	require.NoError(t, m.Scan(nil))
	assert.NotNil(t, m)
	assert.Empty(t, m)
}

func TestJSONMap_ScanUnsupportedType(t *testing.T) {
	var m JSONMap
	assert.Error(t, m.Scan(42))
}

func TestTriggerConfig_ScanValueRoundTrip(t *testing.T) {
	in := TriggerConfig{
		Version: 1,
		Logic:   LogicOr,
		Conditions: []Condition{
			{Field: "status", Operator: OpEquals, Value: "vip"},
			{Field: "total", Operator: OpGreaterThan, Value: 5000.0},
		},
	}

	raw, err := in.Value()
	require.NoError(t, err)

	var out TriggerConfig
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)
}

func TestKnownEnums(t *testing.T) {
	assert.True(t, IsKnownTriggerType(TriggerContractSigned))
	assert.True(t, IsKnownTriggerType(TriggerInvoiceOverdue))
	assert.False(t, IsKnownTriggerType("contract_burned"))

	assert.True(t, IsKnownOperator(OpNotExists))
	assert.False(t, IsKnownOperator("regex"))

	assert.True(t, IsValidWorkflowStatus(WorkflowStatusActive))
	assert.False(t, IsValidWorkflowStatus("paused"))
}
