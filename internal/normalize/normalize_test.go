package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRecord(t *testing.T) {
	line := `{"timestamp": 1.5, "protocol": "modbus", "type": 3, "activity": "request",
		"src": "192.168.0.2:502:1", "dest": "192.168.0.10:502:247",
		"data": {"input.register.1": 120, "coil.0": true}, "malicious": false}`
	obs, err := Bytes([]byte(line))
	require.NoError(t, err)
	require.NotNil(t, obs.Message)
	assert.Equal(t, 1.5, obs.Timestamp)
	assert.Equal(t, "modbus", obs.Message.Protocol)
	assert.Equal(t, "3", obs.Message.Type)
	assert.Equal(t, "request", obs.Message.Activity)
	assert.Equal(t, float64(120), obs.Message.Data["input.register.1"])
	assert.Equal(t, false, obs.Malicious)
}

func TestHeaderInsideData(t *testing.T) {
	obs, err := Bytes([]byte(`{"timestamp": 2, "data": {"protocol": "s7", "type": "read",
		"activity": "response", "src": "a", "dest": "b", "v": 1}}`))
	require.NoError(t, err)
	assert.Equal(t, "s7", obs.Message.Protocol)
	assert.Equal(t, map[string]any{"v": float64(1)}, obs.Message.Data)
}

func TestStateRecordWithNull(t *testing.T) {
	obs, err := Bytes([]byte(`{"timestamp": 3, "state": {"tank": 4.5, "valve": null}}`))
	require.NoError(t, err)
	require.Nil(t, obs.Message)
	require.NotNil(t, obs.State["tank"])
	assert.Equal(t, 4.5, *obs.State["tank"])
	v, ok := obs.State["valve"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestMissingFieldsUseSentinel(t *testing.T) {
	obs, err := Bytes([]byte(`{"protocol": "modbus", "data": {}}`))
	var dataErr *DataError
	require.True(t, errors.As(err, &dataErr))
	assert.ElementsMatch(t, []string{"timestamp", "type", "activity", "src", "dest"}, dataErr.Fields)
	require.NotNil(t, obs.Message)
	assert.Equal(t, Missing, obs.Message.Type)
	assert.Equal(t, "modbus", obs.Message.Protocol)
}

func TestMalformedJSON(t *testing.T) {
	_, err := Bytes([]byte(`{"timestamp":`))
	var dataErr *DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Error(t, dataErr.Err)
	assert.Contains(t, err.Error(), "malformed record")
}
