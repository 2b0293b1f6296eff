package xgrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseFullMethod(t *testing.T) {
	service, method, err := ParseFullMethod("/bifrost.telemetry.Telemetry/Snapshot")

	require.NoError(t, err)
	assert.Equal(t, "bifrost.telemetry.Telemetry", service)
	assert.Equal(t, "Snapshot", method)
}

func Test_ParseFullMethodNoLeadingSlash(t *testing.T) {
	service, method, err := ParseFullMethod("bifrost.telemetry.Telemetry/Snapshot")

	require.Error(t, err)
	assert.Equal(t, "", service)
	assert.Equal(t, "", method)
}

func Test_ParseFullMethodNoMethod(t *testing.T) {
	service, method, err := ParseFullMethod("/bifrost.telemetry.Telemetry")

	require.Error(t, err)
	assert.Equal(t, "", service)
	assert.Equal(t, "", method)
}
