package status_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrost-project/bifrost/status"
)

func TestErrorIsKind(t *testing.T) {
	err := status.New("ring.Reserve", status.Overrun, nil)

	assert.True(t, errors.Is(err, status.Overrun))
	assert.False(t, errors.Is(err, status.Timeout))
}

func TestErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("socket closed")
	err := status.New("capture.Recv", status.NoData, cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, status.NoData, status.KindOf(err))
	assert.Contains(t, err.Error(), "capture.Recv")
	assert.Contains(t, err.Error(), "no_data")
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, status.Internal, status.KindOf(errors.New("opaque")))
}
