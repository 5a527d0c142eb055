package precisetime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachResolutionIsTheTimebaseTick(t *testing.T) {
	res, estimated, err := platformResolution()
	require.NoError(t, err)

	assert.True(t, estimated)
	assert.InDelta(t, machTickNanos*1e-9, res.Seconds(), 1e-15)
	assert.Less(t, res.Seconds(), 1e-7)
}
