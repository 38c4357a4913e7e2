package sound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCuePath(t *testing.T) {
	assert.Equal(t, "/sounds/blocked.wav", CuePath("/sounds", CueBlocked))
	assert.Equal(t, "start.wav", CuePath("", CueStart))
}
