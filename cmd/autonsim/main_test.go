package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuffixed(t *testing.T) {
	assert.Equal(t, "out-drive-and-turn-slow.png", suffixed("out.png", "Drive and Turn, slow"))
	assert.Equal(t, "/tmp/a.b/run-odom.svg", suffixed("/tmp/a.b/run.svg", "Odom"))
	assert.Equal(t, "plot-combine-all-3-movements", suffixed("plot", "Combine all 3 movements"))
}
