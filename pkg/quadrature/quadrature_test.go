package quadrature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Gray code sequence for forward rotation, as (a, b).
var forward = [][2]bool{{false, false}, {false, true}, {true, true}, {true, false}}

func TestDecoderCountsBothWays(t *testing.T) {
	var d Decoder
	d.Update(false, false)
	for i := 0; i < 3; i++ {
		for _, s := range forward[1:] {
			d.Update(s[0], s[1])
		}
		d.Update(false, false)
	}
	assert.Equal(t, int64(12), d.Count())

	for i := 0; i < 2; i++ {
		for j := len(forward) - 1; j >= 0; j-- {
			d.Update(forward[j][0], forward[j][1])
		}
	}
	assert.Equal(t, int64(4), d.Count())
	assert.Zero(t, d.Missed())
}

func TestDecoderFirstSampleOnlyPrimes(t *testing.T) {
	var d Decoder
	d.Update(true, true)
	assert.Zero(t, d.Count())
	d.Update(true, false)
	assert.Equal(t, int64(1), d.Count())
}

func TestDecoderRepeatsAndMissedEdges(t *testing.T) {
	var d Decoder
	d.Update(false, false)
	d.Update(false, false)
	assert.Zero(t, d.Count())

	d.Update(true, true)
	assert.Zero(t, d.Count())
	assert.Equal(t, int64(1), d.Missed())
}
