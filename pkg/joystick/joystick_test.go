package joystick

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawBytes(t *testing.T, events ...rawEvent) *bytes.Buffer {
	var buf bytes.Buffer
	for _, e := range events {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, e))
	}
	return &buf
}

func TestDecode(t *testing.T) {
	r := rawBytes(t,
		rawEvent{Time: 1000, Value: 1, Type: 0x81, Number: ButtonX},
		rawEvent{Time: 1250, Value: -32767, Type: EventTypeAxis, Number: AxisLStickY},
	)
	var j Joystick
	ev, err := j.decode(r)
	require.NoError(t, err)
	assert.Equal(t, EventType(EventTypeButton), ev.Type, "init flag is masked")
	assert.Equal(t, uint8(ButtonX), ev.Number)
	assert.Equal(t, int16(1), ev.Value)

	ev2, err := j.decode(r)
	require.NoError(t, err)
	assert.Equal(t, EventType(EventTypeAxis), ev2.Type)
	assert.Equal(t, 250*time.Millisecond, ev2.Time.Sub(ev.Time))
	assert.Equal(t, "axis(1)=-32767", ev2.String())

	_, err = j.decode(r)
	assert.ErrorIs(t, err, io.EOF)
}
