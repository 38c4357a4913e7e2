// Package quadrature counts a tracking wheel's quadrature encoder on two GPIO
// pins.
package quadrature

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/jemminiz/EZ-Template/pkg/log"
)

// transitions maps prev<<2|cur, where a state is a<<1|b, to a count step.
// Impossible jumps (both channels changing at once) map to zero and are
// counted as errors.
var transitions = [16]int8{
	0, 1, -1, 0,
	-1, 0, 0, 1,
	1, 0, 0, -1,
	0, -1, 1, 0,
}

// Decoder is the pure quadrature state machine.
type Decoder struct {
	primed bool
	state  uint8
	count  int64
	missed int64
}

// Update feeds the current level of both channels.
func (d *Decoder) Update(a, b bool) {
	var cur uint8
	if a {
		cur |= 2
	}
	if b {
		cur |= 1
	}
	if !d.primed {
		d.state, d.primed = cur, true
		return
	}
	if cur^d.state == 3 {
		d.missed++
	}
	d.count += int64(transitions[d.state<<2|cur])
	d.state = cur
}

func (d *Decoder) Count() int64 {
	return d.count
}

// Missed is the number of transitions where an edge was lost.
func (d *Decoder) Missed() int64 {
	return d.missed
}

var initOnce = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Encoder watches two pins and decodes them.
type Encoder struct {
	a, b gpio.PinIO
	log  *slog.Logger

	lock    sync.Mutex
	decoder Decoder
}

// Open claims the two named pins, e.g. "GPIO5", as pulled-up inputs.
func Open(pins [2]string) (*Encoder, error) {
	if err := initOnce(); err != nil {
		return nil, errors.Wrap(err, "initialising periph")
	}
	e := &Encoder{log: log.For("quadrature").With("pins", pins)}
	for i, name := range pins {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, errors.Errorf("no GPIO pin named %q", name)
		}
		if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return nil, errors.Wrapf(err, "configuring %s", name)
		}
		if i == 0 {
			e.a = p
		} else {
			e.b = p
		}
	}
	e.sample()
	return e, nil
}

func (e *Encoder) sample() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.decoder.Update(e.a.Read() == gpio.High, e.b.Read() == gpio.High)
}

// Loop decodes edges until ctx is cancelled.
func (e *Encoder) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	var pins sync.WaitGroup
	for _, p := range []gpio.PinIO{e.a, e.b} {
		p := p
		pins.Add(1)
		go func() {
			defer pins.Done()
			for ctx.Err() == nil {
				if p.WaitForEdge(100 * time.Millisecond) {
					e.sample()
				}
			}
		}()
	}
	pins.Wait()
	if missed := e.Missed(); missed > 0 {
		e.log.Warn("encoder missed edges", "missed", missed)
	}
}

func (e *Encoder) Count() int64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.decoder.Count()
}

func (e *Encoder) Missed() int64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.decoder.Missed()
}
