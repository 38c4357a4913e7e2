// Package tuner is the on-robot tuning overlay.  It steps PID constants up
// and down between motions and renders the pose and tracking wheel readings
// for the screen.
package tuner

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/jemminiz/EZ-Template/pkg/chassis"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
	"github.com/jemminiz/EZ-Template/pkg/pid"
)

// Target is what the overlay reads and tunes; the executor satisfies it.
type Target interface {
	Constants() motion.Constants
	SetConstants(c motion.Constants) error
	Pose() odom.Pose
	TrackerReadings() []chassis.TrackerReading
}

type Tuner struct {
	target Target
	log    *slog.Logger

	lock     sync.Mutex
	tunables Tunables
	enabled  bool
	lastErr  error
}

func New(target Target) *Tuner {
	t := &Tuner{
		target: target,
		log:    log.For("tuner"),
	}
	t.tunables.CreatePID("drive", func(c *motion.Constants) *pid.Constants { return &c.Drive }, false)
	t.tunables.CreatePID("heading", func(c *motion.Constants) *pid.Constants { return &c.Heading }, false)
	t.tunables.CreatePID("turn", func(c *motion.Constants) *pid.Constants { return &c.Turn }, true)
	t.tunables.CreatePID("swing", func(c *motion.Constants) *pid.Constants { return &c.Swing }, false)
	t.tunables.CreatePID("odom drive", func(c *motion.Constants) *pid.Constants { return &c.OdomDrive }, false)
	t.tunables.CreatePID("odom angular", func(c *motion.Constants) *pid.Constants { return &c.OdomAngular }, false)
	return t
}

// Toggle shows or hides the overlay and returns the new state.
func (t *Tuner) Toggle() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.enabled = !t.enabled
	t.lastErr = nil
	t.log.Info("tuner toggled", "enabled", t.enabled)
	return t.enabled
}

func (t *Tuner) Enabled() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.enabled
}

func (t *Tuner) SelectNext() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.tunables.SelectNext()
	t.lastErr = nil
}

func (t *Tuner) SelectPrev() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.tunables.SelectPrev()
	t.lastErr = nil
}

// Selected returns the name and live value of the selected constant.
func (t *Tuner) Selected() (string, float64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	cur := t.tunables.Current()
	return cur.Name, cur.Get(t.target.Constants())
}

func (t *Tuner) Increase() error {
	return t.adjust(1)
}

func (t *Tuner) Decrease() error {
	return t.adjust(-1)
}

func (t *Tuner) adjust(sign float64) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	cur := t.tunables.Current()
	c := t.target.Constants()
	cur.Set(&c, cur.Get(c)+sign*cur.Step)
	if err := t.target.SetConstants(c); err != nil {
		t.lastErr = err
		t.log.Warn("tuning rejected", "constant", cur.Name, "error", err)
		return errors.Wrapf(err, "setting %s", cur.Name)
	}
	t.lastErr = nil
	t.log.Info("tuned", "constant", cur.Name, "value", cur.Get(c))
	return nil
}

// Lines renders the overlay.  The pose and tracker lines are always shown;
// the selected constant only while the overlay is enabled.
func (t *Tuner) Lines() []string {
	t.lock.Lock()
	enabled, lastErr := t.enabled, t.lastErr
	cur := t.tunables.Current()
	index, count := t.tunables.Index(), len(t.tunables.All)
	t.lock.Unlock()

	var lines []string
	if enabled {
		lines = append(lines,
			fmt.Sprintf("%s: %.3g", cur.Name, cur.Get(t.target.Constants())),
			fmt.Sprintf("page %d/%d", index+1, count))
		if lastErr != nil {
			lines = append(lines, "busy: "+lastErr.Error())
		}
	}

	p := t.target.Pose()
	lines = append(lines, fmt.Sprintf("x: %.2f y: %.2f a: %.2f", p.X, p.Y, p.Theta))
	for _, r := range t.target.TrackerReadings() {
		if !r.Present {
			lines = append(lines, fmt.Sprintf("%s tracker: --", r.Name))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s tracker: %.2f  width: %.2f", r.Name, r.Value, r.Width))
	}
	return lines
}

func (t *Tuner) String() string {
	return strings.Join(t.Lines(), "\n")
}
