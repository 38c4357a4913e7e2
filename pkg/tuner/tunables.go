package tuner

import (
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/pid"
)

// Tunable is one PID constant that can be stepped up and down.
type Tunable struct {
	Name  string
	Step  float64
	field func(c *motion.Constants) *float64
}

func (t *Tunable) Get(c motion.Constants) float64 {
	return *t.field(&c)
}

// Set writes v into c, never going below zero.
func (t *Tunable) Set(c *motion.Constants, v float64) {
	*t.field(c) = max(v, 0)
}

type Tunables struct {
	All      []*Tunable
	selected int
}

func (t *Tunables) Create(name string, step float64, field func(c *motion.Constants) *float64) *Tunable {
	newTunable := &Tunable{
		Name:  name,
		Step:  step,
		field: field,
	}
	t.All = append(t.All, newTunable)
	return newTunable
}

// CreatePID adds the gains of one controller role.
func (t *Tunables) CreatePID(role string, k func(c *motion.Constants) *pid.Constants, withStartI bool) {
	t.Create(role+" kp", 0.5, func(c *motion.Constants) *float64 { return &k(c).KP })
	t.Create(role+" ki", 0.1, func(c *motion.Constants) *float64 { return &k(c).KI })
	t.Create(role+" kd", 0.05, func(c *motion.Constants) *float64 { return &k(c).KD })
	if withStartI {
		t.Create(role+" start i", 1, func(c *motion.Constants) *float64 { return &k(c).StartI })
	}
}

func (t *Tunables) SelectNext() {
	t.selected++
	if t.selected >= len(t.All) {
		t.selected = 0
	}
}

func (t *Tunables) SelectPrev() {
	t.selected--
	if t.selected < 0 {
		t.selected = len(t.All) - 1
	}
}

func (t *Tunables) Current() *Tunable {
	return t.All[t.selected]
}

func (t *Tunables) Index() int {
	return t.selected
}
