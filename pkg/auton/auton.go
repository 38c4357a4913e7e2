// Package auton holds the autonomous routines and the selector used to pick
// one before a match.
package auton

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jemminiz/EZ-Template/pkg/executor"
	"github.com/jemminiz/EZ-Template/pkg/log"
	"github.com/jemminiz/EZ-Template/pkg/motion"
	"github.com/jemminiz/EZ-Template/pkg/odom"
)

// ErrInterrupted is returned by a routine when one of its motions was aborted
// or pre-empted from outside.
var ErrInterrupted = errors.New("routine interrupted")

type Routine interface {
	Run(ctx context.Context, e *executor.Executor) error
}

type RoutineFunc func(ctx context.Context, e *executor.Executor) error

func (f RoutineFunc) Run(ctx context.Context, e *executor.Executor) error {
	return f(ctx, e)
}

type Entry struct {
	Name        string
	Description string
	Routine     Routine
}

// Autonomous resets the pose to the origin and runs r.
func Autonomous(ctx context.Context, e *executor.Executor, r Routine) error {
	logger := log.For("auton")
	e.Abort()
	e.SetPose(odom.Pose{})

	start := time.Now()
	err := r.Run(ctx, e)
	if err != nil {
		logger.Warn("autonomous ended early", "error", err, "duration", time.Since(start), "pose", e.Pose())
		return err
	}
	logger.Info("autonomous finished", "duration", time.Since(start), "pose", e.Pose())
	return nil
}

// Selector cycles through the registered routines.
type Selector struct {
	lock     sync.Mutex
	entries  []Entry
	selected int
}

func NewSelector(entries ...Entry) *Selector {
	return &Selector{entries: entries}
}

func (s *Selector) Add(entries ...Entry) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entries = append(s.entries, entries...)
}

func (s *Selector) Next() Entry {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.selected = (s.selected + 1) % len(s.entries)
	return s.entries[s.selected]
}

func (s *Selector) Prev() Entry {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.selected = (s.selected + len(s.entries) - 1) % len(s.entries)
	return s.entries[s.selected]
}

func (s *Selector) Selected() Entry {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.entries[s.selected]
}

// Select picks the routine with the given name.
func (s *Selector) Select(name string) (Entry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i, e := range s.entries {
		if e.Name == name {
			s.selected = i
			return e, nil
		}
	}
	return Entry{}, errors.Errorf("no routine named %q", name)
}

func (s *Selector) Entries() []Entry {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Lines renders the selector page for the screen.
func (s *Selector) Lines() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	e := s.entries[s.selected]
	return []string{
		fmt.Sprintf("page %d/%d", s.selected+1, len(s.entries)),
		e.Name,
		e.Description,
	}
}

// Run runs the selected routine as the autonomous period.
func (s *Selector) Run(ctx context.Context, e *executor.Executor) error {
	entry := s.Selected()
	log.For("auton").Info("running routine", "name", entry.Name)
	return Autonomous(ctx, e, entry.Routine)
}

// move issues r and waits for it to finish.
func move(ctx context.Context, e *executor.Executor, r motion.Request) (executor.Outcome, error) {
	m, err := e.Issue(r)
	if err != nil {
		return executor.Outcome{}, err
	}
	o, err := m.Wait(ctx)
	if err != nil {
		e.Abort()
		return o, err
	}
	if o.Kind != executor.Completed {
		return o, errors.Wrapf(ErrInterrupted, "%v %v", r, o.Kind)
	}
	return o, nil
}

// moves runs each request in turn.
func moves(ctx context.Context, e *executor.Executor, rs ...motion.Request) error {
	for _, r := range rs {
		if _, err := move(ctx, e, r); err != nil {
			return err
		}
	}
	return nil
}
