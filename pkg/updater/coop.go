package updater

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/livetree-dev/livetree/pkg/tree"
)

// coUnit is a unit resumed by the cooperative loop.
type coUnit struct {
	element *tree.Element
	next    func() (any, error, bool)
	stop    func()
	wake    time.Time
}

func (s *Scheduler) admit(u unit) *coUnit {
	seq := u.tsteps
	if seq == nil {
		task := u.task
		seq = func(ctx context.Context, e *tree.Element) iter.Seq2[any, error] {
			return func(yield func(any, error) bool) {
				if err := task(ctx, e); err != nil {
					yield(nil, err)
				}
			}
		}
	}
	next, stop := iter.Pull2(seq(s.ctx, u.element))
	return &coUnit{element: u.element, next: next, stop: stop}
}

// loop is the cooperative scheduler. Ready units are resumed one step at a
// time in round-robin order; parked units wait for their wake time.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	var ready, parked []*coUnit
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		if s.ctx.Err() != nil {
			s.cancelAll(append(ready, parked...))
			return
		}

		// Admit new units without blocking.
	admit:
		for {
			select {
			case u := <-s.coop:
				ready = append(ready, s.admit(u))
			default:
				break admit
			}
		}

		now := time.Now()
		parked = slices.DeleteFunc(parked, func(cu *coUnit) bool {
			if !cu.wake.After(now) {
				ready = append(ready, cu)
				return true
			}
			return false
		})

		if len(ready) == 0 {
			var wakeC <-chan time.Time
			if len(parked) > 0 {
				earliest := parked[0].wake
				for _, cu := range parked[1:] {
					if cu.wake.Before(earliest) {
						earliest = cu.wake
					}
				}
				timer.Reset(time.Until(earliest))
				wakeC = timer.C
			}
			select {
			case u := <-s.coop:
				ready = append(ready, s.admit(u))
			case <-wakeC:
			case <-s.ctx.Done():
			}
			timer.Stop()
			continue
		}

		cu := ready[0]
		ready = ready[1:]
		if s.step(cu) {
			continue
		}
		if cu.wake.IsZero() {
			ready = append(ready, cu)
		} else {
			parked = append(parked, cu)
		}
	}
}

// step resumes cu once and reports whether it finished.
func (s *Scheduler) step(cu *coUnit) bool {
	var (
		v   any
		err error
		ok  bool
	)
	if perr := s.protect(func() error {
		v, err, ok = cu.next()
		return nil
	}); perr != nil {
		s.exit(cu.element, perr)
		return true
	}
	if !ok || err != nil {
		cu.stop()
		s.exit(cu.element, err)
		return true
	}
	cu.wake = time.Time{}
	if d, isDelay := v.(time.Duration); isDelay && d > 0 {
		cu.wake = time.Now().Add(d)
	}
	return false
}

func (s *Scheduler) cancelAll(units []*coUnit) {
	for _, cu := range units {
		_ = s.protect(func() error {
			cu.stop()
			return nil
		})
		s.exit(cu.element, ErrCancelled)
	}
	for {
		select {
		case u := <-s.coop:
			s.exit(u.element, ErrCancelled)
		default:
			return
		}
	}
}
