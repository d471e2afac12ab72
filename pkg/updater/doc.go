// Package updater runs background callables that mutate one element over
// time.
//
// Four shapes are accepted:
//
//	Func      func(*tree.Element)
//	Steps     func(*tree.Element) iter.Seq[any]
//	Task      func(context.Context, *tree.Element) error
//	TaskSteps func(context.Context, *tree.Element) iter.Seq2[any, error]
//
// Func and Steps get a goroutine each; values yielded by Steps are
// discarded. Task and TaskSteps share a single cooperative scheduler
// goroutine: a TaskSteps unit is pulled one item at a time and units are
// resumed round-robin. Yielding a time.Duration parks the unit for that long
// without holding up the others.
//
// A failing unit terminates alone. Close cancels every unit still running;
// cancelled units exit with ErrCancelled, exhausted units with nil.
package updater
