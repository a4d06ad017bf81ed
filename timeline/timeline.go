// Package timeline replays scripted privilege and trap scenarios
// against a hart in virtual time, using the Akita event-driven
// simulation engine to order interrupt arrival, instruction steps, and
// trap returns.
package timeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvsim/priv"
)

// Action is one scripted scenario step, scheduled at a virtual time.
type Action struct {
	// Time is the virtual time in seconds at which the action fires.
	Time float64 `json:"time"`

	// Op selects the action: "interrupt", "clear", "step",
	// "exception", "csr_read", "csr_write", "mret", or "sret".
	Op string `json:"op"`

	// Code is the interrupt or exception code for "interrupt",
	// "clear", and "exception".
	Code uint64 `json:"code,omitempty"`

	// CSR is the register address for "csr_read" and "csr_write".
	CSR uint16 `json:"csr,omitempty"`

	// Value is the value for "csr_write".
	Value uint64 `json:"value,omitempty"`

	// PC is the program counter for "step" and "exception".
	PC uint64 `json:"pc,omitempty"`

	// Tval is the auxiliary trap value for "exception".
	Tval uint64 `json:"tval,omitempty"`
}

// Record is one line of replay output.
type Record struct {
	Time float64
	Text string
}

// Timeline schedules scenario actions on a simulation engine and
// applies them to a hart in virtual-time order.
type Timeline struct {
	engine  sim.Engine
	hart    *priv.Hart
	records []Record

	// err holds the first action failure. The engine does not
	// propagate handler errors, so Run reports it after the fact.
	err error
}

// New creates a Timeline driving the given hart on a serial engine.
func New(hart *priv.Hart) *Timeline {
	return &Timeline{
		engine: sim.NewSerialEngine(),
		hart:   hart,
	}
}

// actionEvent carries one Action through the engine.
type actionEvent struct {
	*sim.EventBase
	action Action
}

// Add schedules one action.
func (t *Timeline) Add(a Action) {
	t.engine.Schedule(actionEvent{
		EventBase: sim.NewEventBase(sim.VTimeInSec(a.Time), t),
		action:    a,
	})
}

// Load reads a JSON scenario file and schedules every action in it.
func (t *Timeline) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read scenario file")
	}

	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return errors.Wrap(err, "failed to parse scenario file")
	}

	for _, a := range actions {
		t.Add(a)
	}
	return nil
}

// Run replays all scheduled actions in virtual-time order. It fails
// on the first action that could not be applied.
func (t *Timeline) Run() error {
	if err := t.engine.Run(); err != nil {
		return err
	}
	return t.err
}

// Records returns the replay output collected so far.
func (t *Timeline) Records() []Record {
	return t.records
}

// Handle applies one scheduled action to the hart.
func (t *Timeline) Handle(e sim.Event) error {
	evt, ok := e.(actionEvent)
	if !ok {
		return t.fail(errors.Errorf("unexpected event type %T", e))
	}

	a := evt.action
	r := t.hart.RegFile()

	switch a.Op {
	case "interrupt":
		r.MIP |= 1 << a.Code
		t.record(a.Time, "interrupt %d pending", a.Code)
	case "clear":
		r.MIP &^= 1 << a.Code
		t.record(a.Time, "interrupt %d cleared", a.Code)
	case "step":
		if entry, taken := t.hart.CheckInterrupt(a.PC); taken {
			t.record(a.Time, "step pc=%#x: trap to %s entry=%#x",
				a.PC, r.Priv, entry)
		} else {
			t.record(a.Time, "step pc=%#x: no interrupt", a.PC)
		}
	case "exception":
		entry := t.hart.RaiseException(priv.TrapContext{
			Code: a.Code,
			PC:   a.PC,
			Tval: a.Tval,
		})
		t.record(a.Time, "exception %d pc=%#x: trap to %s entry=%#x",
			a.Code, a.PC, r.Priv, entry)
	case "csr_read":
		v, err := t.hart.ReadCSR(priv.CSR(a.CSR))
		if err != nil {
			t.record(a.Time, "csr read %#03x: denied", a.CSR)
		} else {
			t.record(a.Time, "csr read %#03x = %#x", a.CSR, v)
		}
	case "csr_write":
		if err := t.hart.WriteCSR(priv.CSR(a.CSR), a.Value); err != nil {
			t.record(a.Time, "csr write %#03x: denied", a.CSR)
		} else {
			t.record(a.Time, "csr write %#03x = %#x", a.CSR, a.Value)
		}
	case "mret":
		t.applyRet(a, priv.ExitMRET)
	case "sret":
		t.applyRet(a, priv.ExitSRET)
	default:
		return t.fail(errors.Errorf("unknown scenario op %q", a.Op))
	}

	return nil
}

// fail records the first failure for Run and passes the error through
// to the engine.
func (t *Timeline) fail(err error) error {
	if t.err == nil {
		t.err = err
	}
	return err
}

func (t *Timeline) applyRet(a Action, kind priv.TrapExitKind) {
	name := "mret"
	if kind == priv.ExitSRET {
		name = "sret"
	}

	target, err := t.hart.Dispatch(priv.TrapExit{Kind: kind})
	if err != nil {
		t.record(a.Time, "%s: denied", name)
		return
	}
	t.record(a.Time, "%s: priv=%s target=%#x",
		name, t.hart.Priv(), target)
}

func (t *Timeline) record(time float64, format string, args ...any) {
	t.records = append(t.records, Record{
		Time: time,
		Text: fmt.Sprintf(format, args...),
	})
}
