// Package script runs user-supplied Lua rules over pipeline decisions.
//
// A rule is a Lua chunk defining a global function
//
//	function adjust(key, pressed, decision)
//
// that may mutate the decision table. Rules run in a sandboxed state
// with no file system or process access, and a faulting rule leaves
// the decision unchanged.
package script

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keyrush/internal/rapid"
)

// adjustFn is the global function a rule must define.
const adjustFn = "adjust"

// ErrRuleClosed is returned when a closed rule is applied.
var ErrRuleClosed = errors.New("script: rule closed")

// Rule is a compiled Lua decision rule. Safe for concurrent use; calls
// into the shared Lua state are serialized.
type Rule struct {
	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

// NewRule compiles a rule from Lua source. The source must define the
// adjust function at the top level.
func NewRule(source string) (*Rule, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	sandbox(L)

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("script: compiling rule: %w", err)
	}

	fn := L.GetGlobal(adjustFn)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("script: rule does not define function %q", adjustFn)
	}

	return &Rule{state: L}, nil
}

// openSafeLibraries opens only the side-effect-free standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes the load family from base so a rule cannot smuggle
// code in at run time. io, os, debug, and package are never opened.
func sandbox(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Apply runs the rule over one decision. On error the decision is left
// exactly as the engines produced it.
func (r *Rule) Apply(name string, pressed bool, d *rapid.Decision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuleClosed
	}

	L := r.state
	tbl := decisionToTable(L, d)

	err := r.callWithRecovery(func() error {
		return L.CallByParam(lua.P{
			Fn:      L.GetGlobal(adjustFn),
			NRet:    0,
			Protect: true,
		}, lua.LString(name), lua.LBool(pressed), tbl)
	})
	if err != nil {
		return fmt.Errorf("script: applying rule: %w", err)
	}

	tableToDecision(L, tbl, d)
	return nil
}

// callWithRecovery shields against panics escaping the Lua runtime.
func (r *Rule) callWithRecovery(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lua panic: %v", rec)
		}
	}()
	return fn()
}

// Close releases the Lua state. Safe to call more than once.
func (r *Rule) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.state.Close()
}

// decisionToTable exposes the decision as a Lua table.
func decisionToTable(L *lua.LState, d *rapid.Decision) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "should_process", lua.LBool(d.ShouldProcess))
	L.SetField(tbl, "should_actuate", lua.LBool(d.ShouldActuate))
	L.SetField(tbl, "response_multiplier", lua.LNumber(d.ResponseMultiplier))
	L.SetField(tbl, "opposite_release", lua.LString(d.OppositeRelease))
	if d.ResetDelaySet {
		L.SetField(tbl, "reset_delay_ms", lua.LNumber(float64(d.ResetDelay)/float64(time.Millisecond)))
	}
	return tbl
}

// tableToDecision folds the (possibly mutated) table back into the
// decision. Fields with unexpected types are ignored.
func tableToDecision(L *lua.LState, tbl *lua.LTable, d *rapid.Decision) {
	if v, ok := L.GetField(tbl, "should_process").(lua.LBool); ok {
		d.ShouldProcess = bool(v)
	}
	if v, ok := L.GetField(tbl, "should_actuate").(lua.LBool); ok {
		d.ShouldActuate = bool(v)
	}
	if v, ok := L.GetField(tbl, "response_multiplier").(lua.LNumber); ok {
		d.ResponseMultiplier = float64(v)
	}
	if v, ok := L.GetField(tbl, "opposite_release").(lua.LString); ok {
		d.OppositeRelease = string(v)
	}
	if v, ok := L.GetField(tbl, "reset_delay_ms").(lua.LNumber); ok {
		d.ResetDelay = time.Duration(float64(v) * float64(time.Millisecond))
		d.ResetDelaySet = true
	}
}
