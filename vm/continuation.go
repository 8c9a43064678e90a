// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package vm

import "github.com/probechain/probe-lang/state"

// CallK calls the value at funcSlot with an optional continuation k. If
// k is non-nil and the whole call chain currently permits yielding
// (Nny == 0), the continuation and ctx are stashed on the calling frame
// (the current call-info) and the call runs with yielding allowed; the
// scheduler invokes k in place of a normal return if a yield actually
// propagates up through this frame. With no continuation, or a chain
// that forbids yielding, the call simply runs non-yieldably.
func CallK(t *state.Thread, funcSlot, nresults, ctx int, k state.ContinuationFunc) error {
	if k != nil && t.Nny == 0 {
		ci := t.CurrentCI()
		ci.Continuation, ci.Ctx = k, ctx
		if err := Call(t, funcSlot, nresults, true); err != nil {
			return err
		}
		// A continuation is only consulted by the resume-side scheduler
		// after an actual yield unwound through this frame; a call that
		// simply returns never touches k, matching direct-return calls
		// that happen to carry an unused continuation.
		return nil
	}
	return Call(t, funcSlot, nresults, false)
}

// PCallK is CallK with an additional error-recovery boundary: it marks
// the calling frame as a yieldable-protected landing pad *before*
// invoking the callee, so a yield that unwinds through the callee (via
// panic, never returning to this function) still leaves the flag
// findProtected later searches for in place, then installs errFunc as
// the active error handler for the duration of the call.
func PCallK(t *state.Thread, funcSlot, nresults, errFunc, ctx int, k state.ContinuationFunc) state.Status {
	oldTop := funcSlot
	return PCall(t, func() error {
		markYieldableProtected(t, t.CurrentCI(), t.ErrFunc, t.AllowHook)
		return CallK(t, funcSlot, nresults, ctx, k)
	}, oldTop, errFunc)
}

func markYieldableProtected(t *state.Thread, ci *state.CallInfo, savedErrFunc int, savedAllowHook bool) {
	ci.Status |= state.CIStatusYieldableProtected
	ci.OldErrFunc = savedErrFunc
	ci.OldAllowHook = savedAllowHook
}
