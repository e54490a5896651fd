// SPDX-License-Identifier: MPL-2.0

package launch

// State is a step of the launch state machine.
type State int

const (
	StateStart State = iota
	StateDetectForm
	StateBuildClasspath
	StateSelectEntryPoint
	StateExecute
	StateSuccess
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateDetectForm:
		return "detect-form"
	case StateBuildClasspath:
		return "build-classpath"
	case StateSelectEntryPoint:
		return "select-entry-point"
	case StateExecute:
		return "execute"
	case StateSuccess:
		return "success"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateSuccess || s == StateFailure }
