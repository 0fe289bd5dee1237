package screen

// OIAState is the keyboard/input-inhibit state shown in the operator
// information area.
type OIAState int

const (
	Unlocked OIAState = iota
	LockedSystemWait
	LockedKeyboardError
	LockedCommunicationsError
)

// Locked reports whether input is inhibited.
func (s OIAState) Locked() bool { return s != Unlocked }

func (s OIAState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case LockedSystemWait:
		return "system wait"
	case LockedKeyboardError:
		return "keyboard error"
	case LockedCommunicationsError:
		return "communications error"
	default:
		return "unknown"
	}
}

// Operator status lines for the standard inhibit states.
const (
	StatusSystemWait = "X - System"
	StatusCommCheck  = "X - Comm"
	StatusProgCheck  = "X - Prog"
)

// OIA is the operator information area: inhibit state, the status line
// explaining it, the message-waiting light and the alarm counter. Like
// Buffer it relies on the session for synchronization.
type OIA struct {
	state   OIAState
	status  string
	message bool
	alarms  int
}

// NewOIA returns an OIA in system-wait state; a session starts locked
// until the host restores the keyboard.
func NewOIA() *OIA {
	return &OIA{state: LockedSystemWait, status: StatusSystemWait}
}

// State returns the inhibit state.
func (o *OIA) State() OIAState { return o.state }

// Status returns the operator status line, empty when unlocked.
func (o *OIA) Status() string { return o.status }

// Lock sets an inhibit state with its status line.
func (o *OIA) Lock(s OIAState, status string) {
	o.state = s
	o.status = status
}

// Unlock restores the keyboard and clears the status line.
func (o *OIA) Unlock() {
	o.state = Unlocked
	o.status = ""
}

// MessageLight reports the message-waiting indicator.
func (o *OIA) MessageLight() bool { return o.message }

// SetMessageLight sets the message-waiting indicator.
func (o *OIA) SetMessageLight(on bool) { o.message = on }

// SoundAlarm counts an audible-alarm request from the host.
func (o *OIA) SoundAlarm() { o.alarms++ }

// Alarms returns the number of alarm requests seen.
func (o *OIA) Alarms() int { return o.alarms }
