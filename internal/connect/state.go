package connect

// State is where one tool call's account connection stands.
type State int

const (
	// Idle shows no affordance: there is no usable link or no identity
	// allowed to connect.
	Idle State = iota
	AwaitingUserAction
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingUserAction:
		return "awaiting_user_action"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}
