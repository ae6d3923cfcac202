package domain

// Signal is the ephemeral result of one analyzer evaluation. It is produced
// per call and never persisted.
type Signal struct {
	Action Action

	// Reason is a free-text justification recorded in logs and notifications.
	Reason string

	// TargetPrice is an optional advisory exit price; zero when not set.
	TargetPrice float64

	// Indicators maps indicator names to their formatted current state, used
	// only for status reporting. It is populated even when the action was
	// forced to HOLD by a guard.
	Indicators map[string]string
}

// HoldSignal builds a HOLD signal with the given reason.
func HoldSignal(reason string) Signal {
	return Signal{Action: ActionHold, Reason: reason}
}
