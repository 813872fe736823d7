package transfer

// ValidationCompletedEvent is published when the validation phase reaches a
// terminal state (Validated or Error). Delivered best-effort through the
// event bus to notification subscribers.
type ValidationCompletedEvent struct {
	Result *Transfer
}

// ImportCompletedEvent is published when the commit phase reaches a terminal
// state (Created or Error).
type ImportCompletedEvent struct {
	Result *Transfer
}

func NewValidationCompletedEvent(result *Transfer) *ValidationCompletedEvent {
	return &ValidationCompletedEvent{Result: result}
}

func NewImportCompletedEvent(result *Transfer) *ImportCompletedEvent {
	return &ImportCompletedEvent{Result: result}
}
