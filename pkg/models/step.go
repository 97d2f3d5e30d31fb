package models

// Operation is the kind of automation a step performs.
type Operation string

const (
	OpOpenURL      Operation = "OPEN_URL"
	OpClick        Operation = "CLICK"
	OpInput        Operation = "INPUT"
	OpWait         Operation = "WAIT"
	OpAssertText   Operation = "ASSERT_TEXT"
	OpConfirmModal Operation = "CONFIRM_MODAL"
)

// OperationInfo is the catalog entry shown for an operation.
type OperationInfo struct {
	Operation   Operation `json:"operation"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
}

// Operations is the operation catalog in display order.
var Operations = []OperationInfo{
	{OpOpenURL, "Open Webpage", "Navigates the browser to a specific URL.", "globe"},
	{OpClick, "Click Element", "Simulates a mouse click on a specific UI element.", "mouse-pointer"},
	{OpInput, "Input Text", "Types text into a target input field or text area.", "type"},
	{OpWait, "Wait", "Pauses the execution for a specified amount of milliseconds.", "clock"},
	{OpAssertText, "Assert Text", "Verifies that an element contains specific text.", "check-circle"},
	{OpConfirmModal, "Confirm Modal", "Automatically accepts/confirms a browser alert or popup.", "alert-triangle"},
}

// Info returns the catalog entry for op. Unknown operations get their raw
// name as label.
func (op Operation) Info() OperationInfo {
	for _, info := range Operations {
		if info.Operation == op {
			return info
		}
	}
	return OperationInfo{Operation: op, Label: string(op)}
}

// Label is the display name of the operation.
func (op Operation) Label() string {
	return op.Info().Label
}

// Valid reports whether op is in the catalog.
func (op Operation) Valid() bool {
	for _, info := range Operations {
		if info.Operation == op {
			return true
		}
	}
	return false
}

// TargetsElement reports whether the operation acts on a located element.
func (op Operation) TargetsElement() bool {
	switch op {
	case OpClick, OpInput, OpAssertText:
		return true
	}
	return false
}

// Step is one automation instruction of a workflow. Empty TargetElementID
// and Value mean the field is absent.
type Step struct {
	ID              string    `json:"id"`
	Operation       Operation `json:"operation"`
	TargetElementID string    `json:"targetElementId,omitempty"`
	Value           string    `json:"value,omitempty"`
	Description     string    `json:"description,omitempty"`
}
