package types

import "encoding/json"

// Intent names accepted over the renderer bridge.
const (
	IntentRequestVisibility       = "window:requestVisibility"
	IntentToggleAllVisibility     = "window:requestToggleAllWindowsVisibility"
	IntentMoveToDisplay           = "window:moveToDisplay"
	IntentMoveToEdge              = "window:moveToEdge"
	IntentMoveStep                = "window:moveStep"
	IntentResizeHeaderWindow      = "window:resizeHeaderWindow"
	IntentAdjustWindowHeight      = "window:adjustWindowHeight"
	IntentMoveHeaderTo            = "window:moveHeaderTo"
	IntentGetHeaderPosition       = "window:getHeaderPosition"
	IntentHeaderAnimationFinished = "window:headerAnimationFinished"
)

// IntentMessage is the envelope for a renderer intent. Payload shape
// depends on Type.
type IntentMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IntentReply is the envelope for a host reply to a request/reply
// intent or an error acknowledgment.
type IntentReply struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// VisibilityPayload carries window:requestVisibility.
type VisibilityPayload struct {
	Name    WindowName `json:"name"`
	Visible bool       `json:"visible"`
}

// ToggleAllPayload carries window:requestToggleAllWindowsVisibility.
// A nil TargetVisibility toggles based on the header's current state.
type ToggleAllPayload struct {
	TargetVisibility *bool `json:"targetVisibility,omitempty"`
}

// MoveToDisplayPayload carries window:moveToDisplay.
type MoveToDisplayPayload struct {
	DisplayID int `json:"displayId"`
}

// DirectionPayload carries window:moveToEdge and window:moveStep.
type DirectionPayload struct {
	Direction Direction `json:"direction"`
}

// ResizeHeaderPayload carries window:resizeHeaderWindow.
type ResizeHeaderPayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AdjustHeightPayload carries window:adjustWindowHeight and the
// renderer-side content-fit resize signal.
type AdjustHeightPayload struct {
	WinName      WindowName `json:"winName"`
	TargetHeight int        `json:"targetHeight"`
}

// MoveHeaderToPayload carries window:moveHeaderTo.
type MoveHeaderToPayload struct {
	NewX int `json:"newX"`
	NewY int `json:"newY"`
}

// HeaderAnimationPayload carries window:headerAnimationFinished.
type HeaderAnimationPayload struct {
	State string `json:"state"`
}
