package app

// Event names for the presentation layer.
const (
	EventTranscript    = "live-transcript"
	EventLiveState     = "live-state"
	EventDownload      = "download-status"
	EventHostState     = "host-state"
	EventCaptureStatus = "capture-status"
	EventCaptureError  = "capture-error"
	EventActivity      = "voice-activity"
	EventFollowNotice  = "follow-notice"
)

// Emitter delivers a named event to the presentation layer.
type Emitter func(name string, data any)
