// Package types provides shared type definitions for the application.
package types

import "time"

// LiveStatus represents the status of a viewer or host connection.
type LiveStatus struct {
	Active       bool      `json:"active"`
	Role         string    `json:"role"`
	SessionID    string    `json:"sessionId"`
	State        string    `json:"state"`      // connecting, connected, disconnected, waiting, ended
	EntryCount   int       `json:"entryCount"` // Number of transcript entries
	Downloadable bool      `json:"downloadable"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
}

// CaptureStatus represents the state of audio capture on the host side.
type CaptureStatus struct {
	Connected   bool   `json:"connected"`
	Mode        string `json:"mode"` // "", mic, system, both
	Device      string `json:"device,omitempty"`
	Muted       bool   `json:"muted"`
	Initialized bool   `json:"initialized"`
	KeepAlive   bool   `json:"keepAlive"`
	Speaking    bool   `json:"speaking"`
	Recording   string `json:"recording,omitempty"` // WAV path when recording
}

// DetectResult represents the result of language detection.
type DetectResult struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Artifact is a downloaded final transcript.
type Artifact struct {
	SessionID   string    `json:"sessionId"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"data"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Cached      bool      `json:"cached"`
}

// CaptureError is emitted when capture could not start.
type CaptureError struct {
	Selection string `json:"selection"`
	Message   string `json:"message"`
}
