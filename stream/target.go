package stream

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidTarget is returned by Target.Validate for unusable descriptors.
var ErrInvalidTarget = errors.New("stream: invalid target")

// Role selects which endpoint of a meeting session a connection talks to.
type Role string

const (
	// RoleHost is the producer endpoint that receives audio.
	RoleHost Role = "host"
	// RoleViewer is the consumer endpoint that delivers transcript events.
	RoleViewer Role = "viewer"
)

// DefaultScheme is used when Target.Scheme is empty.
const DefaultScheme = "wss"

// Target identifies one streaming endpoint. It is fully supplied by the
// caller; no host is assumed.
type Target struct {
	Scheme        string // "wss" (default) or "ws"
	Host          string // host[:port]
	Role          Role
	IntegrationID string
	SessionID     string
	Token         string
	Language      string // target language requested from the service
}

// Validate reports whether the target can be dialed.
func (t Target) Validate() error {
	switch {
	case t.scheme() != "ws" && t.scheme() != "wss":
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, t.Scheme)
	case t.Host == "" || strings.ContainsAny(t.Host, "/?#"):
		return fmt.Errorf("%w: bad host %q", ErrInvalidTarget, t.Host)
	case t.Role != RoleHost && t.Role != RoleViewer:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTarget, t.Role)
	case t.IntegrationID == "":
		return fmt.Errorf("%w: missing integration id", ErrInvalidTarget)
	case t.SessionID == "":
		return fmt.Errorf("%w: missing session id", ErrInvalidTarget)
	case t.Token == "":
		return fmt.Errorf("%w: missing token", ErrInvalidTarget)
	}
	return nil
}

// URL returns the WebSocket URL:
// <scheme>://<host>/ws/<role>/<integration>/<session>?token=..&language=..
func (t Target) URL() string {
	u := url.URL{
		Scheme:   t.scheme(),
		Host:     t.Host,
		Path:     "/ws/" + string(t.Role) + "/" + t.IntegrationID + "/" + t.SessionID,
		RawPath:  "/ws/" + url.PathEscape(string(t.Role)) + "/" + url.PathEscape(t.IntegrationID) + "/" + url.PathEscape(t.SessionID),
		RawQuery: t.query().Encode(),
	}
	return u.String()
}

// ArtifactURL returns the HTTP location of the final transcript for the
// session. The scheme follows the socket scheme (wss -> https, ws -> http).
func (t Target) ArtifactURL() string {
	scheme := "https"
	if t.scheme() == "ws" {
		scheme = "http"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     t.Host,
		Path:     "/api/sessions/" + t.IntegrationID + "/" + t.SessionID + "/transcript",
		RawPath:  "/api/sessions/" + url.PathEscape(t.IntegrationID) + "/" + url.PathEscape(t.SessionID) + "/transcript",
		RawQuery: t.query().Encode(),
	}
	return u.String()
}

// Redacted returns the URL with the token removed, for logging.
func (t Target) Redacted() string {
	t.Token = "REDACTED"
	return t.URL()
}

func (t Target) scheme() string {
	if t.Scheme == "" {
		return DefaultScheme
	}
	return strings.ToLower(t.Scheme)
}

func (t Target) query() url.Values {
	q := url.Values{}
	q.Set("token", t.Token)
	if t.Language != "" {
		q.Set("language", t.Language)
	}
	return q
}
