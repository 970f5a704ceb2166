package domain

import "errors"

// ErrTranscriptUnavailable is returned by a VoiceProvider when the remote
// session history cannot be read (unknown session, non-success status).
// It is distinct from a transport failure.
var ErrTranscriptUnavailable = errors.New("transcript unavailable")

// ErrNotFound is returned by stores for unknown records.
var ErrNotFound = errors.New("not found")
