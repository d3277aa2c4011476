// Package recorder builds audit records from policy verdicts and execution
// outcomes and appends them on behalf of a host assistant.
//
// Appends are synchronous: a failed append is returned to the caller rather
// than logged and dropped, because silent audit loss defeats the point of
// the trail. Records created by one Recorder share a session ID so related
// commands can be correlated later.
package recorder
