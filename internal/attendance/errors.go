package attendance

import (
	"errors"
	"fmt"

	"qrattendance/internal/apperr"
)

var (
	errSessionNotFound = apperr.NotFound("session not found")
	// same error for unknown and expired tokens
	errTokenNotFound   = apperr.NotFound("token not found or expired")
	errStudentNotFound = apperr.NotFound("student not found")

	errRoomConflict    = apperr.Conflict("room_conflict", "room is already booked for an overlapping time window")
	errAlreadyRecorded = apperr.Conflict("already_recorded", "attendance already recorded for this session")

	errTokenCollision  = errors.New("session token collision")
	errDuplicateRecord = errors.New("duplicate attendance record")
)

// RoomConflictError is returned when a session overlaps another session in
// the same room on the same date. SessionID is empty when the conflict was
// detected by the storage constraint rather than the pre-check.
type RoomConflictError struct {
	SessionID string
}

func (e *RoomConflictError) Error() string {
	if e.SessionID == "" {
		return errRoomConflict.Message
	}
	return fmt.Sprintf("%s (session %s)", errRoomConflict.Message, e.SessionID)
}

func (e *RoomConflictError) Unwrap() error { return errRoomConflict }

// AlreadyRecordedError carries the record that already exists for the
// (session, student) pair.
type AlreadyRecordedError struct {
	Prior Record
}

func (e *AlreadyRecordedError) Error() string {
	return fmt.Sprintf("%s: %s at %s", errAlreadyRecorded.Message, e.Prior.Status, e.Prior.ScannedAt.Format("15:04:05"))
}

func (e *AlreadyRecordedError) Unwrap() error { return errAlreadyRecorded }

// Details exposes the conflicting session in the error body.
func (e *RoomConflictError) Details() map[string]any {
	if e.SessionID == "" {
		return nil
	}
	return map[string]any{"conflictingSessionId": e.SessionID}
}

// Details exposes the prior outcome so a client can show the first scan.
func (e *AlreadyRecordedError) Details() map[string]any {
	return map[string]any{
		"sessionId": e.Prior.SessionID,
		"status":    e.Prior.Status,
		"scanTime":  e.Prior.ScannedAt,
	}
}
