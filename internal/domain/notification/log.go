// internal/domain/notification/log.go
package notification

import (
	"database/sql"
	"errors"
	"time"

	"estirar/internal/domain/senior"
)

// ErrLogNotFound is returned when no log matches the lookup (no open log for a reply,
// no log in the current cycle window, unknown provider message id).
var ErrLogNotFound = errors.New("cycle log not found")

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid log status transition")

// Log is one send attempt of a video to a senior.
// Corresponds to the 'logs' table.
type Log struct {
	ID                int64
	SeniorID          int64
	VideoID           int64
	SentAt            time.Time
	Status            DeliveryStatus
	ProviderMessageID sql.NullString
	ReplyText         sql.NullString
	RepliedAt         sql.NullTime // null while the log is open
	Completed         sql.NullBool
}

// IsOpen reports whether the log still waits for a reply.
func (l *Log) IsOpen() bool {
	return !l.RepliedAt.Valid
}

// IsCompleted reports whether the senior confirmed the exercise.
func (l *Log) IsCompleted() bool {
	return l.Completed.Valid && l.Completed.Bool
}

// LogDetails joins a log with the senior and video it refers to, for dashboards.
type LogDetails struct {
	Log
	PhoneNumber string
	Language    senior.Language
	VideoTitle  string
	VideoURL    string
}
