package domain

import "errors"

var (
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrInvalidPayout   = errors.New("invalid payout: division by zero")
	ErrConnection      = errors.New("broker connection failed")
	ErrNotConnected    = errors.New("broker not connected")
	ErrOutcomeTimeout  = errors.New("outcome timeout")
	ErrSequenceTimeout = errors.New("sequence timeout")
	ErrTradeRejected   = errors.New("trade rejected by broker")
	ErrSourceExhausted = errors.New("signal source exhausted")
	ErrSessionNotFound = errors.New("session not found")
	ErrStopped         = errors.New("orchestrator stopped")
)
