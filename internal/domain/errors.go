package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrNotConnected = errors.New("not connected")
	ErrContextDone  = errors.New("context cancelled")
)
