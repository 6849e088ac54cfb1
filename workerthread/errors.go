package workerthread

import (
	"errors"
)

var (
	// ErrAlreadyRunning is returned by [WorkerThread.Start] if the thread is
	// already running.
	ErrAlreadyRunning = errors.New(`workerthread: already running`)

	// ErrNilHandler is returned by [WorkerThread.Start] if the handler is
	// nil.
	ErrNilHandler = errors.New(`workerthread: nil handler`)
)
