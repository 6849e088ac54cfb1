// Package workerthread implements a long-lived goroutine that processes
// instructions, of a caller-defined type, sent through a mailbox.
//
// A [WorkerThread] alternates between two states: idle, waiting for
// instructions, and busy, dispatching them in FIFO order to its handler.
// Callers may block until the thread is idle using
// [WorkerThread.WaitUntilDone], coalesce wake-ups using
// [WorkerThread.SendInstructionWithoutNotify] and
// [WorkerThread.NotifyOfInstruction], and stop the thread using
// [WorkerThread.Terminate], or by returning false from the handler.
package workerthread
