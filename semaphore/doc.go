// Package semaphore implements a counting semaphore for worker wake-ups.
//
// The count lives in a single atomic integer. Callers only touch the
// underlying blocking primitive when an acquire drives the count negative,
// which keeps release on the uncontended path to one atomic add.
package semaphore
