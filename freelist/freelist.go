// Package freelist implements a lock-free, fixed-capacity pool of objects,
// addressed by index.
//
// Free objects form a stack, linked by index. The head of the stack is a
// single 64-bit word, holding the index of the first free object in the low
// 32 bits, and a tag in the high 32 bits. The tag changes every time an
// object is popped, which prevents ABA when a concurrent pop and push race on
// the same head.
package freelist

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const (
	// InvalidIndex indicates the absence of an object.
	InvalidIndex = ^uint32(0)

	indexMask = uint64(InvalidIndex)
)

type (
	// List is a fixed-capacity pool of objects of type T. Must be created
	// with [New].
	//
	// Objects are not reset when they are returned to the list, nor when they
	// are reused.
	List[T any] struct {
		objects []storage[T]
		_       cpu.CacheLinePad
		// firstFreeObjectInNewPage is the next never-used index
		firstFreeObjectInNewPage atomic.Uint32
		_                        cpu.CacheLinePad
		allocationTag            atomic.Uint32
		_                        cpu.CacheLinePad
		// firstFreeObjectAndTag is the head of the free stack
		firstFreeObjectAndTag atomic.Uint64
		_                     cpu.CacheLinePad
		numObjects            atomic.Int64
	}

	storage[T any] struct {
		object         T
		nextFreeObject atomic.Uint32
	}

	// Batch accumulates objects, to be returned to the list in a single
	// operation, using [List.DestructBatch]. The zero value is an empty batch.
	Batch struct {
		first uint32
		last  uint32
		num   uint32
	}
)

// New returns a list able to hold up to capacity objects.
// The capacity must be less than [InvalidIndex].
func New[T any](capacity uint32) *List[T] {
	if capacity == InvalidIndex {
		panic(`freelist: capacity too large`)
	}
	x := &List[T]{
		objects: make([]storage[T], capacity),
	}
	x.firstFreeObjectAndTag.Store(uint64(InvalidIndex))
	return x
}

// Construct takes an object from the list, returning its index and a pointer
// to it, or false if every object is in use.
func (x *List[T]) Construct() (uint32, *T, bool) {
	for {
		firstFree := x.firstFreeObjectAndTag.Load()
		index := uint32(firstFree & indexMask)

		if index == InvalidIndex {
			// free stack is empty, try an object that was never used
			index = x.firstFreeObjectInNewPage.Load()
			for index < uint32(len(x.objects)) {
				if x.firstFreeObjectInNewPage.CompareAndSwap(index, index+1) {
					x.numObjects.Add(1)
					return index, &x.objects[index].object, true
				}
				index = x.firstFreeObjectInNewPage.Load()
			}
			if uint32(x.firstFreeObjectAndTag.Load()&indexMask) == InvalidIndex {
				return InvalidIndex, nil, false
			}
			// an object was freed in the meantime
			continue
		}

		next := x.objects[index].nextFreeObject.Load()
		tag := uint64(x.allocationTag.Add(1))
		if x.firstFreeObjectAndTag.CompareAndSwap(firstFree, uint64(next)|tag<<32) {
			x.numObjects.Add(1)
			return index, &x.objects[index].object, true
		}
	}
}

// Destruct returns the object at index to the list.
func (x *List[T]) Destruct(index uint32) {
	x.push(index, index)
	x.numObjects.Add(-1)
}

// AddToBatch adds the object at index to batch, see [List.DestructBatch].
func (x *List[T]) AddToBatch(batch *Batch, index uint32) {
	x.objects[index].nextFreeObject.Store(InvalidIndex)
	if batch.num == 0 {
		batch.first = index
	} else {
		x.objects[batch.last].nextFreeObject.Store(index)
	}
	batch.last = index
	batch.num++
}

// DestructBatch returns every object in batch to the list, then resets
// batch.
func (x *List[T]) DestructBatch(batch *Batch) {
	if batch.num == 0 {
		return
	}
	x.push(batch.first, batch.last)
	x.numObjects.Add(-int64(batch.num))
	*batch = Batch{}
}

// push links the chain first..last onto the free stack.
func (x *List[T]) push(first, last uint32) {
	for {
		firstFree := x.firstFreeObjectAndTag.Load()
		x.objects[last].nextFreeObject.Store(uint32(firstFree & indexMask))
		// the tag is kept, only pops change it
		if x.firstFreeObjectAndTag.CompareAndSwap(firstFree, firstFree&^indexMask|uint64(first)) {
			return
		}
	}
}

// Get returns a pointer to the object at index.
func (x *List[T]) Get(index uint32) *T {
	return &x.objects[index].object
}

// Count returns the number of objects in use.
func (x *List[T]) Count() int {
	return int(x.numObjects.Load())
}

// Capacity returns the maximum number of objects.
func (x *List[T]) Capacity() int {
	return len(x.objects)
}

// Len returns the number of objects in batch.
func (x *Batch) Len() int {
	return int(x.num)
}
