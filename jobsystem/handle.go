package jobsystem

// JobHandle is a counted reference to a job. The zero value is an invalid
// handle.
//
// Handles are values, but references are explicit: a handle returned by
// [JobSystem.CreateJob] holds one reference, [JobHandle.Clone] takes another,
// and [JobHandle.Release] drops one. A job returns to its pool once every
// reference, including those held internally, is dropped, so every handle
// must be released exactly once.
type JobHandle struct {
	job *job
}

// IsValid reports whether the handle refers to a job.
func (h JobHandle) IsValid() bool {
	return h.job != nil
}

// IsDone reports whether the job has finished executing.
func (h JobHandle) IsDone() bool {
	return h.job != nil && h.job.isDone()
}

// Name returns the name of the job.
func (h JobHandle) Name() string {
	if h.job == nil {
		return ``
	}
	return h.job.name
}

// Err returns a [*PanicError] if the job panicked. It returns nil if the job
// has not finished.
func (h JobHandle) Err() error {
	if !h.IsDone() {
		return nil
	}
	return h.job.err
}

// AddDependency increases the dependency count of the job. Panics if the job
// has started.
func (h JobHandle) AddDependency(count uint32) {
	h.job.addDependency(count)
}

// RemoveDependency decreases the dependency count of the job, queueing it if
// the count reaches zero. Panics if the count would underflow.
func (h JobHandle) RemoveDependency(count uint32) {
	h.job.removeDependencyAndQueue(count)
}

// Precede arranges for dependent to lose one dependency, once h finishes.
// The dependency must already be counted by dependent, e.g. by creating it
// with one more dependency. Precede returns false, leaving dependent
// unchanged, if h has already finished, in which case the caller should
// remove the dependency itself.
func (h JobHandle) Precede(dependent JobHandle) bool {
	return h.job.precede(dependent.job)
}

// Clone returns a new reference to the same job.
func (h JobHandle) Clone() JobHandle {
	if h.job != nil {
		h.job.addRef()
	}
	return h
}

// Release drops the handle's reference, leaving it invalid.
func (h *JobHandle) Release() {
	if j := h.job; j != nil {
		h.job = nil
		j.release()
	}
}

// RemoveDependencies removes count dependencies from each job, then queues
// those that became ready, in batches, per job system.
func RemoveDependencies(handles []JobHandle, count uint32) {
	var (
		batches []*core
		ready   [][]*job
	)
	for _, h := range handles {
		if h.job == nil || !h.job.removeDependency(count) {
			continue
		}
		c := h.job.core
		i := 0
		for i < len(batches) && batches[i] != c {
			i++
		}
		if i == len(batches) {
			batches = append(batches, c)
			ready = append(ready, nil)
		}
		ready[i] = append(ready[i], h.job)
	}
	for i, c := range batches {
		c.queueJobs(ready[i])
	}
}
