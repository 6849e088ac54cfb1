package jobsystem_test

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-jobsystem/jobsystem"
)

func ExampleThreadPool() {
	pool, err := jobsystem.NewThreadPool(1024, 8, 4)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	barrier := pool.CreateBarrier()
	defer pool.DestroyBarrier(barrier)

	var sum atomic.Int64
	handles := make([]jobsystem.JobHandle, 0, 10)
	for i := 1; i <= 10; i++ {
		h := pool.CreateJob(fmt.Sprintf(`add %d`, i), func() { sum.Add(int64(i)) }, 0)
		barrier.AddJob(h)
		handles = append(handles, h)
	}

	pool.WaitForJobs(barrier)
	for i := range handles {
		handles[i].Release()
	}

	fmt.Println(sum.Load())

	// Output:
	// 55
}

func ExampleJobHandle_Precede() {
	worker, err := jobsystem.NewWorkerThread(16, 1)
	if err != nil {
		panic(err)
	}
	defer worker.Close()

	// both jobs wait on one dependency, released below
	load := worker.CreateJob(`load`, func() { fmt.Println(`load`) }, 1)
	render := worker.CreateJob(`render`, func() { fmt.Println(`render`) }, 1)
	defer load.Release()
	defer render.Release()

	load.Precede(render)

	barrier := worker.CreateBarrier()
	defer worker.DestroyBarrier(barrier)
	barrier.AddJobs(load, render)

	load.RemoveDependency(1)
	worker.WaitForJobs(barrier)

	// Output:
	// load
	// render
}
