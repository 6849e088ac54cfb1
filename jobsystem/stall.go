package jobsystem

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
)

// stallInterval is how long to sleep, before retrying on an exhausted
// resource.
const stallInterval = time.Microsecond * 100

// stallKind identifies an exhausted resource.
type stallKind int

const (
	stallJobPool stallKind = iota
	stallQueue
	stallBarrier
	stallBarrierPool
	numStallKinds
)

// stallWarningRates limits the warnings logged per stallKind.
var stallWarningRates = map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
}

func (x stallKind) String() string {
	switch x {
	case stallJobPool:
		return `job pool`
	case stallQueue:
		return `job queue`
	case stallBarrier:
		return `barrier`
	case stallBarrierPool:
		return `barrier pool`
	default:
		return fmt.Sprintf(`stallKind(%d)`, int(x))
	}
}

// stall waits before the caller retries to obtain a resource. The attempt
// is zero for the first retry of an operation, and is used so that each
// operation is counted and logged once.
func (c *core) stall(kind stallKind, attempt int) {
	if debugAssertions {
		panic(fmt.Sprintf(`jobsystem: %s exhausted, stalling`, kind))
	}
	if attempt == 0 {
		c.metrics.stalls[kind].Add(1)
		if _, ok := c.stallLimiter.Allow(kind); ok {
			c.logger.Warning().
				Str(`system`, c.name).
				Stringer(`resource`, kind).
				Log(`resource exhausted, stalling`)
		}
	}
	time.Sleep(stallInterval)
}

func newStallLimiter() *catrate.Limiter {
	return catrate.NewLimiter(stallWarningRates)
}
