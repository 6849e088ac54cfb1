// Package logtest provides a logiface logger that records events, for
// assertions in tests.
package logtest

import (
	"sync"

	"github.com/joeycumines/logiface"
)

type (
	// Event is a recorded log event.
	Event struct {
		logiface.UnimplementedEvent
		Fields  map[string]any
		Err     error
		Message string
		level   logiface.Level
	}

	// Recorder collects the events written by its logger.
	Recorder struct {
		events []*Event
		mu     sync.Mutex
	}
)

func (x *Event) Level() logiface.Level { return x.level }

func (x *Event) AddField(key string, val any) {
	if x.Fields == nil {
		x.Fields = make(map[string]any)
	}
	x.Fields[key] = val
}

func (x *Event) AddMessage(msg string) bool {
	x.Message = msg
	return true
}

func (x *Event) AddError(err error) bool {
	x.Err = err
	return true
}

// Logger returns a new logger, at the given level, writing to x.
func (x *Recorder) Logger(level logiface.Level) *logiface.Logger[logiface.Event] {
	return logiface.New[*Event](
		logiface.WithEventFactory[*Event](logiface.NewEventFactoryFunc(func(level logiface.Level) *Event {
			return &Event{level: level}
		})),
		logiface.WithWriter[*Event](logiface.NewWriterFunc(func(event *Event) error {
			x.mu.Lock()
			x.events = append(x.events, event)
			x.mu.Unlock()
			return nil
		})),
		logiface.WithLevel[*Event](level),
	).Logger()
}

// Events returns a copy of the recorded events.
func (x *Recorder) Events() []*Event {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]*Event(nil), x.events...)
}

// Filter returns the recorded events at the given level.
func (x *Recorder) Filter(level logiface.Level) (events []*Event) {
	for _, event := range x.Events() {
		if event.level == level {
			events = append(events, event)
		}
	}
	return events
}
