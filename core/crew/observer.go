package crew

import "time"

// Observer receives progress events from a run. Implementations must be safe
// for use from the goroutine executing the run.
type Observer interface {
	TaskStarted(crew string, task Task)
	TaskFinished(crew string, task Task, elapsed time.Duration, err error)
	ToolInvoked(crew, task, tool string, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) TaskStarted(string, Task) {}
func (NopObserver) TaskFinished(string, Task, time.Duration, error) {}
func (NopObserver) ToolInvoked(string, string, string, error) {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) TaskStarted(crew string, task Task) {
	for _, obs := range o {
		obs.TaskStarted(crew, task)
	}
}

func (o Observers) TaskFinished(crew string, task Task, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.TaskFinished(crew, task, elapsed, err)
	}
}

func (o Observers) ToolInvoked(crew, task, tool string, err error) {
	for _, obs := range o {
		obs.ToolInvoked(crew, task, tool, err)
	}
}
