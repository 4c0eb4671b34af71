package infrastructure

import "time"

// Observer is notified after every storage, cache and event operation completes.
type Observer interface {
	ObserveOperation(op OperationContext)
}

// OperationContext describes one completed infrastructure operation.
type OperationContext struct {
	// Component is the subsystem, e.g. "database", "cache", "events".
	Component string
	// Operation is e.g. "insert", "find", "publish".
	Operation string
	// Resource is the collection, cache key prefix or topic.
	Resource string
	Duration time.Duration
	Error    error
	// Size is rows returned/affected or bytes published.
	Size int64
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(OperationContext) {}

// NopObserver discards every observation.
func NopObserver() Observer { return nopObserver{} }
