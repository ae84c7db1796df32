// Package hostif specifies the boundary contracts this module expects
// from its host database. Transaction/WAL integration, on-disk page
// management, the tuple scan iterator, parallel-worker infrastructure and
// maintenance-memory accounting are all external collaborators — this
// package names only their interfaces, never an implementation.
package hostif

import "context"

// TupleID identifies a row in the host's table storage. The index never
// interprets this value; it only stores, compares and returns it.
type TupleID uint64

// TupleIterator is the host-provided table-scan iterator a bulk Build
// consumes. Next returns false once exhausted or on error; Err reports
// which.
type TupleIterator interface {
	Next(ctx context.Context) bool
	Tuple() (TupleID, []float32)
	Err() error
}

// PageRef is an opaque (page, offset) locator within a PageStore. The
// indexes in this module do not use it: HNSW neighbor references are
// positions in its in-memory element arena.
type PageRef struct {
	Page   uint32
	Offset uint16
}

// PageStore is the host's paged, write-ahead-logged block store. Readers
// pin pages in shared mode; writers pin exclusive and the host supplies a
// WAL record per page write. This core never manages page content layout
// itself — it only calls through this interface.
type PageStore interface {
	// ReadPage pins page p in shared mode and returns its bytes. Release
	// must be called exactly once per successful ReadPage/WritePage.
	ReadPage(ctx context.Context, p uint32) ([]byte, func(), error)

	// WritePage pins page p exclusive, writes data under a WAL record,
	// and releases the pin.
	WritePage(ctx context.Context, p uint32, data []byte) error

	// AllocatePage reserves a new page and returns its number.
	AllocatePage(ctx context.Context) (uint32, error)
}

// Interrupt is the host-provided cancellation flag. Every loop that
// exceeds a small constant of work — list scan, k-means iteration, graph
// descent — checks this at a safe point; on Requested() the caller
// unwinds releasing all pinned pages and returns vecerrors.Interrupted.
type Interrupt interface {
	Requested() bool
}

// interruptFunc adapts a plain func() bool to Interrupt.
type interruptFunc func() bool

func (f interruptFunc) Requested() bool { return f() }

// InterruptFunc adapts a polling function to the Interrupt interface.
func InterruptFunc(f func() bool) Interrupt { return interruptFunc(f) }

// Never is an Interrupt that is never requested, for callers with no
// host-provided cancellation source (e.g. standalone tests).
var Never Interrupt = interruptFunc(func() bool { return false })

// MaintenanceMemory reports the host's in-memory working budget for bulk
// index construction, in bytes. HNSW's builder compares its running
// arena estimate against this and logs a single NOTICE once it is
// exceeded; it keeps every element in memory either way and has no
// page-backed growth path. The budget is advisory, not enforced by this
// package.
type MaintenanceMemory interface {
	BudgetBytes() int64
}

// FixedBudget is a constant MaintenanceMemory, useful for tests and for
// hosts that configure the budget once at startup.
type FixedBudget int64

func (b FixedBudget) BudgetBytes() int64 { return int64(b) }

// ListLock serializes writers to one IVFFlat inverted list's tail page.
// Acquire blocks until the lock is held or ctx is canceled.
type ListLock interface {
	Acquire(ctx context.Context, list int) (func(), error)
}

// EntryLatch guards the HNSW entry-pointer compare-and-set: an update
// only succeeds if the proposed level strictly exceeds the current one.
type EntryLatch interface {
	CompareAndSetEntry(id TupleID, level int) bool
}

// Barrier is the build-time synchronization point parallel workers wait
// on before finalization (flushing the arena to pages, writing metadata).
type Barrier interface {
	Wait(ctx context.Context) error
}

// ProgressPhase names one stage of a build's reporting sequence: IVFFlat
// reports "initializing" -> "performing k-means" -> "assigning tuples"
// (it reports no separate "loading tuples" phase); HNSW reports
// "initializing" -> "loading tuples".
type ProgressPhase string

// ProgressReporter receives build progress updates. Implementations must
// not block the caller for long; the host typically stores the latest
// report for a monitoring view to poll.
type ProgressReporter interface {
	Report(phase ProgressPhase, done, total int64)
}

// noopReporter discards all progress reports.
type noopReporter struct{}

func (noopReporter) Report(ProgressPhase, int64, int64) {}

// NoopProgress is a ProgressReporter that discards every report.
var NoopProgress ProgressReporter = noopReporter{}
