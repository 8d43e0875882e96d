package resource

import "fmt"

// Kind identifies the class of a tracked resource. It determines the
// id prefix and which aggregate counter the entry contributes to.
type Kind int

const (
	// KindProcess is a spawned OS subprocess.
	KindProcess Kind = iota
	// KindConnection is an open network connection.
	KindConnection
	// KindFileHandle is an open file descriptor.
	KindFileHandle
	// KindChannel is an in-process channel endpoint.
	KindChannel
	// KindTask is a background goroutine or job.
	KindTask
	// KindStream is a long-lived data stream (e.g. an SSE response body).
	KindStream
	// KindTimer is a pending timer.
	KindTimer
	// KindMemory is a tracked in-memory allocation (decoded buffers etc).
	KindMemory
)

// kindCount is the number of defined kinds; used for per-kind counters.
const kindCount = int(KindMemory) + 1

var kindPrefixes = [kindCount]string{
	KindProcess:    "proc",
	KindConnection: "conn",
	KindFileHandle: "file",
	KindChannel:    "chan",
	KindTask:       "task",
	KindStream:     "stream",
	KindTimer:      "timer",
	KindMemory:     "mem",
}

var kindNames = [kindCount]string{
	KindProcess:    "process",
	KindConnection: "connection",
	KindFileHandle: "file_handle",
	KindChannel:    "channel",
	KindTask:       "task",
	KindStream:     "stream",
	KindTimer:      "timer",
	KindMemory:     "memory",
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < kindCount
}

// Prefix returns the id prefix for the kind (e.g. "proc" for KindProcess).
func (k Kind) Prefix() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindPrefixes[k]
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns all defined kinds in declaration order.
func Kinds() []Kind {
	ks := make([]Kind, kindCount)
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}
