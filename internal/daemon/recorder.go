package daemon

import "sync"

// Recorder observes every request written to the run process.
type Recorder interface {
	Record(req Request)
}

// MemoryRecorder keeps requests in order.
type MemoryRecorder struct {
	mutex    sync.Mutex
	requests []Request
}

func (r *MemoryRecorder) Record(req Request) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.requests = append(r.requests, req)
}

// Requests returns a copy of the recorded requests.
func (r *MemoryRecorder) Requests() []Request {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]Request(nil), r.requests...)
}

// Len returns the number of recorded requests.
func (r *MemoryRecorder) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.requests)
}
