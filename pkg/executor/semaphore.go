package executor

// semaphore bounds concurrent stage/job execution. A limit of 0 means
// unlimited — acquire/release become no-ops.
type semaphore struct {
	slots chan struct{}
}

func newSemaphore(limit int) *semaphore {
	if limit <= 0 {
		return &semaphore{}
	}
	return &semaphore{slots: make(chan struct{}, limit)}
}

func (s *semaphore) acquire() {
	if s.slots != nil {
		s.slots <- struct{}{}
	}
}

func (s *semaphore) release() {
	if s.slots != nil {
		<-s.slots
	}
}
