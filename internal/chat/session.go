package chat

import "sync/atomic"

// Session is the transient state for one in-flight completion request. A
// session is created per request and is not reused; sequential requests each
// start from a fresh Session.
//
// The stop flag is write-once: it is only ever set to true (by a cancel
// action running concurrently with the consumer loop) and only ever read by
// the loop, once per chunk.
type Session struct {
	stop atomic.Bool
}

// Stop requests cooperative cancellation. Content from a chunk already in
// hand is still applied; the stream is aborted before the next chunk.
func (s *Session) Stop() {
	s.stop.Store(true)
}

// StopRequested reports whether Stop has been called.
func (s *Session) StopRequested() bool {
	return s.stop.Load()
}
