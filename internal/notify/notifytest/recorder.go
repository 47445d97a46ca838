// Package notifytest provides a recording notifier for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/Deepanshu2050/subcription-manager/internal/notify"
)

// Recorder keeps every message it is asked to send. When Err is set, Notify
// records nothing and returns Err.
type Recorder struct {
	mu       sync.Mutex
	messages []notify.Message
	Err      error
}

// Notify implements notify.Notifier.
func (r *Recorder) Notify(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.messages...)
}

// Kinds returns the kinds of the recorded messages in order.
func (r *Recorder) Kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]notify.Kind, len(r.messages))
	for i, m := range r.messages {
		kinds[i] = m.Kind
	}
	return kinds
}

// SetErr changes the error returned by Notify.
func (r *Recorder) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

// Reset drops recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
