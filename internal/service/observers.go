package service

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// LogObserver writes every change message to a logger.
type LogObserver struct {
	logger *logrus.Logger
}

// NewLogObserver returns an observer logging at info level.
func NewLogObserver(logger *logrus.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Notify(message string) {
	o.logger.WithField("component", "observer").Info(message)
}

// Recorder keeps the most recent messages it receives. It is safe for
// concurrent use.
type Recorder struct {
	mu       sync.Mutex
	limit    int
	messages []string
}

// NewRecorder keeps at most limit messages; limit <= 0 keeps all of them.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	if r.limit > 0 && len(r.messages) > r.limit {
		r.messages = append(r.messages[:0:0], r.messages[len(r.messages)-r.limit:]...)
	}
}

// Messages returns a copy of the received messages in arrival order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
