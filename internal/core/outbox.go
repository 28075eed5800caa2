package core

import "time"

// outbox is a session's bounded outbound queue, drained by its own writer
// goroutine so broadcast only enqueues and never waits on peer I/O.
// enqueue and close are called under Hub.mu; run owns the connection.
type outbox struct {
	queue    chan string
	conn     Conn
	attempts int
	backoff  time.Duration
	closed   bool
	done     chan struct{}

	// onDead is called once, from the writer goroutine, when a line could not
	// be written after every attempt.
	onDead func(err error)
}

func newOutbox(conn Conn, size, attempts int, backoff time.Duration, onDead func(error)) *outbox {
	if size < 1 {
		size = 1
	}
	if attempts < 1 {
		attempts = 1
	}
	return &outbox{
		queue:    make(chan string, size),
		conn:     conn,
		attempts: attempts,
		backoff:  backoff,
		done:     make(chan struct{}),
		onDead:   onDead,
	}
}

// enqueue reports false when the outbox is closed or full.
func (o *outbox) enqueue(line string) bool {
	if o.closed {
		return false
	}
	select {
	case o.queue <- line:
		return true
	default:
		return false
	}
}

// close stops accepting lines; the writer flushes what is queued and then
// closes the connection.
func (o *outbox) close() {
	if o.closed {
		return
	}
	o.closed = true
	close(o.queue)
}

func (o *outbox) run() {
	defer close(o.done)
	defer o.conn.Close()

	dead := false
	for line := range o.queue {
		if dead {
			continue
		}
		if err := o.write(line); err != nil {
			dead = true
			if o.onDead != nil {
				o.onDead(err)
			}
		}
	}
}

func (o *outbox) write(line string) error {
	var err error
	for attempt := 1; attempt <= o.attempts; attempt++ {
		if err = o.conn.WriteLine(line); err == nil {
			return nil
		}
		if attempt < o.attempts && o.backoff > 0 {
			time.Sleep(o.backoff)
		}
	}
	return err
}
