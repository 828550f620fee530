package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/arloliu/tickstream/errs"
	"github.com/arloliu/tickstream/internal/options"
	"github.com/arloliu/tickstream/section"
)

// LoopbackOption configures a Loopback.
type LoopbackOption = options.Option[*Loopback]

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) LoopbackOption {
	return options.New(func(l *Loopback) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", errs.ErrInvalidConfig)
		}
		l.logger = logger

		return nil
	})
}

// WithErrorHandler receives every error a handler returns for a delivered frame.
func WithErrorHandler(fn func(err error)) LoopbackOption {
	return options.NoError(func(l *Loopback) {
		l.onError = fn
	})
}

// Loopback carries responses from a publisher to a subscriber, and commands
// back, inside one process. It implements publisher.Transport on the sending
// side and subscriber.CommandSender on the receiving side.
//
// Goroutine topology: Start spawns one goroutine per direction. Each drains
// its queue in order, so the subscriber sees responses in the order the
// publisher sent them.
type Loopback struct {
	logger  *slog.Logger
	onError func(err error)

	responses *frameQueue
	commands  *frameQueue

	mu      sync.Mutex
	pending int
	idle    chan struct{}
	started bool
	closed  bool
	stop    func() bool

	wg sync.WaitGroup
}

// NewLoopback returns an idle loopback. Frames sent before Start are queued.
func NewLoopback(opts ...LoopbackOption) (*Loopback, error) {
	l := &Loopback{
		logger:    slog.New(slog.DiscardHandler),
		responses: newFrameQueue(),
		commands:  newFrameQueue(),
	}
	if err := options.Apply(l, opts...); err != nil {
		return nil, err
	}

	return l, nil
}

// Send queues one response frame for the subscriber.
func (l *Loopback) Send(_ uuid.UUID, code section.ResponseCode, payload []byte) error {
	frame := section.AppendFrame(make([]byte, 0, section.ResponseHeaderSize+len(payload)), code, section.CommandFor(code), payload)
	return l.enqueue(l.responses, frame)
}

// SendCommand queues one command frame for the publisher.
func (l *Loopback) SendCommand(code section.CommandCode, payload []byte) error {
	frame := section.AppendCommandFrame(make([]byte, 0, section.CommandHeaderSize+len(payload)), code, payload)
	return l.enqueue(l.commands, frame)
}

func (l *Loopback) enqueue(q *frameQueue, frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return io.ErrClosedPipe
	}
	if l.pending == 0 {
		l.idle = make(chan struct{})
	}
	l.pending++
	q.push(frame)

	return nil
}

func (l *Loopback) done() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending--
	if l.pending == 0 && l.idle != nil {
		close(l.idle)
		l.idle = nil
	}
}

// Start begins delivering responses to responses and commands to commands.
// Delivery stops when ctx is cancelled or Close is called.
func (l *Loopback) Start(ctx context.Context, responses ResponseHandler, commands CommandHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return io.ErrClosedPipe
	}
	if l.started {
		return fmt.Errorf("%w: loopback already started", errs.ErrInvalidConfig)
	}
	l.started = true

	l.wg.Add(2)
	go l.deliver(l.responses, func(frame []byte) error {
		header, payload, err := ReadResponse(bytes.NewReader(frame), nil)
		if err != nil {
			return err
		}

		return responses.HandleResponse(header.Code, payload)
	})
	go l.deliver(l.commands, func(frame []byte) error {
		header, payload, err := ReadCommand(bytes.NewReader(frame), nil)
		if err != nil {
			return err
		}

		return commands.HandleCommand(header.Code, payload)
	})

	l.stop = context.AfterFunc(ctx, func() { _ = l.Close() })

	return nil
}

func (l *Loopback) deliver(q *frameQueue, handle func(frame []byte) error) {
	defer l.wg.Done()

	for {
		frames, ok := q.take()
		if !ok {
			return
		}

		for _, frame := range frames {
			if err := handle(frame); err != nil {
				l.logger.Debug("loopback handler failed", slog.Any("error", err))
				if l.onError != nil {
					l.onError(err)
				}
			}
			l.done()
		}
	}
}

// Flush blocks until every queued frame, and every frame queued while
// handling those, has been delivered.
func (l *Loopback) Flush(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.pending == 0 {
			l.mu.Unlock()
			return nil
		}
		if l.closed {
			l.mu.Unlock()
			return io.ErrClosedPipe
		}
		idle := l.idle
		l.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops delivery and drops undelivered frames. It waits for the
// delivery goroutines to return and is safe to call more than once.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	stop := l.stop
	l.mu.Unlock()

	if stop != nil {
		stop()
	}
	l.responses.close()
	l.commands.close()
	l.wg.Wait()

	return nil
}

// frameQueue is an unbounded FIFO mailbox.
type frameQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frames [][]byte
	closed bool
}

func newFrameQueue() *frameQueue {
	q := &frameQueue{}
	q.cond = sync.NewCond(&q.mu)

	return q
}

func (q *frameQueue) push(frame []byte) {
	q.mu.Lock()
	q.frames = append(q.frames, frame)
	q.cond.Signal()
	q.mu.Unlock()
}

// take waits for frames and returns all of them. It reports false once the
// queue is closed.
func (q *frameQueue) take() ([][]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}

	frames := q.frames
	q.frames = nil

	return frames, true
}

func (q *frameQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
