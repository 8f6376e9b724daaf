package events

import (
	"context"
	"io"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ImportUploadedKind  string = "dealer.import.uploaded"
	ImportConfirmedKind string = "dealer.import.confirmed"
	ImportCompletedKind string = "dealer.import.completed"
	ImportCancelledKind string = "dealer.import.cancelled"

	defaultTopic  string = "dealer.import.events"
	defaultSource string = "dealer-admin.importer"
)

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, e cloudevents.Event) error
	Close(ctx context.Context) error
}

// EventProducer is a wrapper around a Writer with the buffer.
// Write never waits for the writer: events are queued and sent by a background goroutine.
type EventProducer struct {
	buffer    *buffer
	wakeCh    chan struct{}
	doneCh    chan struct{}
	stoppedCh chan struct{}
	closeOnce sync.Once
	writer    Writer
	topic     string
	source    string
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		buffer:    newBuffer(),
		wakeCh:    make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		writer:    w,
		topic:     defaultTopic,
		source:    defaultSource,
	}

	for _, o := range opts {
		o(ep)
	}

	go ep.run()
	return ep
}

func (ep *EventProducer) Write(ctx context.Context, kind string, body io.Reader) error {
	d, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	ep.buffer.PushBack(&message{
		Kind: kind,
		Data: d,
	})

	// unblock the consumer
	select {
	case ep.wakeCh <- struct{}{}:
	default:
	}

	return nil
}

// Close flushes pending events and closes the writer.
func (ep *EventProducer) Close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(closeCtx)
	g.Go(func() error {
		ep.closeOnce.Do(func() { close(ep.doneCh) })
		select {
		case <-ep.stoppedCh:
		case <-ctx.Done():
			return ctx.Err()
		}
		return ep.writer.Close(ctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Errorf("event producer closed with error: %s", err)
		return err
	}

	zap.S().Named("event producer").Info("event producer closed")

	return nil
}

func (ep *EventProducer) run() {
	defer close(ep.stoppedCh)

	for {
		msg := ep.buffer.Pop()
		if msg == nil {
			select {
			case <-ep.wakeCh:
				continue
			case <-ep.doneCh:
				// drain what was queued before close
				if ep.buffer.Size() > 0 {
					continue
				}
				return
			}
		}

		e := cloudevents.NewEvent()
		e.SetID(uuid.NewString())
		e.SetSource(ep.source)
		e.SetType(msg.Kind)
		e.SetTime(time.Now())
		_ = e.SetData(*cloudevents.StringOfApplicationJSON(), msg.Data)

		if err := ep.writer.Write(context.TODO(), ep.topic, e); err != nil {
			zap.S().Named("event_producer").Errorw("failed to send event", "error", err, "event", e)
		}
	}
}
