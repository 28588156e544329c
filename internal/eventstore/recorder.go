package eventstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/contentbuddy/contentbuddy/internal/bus"
	"github.com/contentbuddy/contentbuddy/internal/protocol"
)

// Recorder publishes pipeline events and journals them. With a bus, events
// go out on NATS and a subscription writes them to the store; without one,
// Emit writes to the store directly.
type Recorder struct {
	store *Store
	bus   *bus.Client
	log   *slog.Logger

	mu    sync.Mutex
	stops []func()
	wg    sync.WaitGroup
}

var journaledSubjects = []string{
	protocol.SubjectGenerateAll,
	protocol.SubjectExportStatus,
	protocol.SubjectDictionarySaved,
}

func NewRecorder(store *Store, busClient *bus.Client, log *slog.Logger) *Recorder {
	return &Recorder{
		store: store,
		bus:   busClient,
		log:   log.With(slog.String("component", "journal")),
	}
}

// Start subscribes the journal to the bus. It is a no-op without a bus or
// without persistence.
func (r *Recorder) Start() error {
	if r.bus == nil || !r.store.Enabled() {
		return nil
	}
	for _, subject := range journaledSubjects {
		stop, err := r.bus.Subscribe(subject, r.handle)
		if err != nil {
			r.Close()
			return err
		}
		r.mu.Lock()
		r.stops = append(r.stops, stop)
		r.mu.Unlock()
	}
	return nil
}

// Emit publishes v on subject, or journals it directly when no bus is wired.
func (r *Recorder) Emit(subject string, v any) {
	if r == nil {
		return
	}
	if r.bus != nil {
		if err := r.bus.PublishJSON(subject, v); err != nil {
			r.log.Warn("failed to publish event", slog.String("subject", subject), slogError(err))
		}
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.log.Warn("failed to marshal event", slog.String("subject", subject), slogError(err))
		return
	}
	r.handle(subject, data)
}

func (r *Recorder) handle(subject string, data []byte) {
	if !r.store.Enabled() {
		return
	}
	r.wg.Add(1)
	defer r.wg.Done()
	fields := gjson.GetManyBytes(data, "session_id", "segment_id", "outcome", "status")
	outcome := fields[2].String()
	if outcome == "" {
		outcome = fields[3].String()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	evt := Event{
		SessionID: fields[0].String(),
		Subject:   subject,
		SegmentID: fields[1].String(),
		Outcome:   outcome,
		Payload:   data,
	}
	if err := r.store.AppendEvent(ctx, evt); err != nil {
		r.log.Warn("failed to journal event", slog.String("subject", subject), slogError(err))
	}
}

// Close drains subscriptions and waits for in-flight writes.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	stops := r.stops
	r.stops = nil
	r.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
	r.wg.Wait()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
