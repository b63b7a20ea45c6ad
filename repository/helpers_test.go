package repository

import (
	"context"
	"sync"

	"gambler/settlement/database"
	"gambler/settlement/domain/events"
	"gambler/settlement/domain/interfaces"
)

// recordingPublisher buffers events and records what was flushed
type recordingPublisher struct {
	mu        sync.Mutex
	pending   []events.Event
	published []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, event)
	return nil
}

func (p *recordingPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, p.pending...)
	p.pending = nil
	return nil
}

func (p *recordingPublisher) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
}

func (p *recordingPublisher) Published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.published...)
}

// testUnitOfWorkFactory shares one recording publisher across units of work
type testUnitOfWorkFactory struct {
	inner     *unitOfWorkFactory
	publisher *recordingPublisher
}

func newTestUnitOfWorkFactory(db *database.DB) *testUnitOfWorkFactory {
	return &testUnitOfWorkFactory{
		inner:     NewUnitOfWorkFactory(db),
		publisher: &recordingPublisher{},
	}
}

func (f *testUnitOfWorkFactory) Create() interfaces.UnitOfWork {
	return f.inner.CreateWithPublisher(f.publisher)
}
