package events

import (
	evbus "github.com/asaskevich/EventBus"
)

// topic is the single bus topic all login events flow over.
const topic = "tabvault:login"

// Bus fans login events out to subscribers. Publish is synchronous so
// event order matches emission order.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish delivers an event to all current subscribers.
func (b *Bus) Publish(event LoginEvent) {
	b.bus.Publish(topic, event)
}

// Subscribe registers a handler for all login events.
func (b *Bus) Subscribe(handler func(LoginEvent)) error {
	return b.bus.Subscribe(topic, handler)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(handler func(LoginEvent)) error {
	return b.bus.Unsubscribe(topic, handler)
}
