package mqtt

import "github.com/sweeney/magic-clock/internal/logic"

// NopPublisher drops everything. It stands in when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(logic.Event) error { return nil }

func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// IsConnected always reports false.
func (NopPublisher) IsConnected() bool { return false }
