package commands

import (
	"context"
	"fmt"
	"sort"
)

type commandHandler func(ctx context.Context, cmd Command) (any, error)

// InMemoryBus routes commands to handlers registered at startup.
// Registration is not synchronized; finish it before serving traffic.
type InMemoryBus struct {
	handlers map[string]commandHandler
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{handlers: make(map[string]commandHandler)}
}

func (b *InMemoryBus) RegisterRaw(key string, handler commandHandler) {
	switch {
	case key == "":
		panic("commands: empty key registration")
	case handler == nil:
		panic(fmt.Sprintf("commands: nil handler for %q", key))
	}
	if _, exists := b.handlers[key]; exists {
		panic(fmt.Sprintf("commands: duplicate registration for %q", key))
	}
	b.handlers[key] = handler
}

// Keys lists registered command keys in sorted order.
func (b *InMemoryBus) Keys() []string {
	keys := make([]string, 0, len(b.handlers))
	for key := range b.handlers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (b *InMemoryBus) Dispatch(ctx context.Context, cmd Command) (any, error) {
	if cmd == nil {
		return nil, ErrInvalidCommand
	}
	h, ok := b.handlers[cmd.Key()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, cmd.Key())
	}
	return h(ctx, cmd)
}

// RegisterHandler registers a strongly typed handler under key.
func RegisterHandler[C Command, R any](bus *InMemoryBus, key string, handler Handler[C, R]) {
	if bus == nil {
		panic("commands: nil bus")
	}
	bus.RegisterRaw(key, func(ctx context.Context, raw Command) (any, error) {
		cmd, ok := any(raw).(C)
		if !ok {
			return nil, fmt.Errorf("%w: %s got %T", ErrInvalidCommand, key, raw)
		}
		return handler.Handle(ctx, cmd)
	})
}
