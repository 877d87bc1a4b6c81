package monitor

import (
	"context"
	"sync"
	"time"

	"backtest-core/internal/events"
)

// Topics the monitor listens to.
var Topics = []events.Event{
	events.EventSignalEvaluated,
	events.EventSignalRejected,
	events.EventPositionOpened,
	events.EventPositionClosed,
	events.EventSetupArmed,
	events.EventSetupCleared,
	events.EventRunCompleted,
}

// Monitor drains the event bus into a Collector and evaluates alert rules.
type Monitor struct {
	Bus       *events.Bus
	Collector *Collector
	Sink      AlertSink
	Rules     []Rule
	Buffer    int // per-topic channel size, 4096 when zero

	mu     sync.Mutex // serialises rule state
	wg     sync.WaitGroup
	unsubs []func()
}

// Start subscribes to every topic. Listeners stop when ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Collector == nil {
		return
	}
	size := m.Buffer
	if size <= 0 {
		size = 4096
	}
	for _, topic := range Topics {
		stream, unsub := m.Bus.Subscribe(topic, size)
		m.unsubs = append(m.unsubs, unsub)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					m.handle(msg)
				}
			}
		}()
	}
}

// Stop unsubscribes, waits until buffered payloads are consumed and records the
// bus drop count.
func (m *Monitor) Stop() {
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.wg.Wait()
	if m.Bus != nil && m.Collector != nil {
		m.Collector.SetDropped(m.Bus.Dropped())
	}
}

func (m *Monitor) handle(msg any) {
	m.Collector.Observe(msg)
	if m.Sink == nil || len(m.Rules) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Rules {
		if fired, text := r.Check(msg); fired {
			_ = m.Sink.Send(formatAlert(text))
		}
	}
}

func formatAlert(msg string) string {
	return "[" + time.Now().Format(time.RFC3339) + "] " + msg
}
