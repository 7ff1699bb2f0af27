// internal/handler/event_bus.go
package handler

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"drill-monitor/internal/driver/meskernel"
	"drill-monitor/internal/model"
	"drill-monitor/internal/service"
)

// Event types published on the bus.
const (
	EventTypeMeasurement    = "measurement"
	EventTypeStateChanged   = "state_changed"
	EventTypeResponse       = "response"
	EventTypeConnectionLost = "connection_lost"
)

// EventBus manages event distribution
type EventBus struct {
	subscribers map[string][]chan Event
	events      chan Event
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// Event represents a system event
type Event struct {
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
		events:      make(chan Event, 1000),
		logger:      logger,
	}
}

// Start starts the event bus
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}
}

// Publish publishes an event. Never blocks: when the bus is full the
// event is dropped, slow consumers must not stall the reader goroutine.
func (eb *EventBus) Publish(event Event) {
	select {
	case eb.events <- event:
	default:
		if eb.logger != nil {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", event.Type),
			)
		}
	}
}

// Subscribe subscribes to events of a specific type
func (eb *EventBus) Subscribe(eventType string) <-chan Event {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan Event, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event Event) {
	eb.mutex.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// SensorEventHandler is the driver's event sink. It runs processing
// synchronously on the reader goroutine and hands the results off to
// the event bus, which fans out to the WebSocket streams on its own
// goroutine.
type SensorEventHandler struct {
	monitorService   *service.MonitorService
	websocketHandler *WebSocketHandler
	eventBus         *EventBus
	logger           *zap.Logger

	lastState model.DriveState
}

// NewSensorEventHandler creates the event sink and starts the fan-out
// goroutines.
func NewSensorEventHandler(
	monitorService *service.MonitorService,
	websocketHandler *WebSocketHandler,
	logger *zap.Logger,
) *SensorEventHandler {
	h := &SensorEventHandler{
		monitorService:   monitorService,
		websocketHandler: websocketHandler,
		eventBus:         NewEventBus(logger),
		logger:           logger,
		lastState:        model.DriveStateStopped,
	}

	go h.eventBus.Start()
	go h.forwardMeasurements(h.eventBus.Subscribe(EventTypeMeasurement))
	go h.forwardEvents(h.eventBus.Subscribe(EventTypeStateChanged))
	go h.forwardEvents(h.eventBus.Subscribe(EventTypeResponse))
	go h.forwardEvents(h.eventBus.Subscribe(EventTypeConnectionLost))

	return h
}

// OnMeasurement enriches the sample and publishes it. Runs on the
// driver's reader goroutine.
func (h *SensorEventHandler) OnMeasurement(timestamp time.Time, distanceMM uint32, signalQuality int) {
	m := h.monitorService.HandleMeasurement(timestamp, distanceMM, signalQuality)

	h.eventBus.Publish(Event{
		Type:      EventTypeMeasurement,
		Source:    "sensor",
		Data:      m,
		Timestamp: time.Now(),
	})

	if m.State != "" && m.State != h.lastState {
		h.eventBus.Publish(Event{
			Type:   EventTypeStateChanged,
			Source: "sensor",
			Data: map[string]interface{}{
				"old_state": h.lastState,
				"new_state": m.State,
			},
			Timestamp: time.Now(),
		})
		h.lastState = m.State
	}
}

// OnResponse caches device info and publishes the decoded response.
// Runs on the driver's reader goroutine.
func (h *SensorEventHandler) OnResponse(resp meskernel.ParsedResponse) {
	h.monitorService.HandleResponse(resp)

	h.eventBus.Publish(Event{
		Type:      EventTypeResponse,
		Source:    "sensor",
		Data:      resp,
		Timestamp: time.Now(),
	})
}

// OnConnectionLost publishes the link loss. Runs on the driver's reader
// goroutine.
func (h *SensorEventHandler) OnConnectionLost(err error) {
	h.monitorService.HandleConnectionLost(err)

	h.eventBus.Publish(Event{
		Type:      EventTypeConnectionLost,
		Source:    "sensor",
		Data:      map[string]interface{}{"error": err.Error()},
		Timestamp: time.Now(),
	})
}

func (h *SensorEventHandler) forwardMeasurements(events <-chan Event) {
	for event := range events {
		if m, ok := event.Data.(model.Measurement); ok {
			h.websocketHandler.BroadcastMeasurement(m)
		}
	}
}

func (h *SensorEventHandler) forwardEvents(events <-chan Event) {
	for event := range events {
		h.websocketHandler.BroadcastEvent(event.Type, event.Data)
	}
}
