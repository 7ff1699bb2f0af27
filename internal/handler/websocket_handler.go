// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"drill-monitor/internal/model"
	"drill-monitor/internal/service"
	"drill-monitor/internal/utils"
)

// WebSocketHandler manages WebSocket connections for real-time streams:
// /measurements carries every enriched sample, /events carries state
// transitions, decoded responses and connection changes.
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	connections    *ConnectionManager
	monitorService *service.MonitorService
	logger         *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(monitorService *service.MonitorService, logger *zap.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// In production, implement proper origin checking
			return true
		},
	}

	return &WebSocketHandler{
		upgrader:       upgrader,
		connections:    NewConnectionManager(),
		monitorService: monitorService,
		logger:         utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/measurements", h.HandleMeasurementConnection)
	router.GET("/events", h.HandleEventConnection)
}

// HandleMeasurementConnection streams enriched measurements
func (h *WebSocketHandler) HandleMeasurementConnection(c *gin.Context) {
	h.acceptClient(c, "measurements")
}

// HandleEventConnection streams state transitions and sensor responses
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	h.acceptClient(c, "events")
}

func (h *WebSocketHandler) acceptClient(c *gin.Context, clientType string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        clientType,
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("type", clientType),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	// Set read deadline and pong handler
	client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Warn("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
		})
	case "stats":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "stats",
			Data:      h.monitorService.Stats(),
			Timestamp: time.Now(),
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
	}
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case client.Send <- messageBytes:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// BroadcastMeasurement pushes one enriched measurement to the
// measurement stream clients.
func (h *WebSocketHandler) BroadcastMeasurement(m model.Measurement) {
	message := &WebSocketMessage{
		Type:      "measurement",
		Data:      m,
		Timestamp: time.Now(),
	}
	h.broadcastToClients(h.connections.GetMeasurementClients(), message)
}

// BroadcastEvent pushes a sensor event to the event stream clients.
func (h *WebSocketHandler) BroadcastEvent(eventType string, data interface{}) {
	message := &WebSocketMessage{
		Type: "sensor_event",
		Data: map[string]interface{}{
			"event_type": eventType,
			"data":       data,
		},
		Timestamp: time.Now(),
	}
	h.broadcastToClients(h.connections.GetEventClients(), message)
}

// broadcastToClients broadcasts message to specified clients
func (h *WebSocketHandler) broadcastToClients(clients []*Client, message *WebSocketMessage) {
	if len(clients) == 0 {
		return
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.ID),
			)
		}
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
