package control

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/pipeline"
)

const writeTimeout = 5 * time.Second

// StatusMessage is the JSON text message pushed to WebSocket clients.
type StatusMessage struct {
	Type  string         `json:"type"`
	Stats pipeline.Stats `json:"stats"`
}

// Message types.
const (
	MessageStatus   = "status"
	MessageFinished = "finished"
)

func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleWebSocket",
			"error":    err.Error(),
		}).Warn("WebSocket upgrade failed")
		return
	}
	defer ws.Close()

	log := logrus.WithFields(logrus.Fields{
		"function": "handleWebSocket",
		"remote":   ws.RemoteAddr().String(),
	})
	log.Debug("WebSocket client connected")

	if headers := s.pipeline.Headers(); len(headers) > 0 {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.BinaryMessage, headers); err != nil {
			log.WithError(err).Debug("Header write failed")
			return
		}
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Debug("WebSocket read failed")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			log.Debug("WebSocket client left")
			return
		case <-s.pipeline.Finished():
			s.writeStatus(ws, MessageFinished)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream finished"),
				time.Now().Add(writeTimeout))
			return
		case <-ticker.C:
			if err := s.writeStatus(ws, MessageStatus); err != nil {
				log.WithError(err).Debug("Status write failed")
				return
			}
		}
	}
}

func (s *Server) writeStatus(ws *websocket.Conn, kind string) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteJSON(StatusMessage{Type: kind, Stats: s.pipeline.Stats()})
}
