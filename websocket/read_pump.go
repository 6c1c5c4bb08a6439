// websocket/read_pump.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// clientMessage - входящее сообщение клиента; поддерживается только ping
type clientMessage struct {
	Type string `json:"type"`
}

// readPump обрабатывает чтение сообщений от клиента
func (c *Client) readPump(manager *Manager) {
	defer func() {
		manager.unregister(c)
		c.Socket.Close()
	}()

	// Устанавливаем параметры подключения
	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				manager.logger.Debug("Клиент %s: %v", c.ID, err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			manager.sendTo(c, RunEvent{Type: EventPong})
		}
	}
}

// sendTo отправляет событие одному клиенту через менеджер,
// чтобы запись в канал не пересекалась с его закрытием
func (manager *Manager) sendTo(c *Client, event RunEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case manager.direct <- directMessage{client: c, data: data}:
	case <-manager.done:
	}
}
