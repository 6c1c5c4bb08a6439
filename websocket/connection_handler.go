// websocket/connection_handler.go
package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// HandleConnections подписывает клиента на ленту статусов запусков
func (manager *Manager) HandleConnections(w http.ResponseWriter, r *http.Request) {
	// Устанавливаем WebSocket-соединение
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.logger.Warn("Ошибка при установке WebSocket-соединения: %v", err)
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		Socket: conn,
		Send:   make(chan []byte, sendBufferSize),
	}

	// Новый клиент сразу получает текущее состояние
	if snapshot, err := json.Marshal(RunEvent{Type: EventSnapshot, Runs: manager.Snapshot()}); err == nil {
		client.Send <- snapshot
	}

	select {
	case manager.Register <- client:
	case <-manager.done:
		conn.Close()
		return
	}
	manager.logger.Debug("Подключение к ленте запусков с адреса %s", r.RemoteAddr)

	// Запускаем горутины для чтения и отправки сообщений
	go client.readPump(manager)
	go client.writePump()
}
