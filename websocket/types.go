// websocket/types.go
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// RunSource - источник записей журнала запусков
type RunSource interface {
	GetETLRunStats(ctx context.Context, days int) ([]models.ETLRunLog, error)
}

// RunEvent - сообщение ленты запусков
type RunEvent struct {
	Type string             `json:"type"`
	Run  *models.ETLRunLog  `json:"run,omitempty"`
	Runs []models.ETLRunLog `json:"runs,omitempty"`
}

// Клиент WebSocket
type Client struct {
	ID     string
	Socket *websocket.Conn
	Send   chan []byte
}

// directMessage - сообщение одному клиенту
type directMessage struct {
	client *Client
	data   []byte
}

// Manager рассылает подписчикам изменения статусов запусков ETL
type Manager struct {
	clients    map[*Client]struct{}
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client
	direct     chan directMessage
	done       chan struct{}

	source       RunSource
	pollInterval time.Duration
	logger       *utils.ETLLogger

	// последнее известное состояние запусков
	statusMutex sync.RWMutex
	runs        map[string]models.ETLRunLog
	baseline    bool
}

// Конфигурация WebSocket-соединения
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Лента только для чтения, источник не ограничиваем
	},
}
