// websocket/manager.go
package websocket

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/LilVoxy/taxi_warehouse/ETL/models"
	"github.com/LilVoxy/taxi_warehouse/ETL/utils"
)

// Глубина опроса журнала в днях
const pollWindowDays = 1

// NewManager создает менеджер ленты запусков
func NewManager(source RunSource, pollInterval time.Duration, logger *utils.ETLLogger) *Manager {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Manager{
		clients:      make(map[*Client]struct{}),
		Broadcast:    make(chan []byte, 16),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		direct:       make(chan directMessage),
		done:         make(chan struct{}),
		source:       source,
		pollInterval: pollInterval,
		logger:       logger,
		runs:         make(map[string]models.ETLRunLog),
	}
}

// Run запускает работу менеджера до отмены контекста
func (manager *Manager) Run(ctx context.Context) {
	defer close(manager.done)
	go manager.poll(ctx)

	for {
		select {
		case client := <-manager.Register:
			manager.clients[client] = struct{}{}
			manager.logger.Debug("Клиент %s подписался на ленту запусков", client.ID)

		case client := <-manager.Unregister:
			if _, ok := manager.clients[client]; ok {
				delete(manager.clients, client)
				close(client.Send)
				manager.logger.Debug("Клиент %s отключился", client.ID)
			}

		case message := <-manager.Broadcast:
			// Рассылаем сообщение всем подключенным клиентам
			manager.broadcast(message)

		case msg := <-manager.direct:
			if _, ok := manager.clients[msg.client]; ok {
				select {
				case msg.client.Send <- msg.data:
				default:
				}
			}

		case <-ctx.Done():
			for client := range manager.clients {
				close(client.Send)
				delete(manager.clients, client)
			}
			return
		}
	}
}

// broadcast отправляет сообщение всем подключенным клиентам.
// Клиент с переполненной очередью отключается.
func (manager *Manager) broadcast(message []byte) {
	for client := range manager.clients {
		select {
		case client.Send <- message:
		default:
			close(client.Send)
			delete(manager.clients, client)
		}
	}
}

// unregister снимает клиента с учёта, если менеджер ещё работает
func (manager *Manager) unregister(client *Client) {
	select {
	case manager.Unregister <- client:
	case <-manager.done:
	}
}

func (manager *Manager) poll(ctx context.Context) {
	ticker := time.NewTicker(manager.pollInterval)
	defer ticker.Stop()

	for {
		manager.refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (manager *Manager) refresh(ctx context.Context) {
	runs, err := manager.source.GetETLRunStats(ctx, pollWindowDays)
	if err != nil {
		if ctx.Err() == nil {
			manager.logger.Warn("Ошибка опроса журнала запусков: %v", err)
		}
		return
	}

	for _, run := range manager.detectChanges(runs) {
		data, err := json.Marshal(RunEvent{Type: EventRunStatus, Run: &run})
		if err != nil {
			manager.logger.Error("Ошибка кодирования события: %v", err)
			continue
		}
		select {
		case manager.Broadcast <- data:
		case <-ctx.Done():
			return
		}
	}
}

// detectChanges запоминает состояние запусков и возвращает новые запуски
// и запуски со сменившимся статусом. Первый опрос только фиксирует состояние.
func (manager *Manager) detectChanges(runs []models.ETLRunLog) []models.ETLRunLog {
	manager.statusMutex.Lock()
	defer manager.statusMutex.Unlock()

	var changed []models.ETLRunLog
	for _, run := range runs {
		prev, seen := manager.runs[run.RunID]
		manager.runs[run.RunID] = run
		if !manager.baseline {
			continue
		}
		if !seen || prev.Status != run.Status {
			changed = append(changed, run)
		}
	}
	manager.baseline = true

	// события в хронологическом порядке начала запусков
	sort.Slice(changed, func(i, j int) bool {
		return changed[i].StartTime.Before(changed[j].StartTime)
	})
	return changed
}

// Snapshot возвращает известные запуски, начиная с самого свежего
func (manager *Manager) Snapshot() []models.ETLRunLog {
	manager.statusMutex.RLock()
	defer manager.statusMutex.RUnlock()

	runs := make([]models.ETLRunLog, 0, len(manager.runs))
	for _, run := range manager.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	return runs
}
