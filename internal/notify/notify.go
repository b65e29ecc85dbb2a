// Package notify реализует очередь временных уведомлений для пользователя.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Severity задаёт уровень уведомления.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DefaultTTL возвращает время жизни уведомления по умолчанию для уровня.
func (s Severity) DefaultTTL() time.Duration {
	switch s {
	case SeverityWarning:
		return 3500 * time.Millisecond
	case SeverityError:
		return 4000 * time.Millisecond
	default:
		return 3000 * time.Millisecond
	}
}

// Valid сообщает, что уровень входит в закрытый набор.
func (s Severity) Valid() bool {
	switch s {
	case SeveritySuccess, SeverityError, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// Notification описывает одно уведомление.
type Notification struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Severity  Severity      `json:"severity"`
	TTL       time.Duration `json:"-"`
	CreatedAt time.Time     `json:"createdAt"`
}

type entry struct {
	Notification
	timer *time.Timer
}

// Queue хранит уведомления в порядке добавления и удаляет их по истечении TTL.
type Queue struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*entry
	closed  bool
}

// NewQueue создаёт пустую очередь.
func NewQueue() *Queue {
	return &Queue{entries: make(map[string]*entry)}
}

// Add добавляет уведомление и планирует его удаление. ttl <= 0 означает значение по умолчанию.
func (q *Queue) Add(message string, severity Severity, ttl time.Duration) string {
	if !severity.Valid() {
		severity = SeverityInfo
	}
	if ttl <= 0 {
		ttl = severity.DefaultTTL()
	}

	id := uuid.NewString()
	e := &entry{Notification: Notification{
		ID:        id,
		Message:   message,
		Severity:  severity,
		TTL:       ttl,
		CreatedAt: time.Now(),
	}}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return id
	}
	q.entries[id] = e
	q.order = append(q.order, id)
	e.timer = time.AfterFunc(ttl, func() { q.Remove(id) })

	return id
}

// Success добавляет уведомление об успехе.
func (q *Queue) Success(message string) string { return q.Add(message, SeveritySuccess, 0) }

// Error добавляет уведомление об ошибке.
func (q *Queue) Error(message string) string { return q.Add(message, SeverityError, 0) }

// Warning добавляет предупреждение.
func (q *Queue) Warning(message string) string { return q.Add(message, SeverityWarning, 0) }

// Info добавляет информационное уведомление.
func (q *Queue) Info(message string) string { return q.Add(message, SeverityInfo, 0) }

// Remove удаляет уведомление. Повторное удаление ничего не делает.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(q.entries, id)

	for i, v := range q.order {
		if v == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// List возвращает снимок уведомлений в порядке добавления.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	res := make([]Notification, 0, len(q.order))
	for _, id := range q.order {
		res = append(res, q.entries[id].Notification)
	}
	return res
}

// Close останавливает таймеры и очищает очередь.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		e.timer.Stop()
	}
	q.entries = make(map[string]*entry)
	q.order = nil
	q.closed = true
}
