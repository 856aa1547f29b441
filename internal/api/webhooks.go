package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/annel0/celestial/internal/eventbus"
	"github.com/annel0/celestial/internal/logging"
	"github.com/gin-gonic/gin"
)

// Webhook исходящий webhook на события неба.
type Webhook struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name" binding:"required"`
	URL          string     `json:"url" binding:"required,url"`
	Secret       string     `json:"secret,omitempty"`
	Events       []string   `json:"events" binding:"required"` // типы событий шины или "*"
	Timeout      int        `json:"timeout"`                   // секунды
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	FailureCount int        `json:"failure_count"`
}

// WebhookPayload тело запроса к webhook'у.
type WebhookPayload struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source"`
	ServerID  string          `json:"server_id"`
	Data      json.RawMessage `json:"data"`
}

// WebhookManager пересылает события шины подписанным webhook'ам.
type WebhookManager struct {
	mu         sync.RWMutex
	webhooks   map[uint64]*Webhook
	nextID     uint64
	queue      chan WebhookPayload
	httpClient *http.Client
	serverID   string
	backoff    time.Duration
	sub        eventbus.Subscription
	wg         sync.WaitGroup
}

// NewWebhookManager подписывается на события неба в bus.
func NewWebhookManager(ctx context.Context, bus eventbus.EventBus, serverID string) (*WebhookManager, error) {
	wm := &WebhookManager{
		webhooks:   make(map[uint64]*Webhook),
		nextID:     1,
		queue:      make(chan WebhookPayload, 1000),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		serverID:   serverID,
		backoff:    time.Second,
	}

	sub, err := bus.Subscribe(ctx, eventbus.Filter{
		Types: []string{eventbus.TypeCelestialDay, eventbus.TypeCelestialEclipse},
	}, wm.onEvent)
	if err != nil {
		return nil, err
	}
	wm.sub = sub

	wm.wg.Add(1)
	go wm.eventWorker()
	return wm, nil
}

// Add регистрирует webhook.
func (wm *WebhookManager) Add(w Webhook) *Webhook {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	w.ID = wm.nextID
	wm.nextID++
	w.CreatedAt = time.Now()
	if w.Timeout <= 0 {
		w.Timeout = 10
	}
	if w.RetryCount < 0 {
		w.RetryCount = 0
	}

	wm.webhooks[w.ID] = &w
	out := w
	return &out
}

// List копии всех webhook'ов по возрастанию ID.
func (wm *WebhookManager) List() []Webhook {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	out := make([]Webhook, 0, len(wm.webhooks))
	for _, w := range wm.webhooks {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get копия webhook'а по ID.
func (wm *WebhookManager) Get(id uint64) (Webhook, bool) {
	wm.mu.RLock()
	defer wm.mu.RUnlock()
	w, ok := wm.webhooks[id]
	if !ok {
		return Webhook{}, false
	}
	return *w, true
}

// Delete удаляет webhook.
func (wm *WebhookManager) Delete(id uint64) bool {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if _, ok := wm.webhooks[id]; !ok {
		return false
	}
	delete(wm.webhooks, id)
	return true
}

// Close отписывается от шины и дожидается отправки очереди.
func (wm *WebhookManager) Close() {
	wm.sub.Unsubscribe()
	close(wm.queue)
	wm.wg.Wait()
}

func (wm *WebhookManager) onEvent(_ context.Context, ev *eventbus.Envelope) {
	payload := WebhookPayload{
		EventID:   ev.ID,
		EventType: ev.EventType,
		Timestamp: ev.Timestamp.Unix(),
		Source:    ev.Source,
		ServerID:  wm.serverID,
		Data:      json.RawMessage(ev.Payload),
	}

	defer func() {
		// Отправка в закрытую очередь после Close.
		if recover() != nil {
			logging.Debug("⚠️  Событие %s пришло после остановки webhook'ов", ev.EventType)
		}
	}()
	select {
	case wm.queue <- payload:
	default:
		logging.Warn("⚠️  Очередь webhook'ов переполнена, событие %s пропущено", ev.EventType)
	}
}

func (wm *WebhookManager) eventWorker() {
	defer wm.wg.Done()
	for payload := range wm.queue {
		wm.mu.RLock()
		targets := make([]*Webhook, 0)
		for _, w := range wm.webhooks {
			if subscribedTo(w, payload.EventType) {
				targets = append(targets, w)
			}
		}
		wm.mu.RUnlock()

		for _, w := range targets {
			wm.deliver(w, payload)
		}
	}
}

func subscribedTo(w *Webhook, eventType string) bool {
	for _, e := range w.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// deliver отправляет событие с повторами; статистика обновляется под блокировкой.
func (wm *WebhookManager) deliver(w *Webhook, payload WebhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error("❌ Ошибка маршалинга события для webhook %s: %v", w.Name, err)
		return
	}

	wm.mu.RLock()
	url, secret, timeout, retries := w.URL, w.Secret, w.Timeout, w.RetryCount
	wm.mu.RUnlock()

	success := false
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * wm.backoff)
		}
		status, err := wm.post(url, secret, timeout, payload.EventType, body)
		if err != nil {
			logging.Warn("⚠️  Попытка %d/%d для webhook %s: %v", attempt+1, retries+1, w.Name, err)
			continue
		}
		if status >= 200 && status < 300 {
			success = true
			logging.Debug("✅ Событие %s отправлено в webhook %s", payload.EventType, w.Name)
			break
		}
		logging.Warn("⚠️  Webhook %s вернул статус %d на попытке %d", w.Name, status, attempt+1)
	}

	wm.mu.Lock()
	now := time.Now()
	w.LastUsed = &now
	if !success {
		w.FailureCount++
	}
	wm.mu.Unlock()
}

func (wm *WebhookManager) post(url, secret string, timeout int, eventType string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Celestial-Server/1.0")
	req.Header.Set("X-Event-Type", eventType)
	req.Header.Set("X-Server-ID", wm.serverID)
	if secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, secret))
	}

	resp, err := wm.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Sign HMAC-SHA256 подпись тела в формате "sha256=<hex>".
func Sign(data []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// === HTTP handlers ===

func (rs *RestServer) handleGetWebhooks(c *gin.Context) {
	respondOK(c, "Webhook'и", rs.webhooks.List())
}

func (rs *RestServer) handleCreateWebhook(c *gin.Context) {
	var w Webhook
	if err := c.ShouldBindJSON(&w); err != nil {
		respondError(c, http.StatusBadRequest, "Неверный формат запроса: "+err.Error())
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Webhook создан",
		Data:    rs.webhooks.Add(w),
	})
}

func (rs *RestServer) handleGetWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неверный ID")
		return
	}
	w, ok := rs.webhooks.Get(id)
	if !ok {
		respondError(c, http.StatusNotFound, "Webhook не найден")
		return
	}
	respondOK(c, "Webhook", w)
}

func (rs *RestServer) handleDeleteWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неверный ID")
		return
	}
	if !rs.webhooks.Delete(id) {
		respondError(c, http.StatusNotFound, "Webhook не найден")
		return
	}
	respondOK(c, "Webhook удалён", nil)
}
