package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"suchat_backend/internal/app"
	"suchat_backend/internal/auth"
	"suchat_backend/internal/notification"
	"suchat_backend/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TestServer - веб-процесс целиком поверх sqlite в памяти.
// Push-задачи не уходят наружу: их забирает DrainPush и пишет в Sent.
type TestServer struct {
	Server *httptest.Server
	App    *app.Server
	Infra  *app.Infra
	Sender *RecordingSender
	secret string
}

// RecordingSender запоминает доставленные payload по endpoint
type RecordingSender struct {
	mu   sync.Mutex
	sent map[string][][]byte
}

func (s *RecordingSender) Send(_ context.Context, target notification.Target, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = map[string][][]byte{}
	}
	s.sent[target.Endpoint] = append(s.sent[target.Endpoint], payload)
	return nil
}

// Payloads - разобранные payload, доставленные на endpoint
func (s *RecordingSender) Payloads(t *testing.T, endpoint string) []notification.Payload {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notification.Payload, 0, len(s.sent[endpoint]))
	for _, raw := range s.sent[endpoint] {
		var p notification.Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("Некорректный push payload: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := TestConfig()
	infra, err := app.NewInfra(cfg)
	if err != nil {
		t.Fatalf("Не удалось поднять инфраструктуру: %v", err)
	}

	sender := &RecordingSender{}
	infra.Dispatcher = notification.NewDispatcher(infra.Store.Subscriptions, sender, infra.Queue, notification.Defaults{
		Icon:  cfg.Push.Icon,
		Badge: cfg.Push.Badge,
	})

	srv := app.NewServer(cfg, infra)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Manager.Run(ctx)
	}()

	server := httptest.NewServer(srv.Router)
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
		infra.Close()
	})

	return &TestServer{
		Server: server,
		App:    srv,
		Infra:  infra,
		Sender: sender,
		secret: cfg.JWT.Secret,
	}
}

// Token выпускает JWT для пользователя
func (ts *TestServer) Token(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(ts.secret, userID, "", time.Hour)
	if err != nil {
		t.Fatalf("Не удалось выпустить токен: %v", err)
	}
	return token
}

// DrainPush доставляет все готовые push-задачи и возвращает их число
func (ts *TestServer) DrainPush(t *testing.T) int {
	t.Helper()
	w := queue.NewWorker(ts.Infra.Queue, ts.Infra.Dispatcher.Handle, queue.WorkerOptions{Concurrency: 1})
	n, err := w.Drain(context.Background())
	if err != nil {
		t.Fatalf("Ошибка доставки push: %v", err)
	}
	return n
}

// DialWS открывает websocket-соединение с токеном в query
func (ts *TestServer) DialWS(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws?token=" + token
	conn, res, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if res != nil {
			status = res.StatusCode
		}
		t.Fatalf("Не удалось подключиться к websocket (status %d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (ts *TestServer) SendRequest(t *testing.T, method, path, token string, body interface{}) (*http.Response, string) {
	t.Helper()
	url := ts.Server.URL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Ошибка кодирования JSON для запроса: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("Ошибка создания HTTP-запроса: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("Ошибка отправки HTTP-запроса: %v", err)
	}
	defer res.Body.Close()

	resBodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("Ошибка чтения тела ответа: %v", err)
	}

	return res, string(resBodyBytes)
}
