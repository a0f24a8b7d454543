package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"suchat_backend/internal/logger"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Target - учётные данные Web Push одного устройства
type Target struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Sender доставляет готовый payload на одно устройство.
type Sender interface {
	Send(ctx context.Context, target Target, payload []byte) error
}

// DeliveryError - push-сервис ответил не-2xx статусом
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("push service responded %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("push service responded %d", e.StatusCode)
}

// Permanent - подписка больше не существует (410 Gone, 404 Not Found)
func (e *DeliveryError) Permanent() bool {
	return e.StatusCode == http.StatusGone || e.StatusCode == http.StatusNotFound
}

// IsPermanent - ошибка означает, что подписку надо деактивировать, а не повторять
func IsPermanent(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de) && de.Permanent()
}

type WebPushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             int
	Timeout         time.Duration
}

// WebPushSender шифрует и отправляет payload по VAPID.
type WebPushSender struct {
	cfg    WebPushConfig
	client *http.Client
}

func NewWebPushSender(cfg WebPushConfig) *WebPushSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &WebPushSender{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *WebPushSender) Send(ctx context.Context, target Target, payload []byte) error {
	sub := &webpush.Subscription{
		Endpoint: target.Endpoint,
		Keys: webpush.Keys{
			P256dh: target.P256dh,
			Auth:   target.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		HTTPClient: s.client,
		// библиотека сама добавляет схему mailto:
		Subscriber:      strings.TrimPrefix(s.cfg.Subject, "mailto:"),
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// LogSender используется без VAPID-ключей: только пишет в лог.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, target Target, payload []byte) error {
	logger.CtxDebug(ctx, "push delivery skipped, vapid keys not configured",
		"endpoint", target.Endpoint,
		"payload_bytes", len(payload),
	)
	return nil
}
