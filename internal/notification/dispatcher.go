// Package notification - рендеринг и доставка push-уведомлений через очередь задач.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"suchat_backend/internal/logger"
	"suchat_backend/internal/models"
	"suchat_backend/internal/queue"
	"suchat_backend/internal/repositories"
)

// JobSendPush - имя задачи доставки в очереди
const JobSendPush = "send-push"

// SendPushJob - данные задачи: кому и что отправить
type SendPushJob struct {
	UserID string         `json:"userId"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Icon   string         `json:"icon,omitempty"`
	Badge  string         `json:"badge,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Tag    string         `json:"tag,omitempty"`
}

// Payload - то, что получает service worker клиента
type Payload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon"`
	Badge string         `json:"badge"`
	Data  map[string]any `json:"data"`
	Tag   string         `json:"tag"`
}

// Result - итог обработки задачи
type Result struct {
	Success     bool   `json:"success"`
	Sent        int    `json:"sent"`
	Deactivated int    `json:"deactivated"`
	Failed      int    `json:"failed"`
	Message     string `json:"message,omitempty"`
}

type Defaults struct {
	Icon  string
	Badge string
}

// Notifier - постановка уведомления в очередь
type Notifier interface {
	Enqueue(ctx context.Context, job SendPushJob) (queue.Handle, error)
}

type Dispatcher struct {
	subs     repositories.PushSubscriptionRepository
	sender   Sender
	queue    *queue.Queue
	defaults Defaults
	now      func() time.Time
}

func NewDispatcher(subs repositories.PushSubscriptionRepository, sender Sender, q *queue.Queue, defaults Defaults) *Dispatcher {
	return &Dispatcher{
		subs:     subs,
		sender:   sender,
		queue:    q,
		defaults: defaults,
		now:      time.Now,
	}
}

// Enqueue ставит задачу и сразу возвращает её handle.
func (d *Dispatcher) Enqueue(ctx context.Context, job SendPushJob) (queue.Handle, error) {
	if job.UserID == "" {
		return queue.Handle{}, errors.New("push job: user id is required")
	}
	return d.queue.Add(ctx, JobSendPush, job)
}

// Handle - обработчик задач очереди для воркера.
func (d *Dispatcher) Handle(ctx context.Context, j *queue.Job) (any, error) {
	if j.Name != JobSendPush {
		return nil, queue.Unrecoverable(fmt.Errorf("unknown job %q", j.Name))
	}
	var job SendPushJob
	if err := queue.DecodePayload(j, &job); err != nil {
		return nil, err
	}
	return d.Deliver(ctx, job)
}

// Render заполняет значения по умолчанию и сериализует payload.
func (d *Dispatcher) Render(job SendPushJob) ([]byte, error) {
	p := Payload{
		Title: job.Title,
		Body:  job.Body,
		Icon:  job.Icon,
		Badge: job.Badge,
		Data:  job.Data,
		Tag:   job.Tag,
	}
	if p.Icon == "" {
		p.Icon = d.defaults.Icon
	}
	if p.Badge == "" {
		p.Badge = d.defaults.Badge
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	if p.Tag == "" {
		p.Tag = "msg-" + strconv.FormatInt(d.now().UnixMilli(), 10)
	}
	return json.Marshal(p)
}

// Deliver отправляет payload на все активные подписки пользователя.
// 404/410 деактивируют подписку; прочие ошибки возвращаются, чтобы
// очередь повторила задачу целиком.
func (d *Dispatcher) Deliver(ctx context.Context, job SendPushJob) (*Result, error) {
	log := logger.FromContext(ctx).With("user_id", job.UserID)

	subs, err := d.subs.FindActiveByUser(ctx, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		log.Debug("no active push subscriptions")
		return &Result{Success: false, Message: "no subscriptions"}, nil
	}

	payload, err := d.Render(job)
	if err != nil {
		return nil, queue.Unrecoverable(fmt.Errorf("render payload: %w", err))
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		result    Result
		transient []error
	)
	for i := range subs {
		sub := subs[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			sendErr := d.sender.Send(ctx, targetOf(&sub), payload)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case sendErr == nil:
				result.Sent++
			case IsPermanent(sendErr):
				result.Deactivated++
				if derr := d.subs.Deactivate(ctx, sub.ID); derr != nil {
					log.Error("failed to deactivate push subscription", "subscription_id", sub.ID, "error", derr)
				} else {
					log.Info("push subscription expired, deactivated", "subscription_id", sub.ID, "device_id", sub.DeviceID)
				}
			default:
				result.Failed++
				transient = append(transient, fmt.Errorf("device %s: %w", sub.DeviceID, sendErr))
			}
		}()
	}
	wg.Wait()

	result.Success = result.Sent > 0
	if len(transient) > 0 {
		return &result, fmt.Errorf("push delivery failed for %d of %d subscriptions: %w",
			len(transient), len(subs), errors.Join(transient...))
	}
	return &result, nil
}

func targetOf(sub *models.PushSubscription) Target {
	return Target{Endpoint: sub.Endpoint, P256dh: sub.P256dh, Auth: sub.Auth}
}
