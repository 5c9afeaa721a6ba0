package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/model"
	"github.com/mautops/checklist-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventType 事件类型
type EventType string

const (
	EventTaskAssigned      EventType = "task.assigned"
	EventTaskStarted       EventType = "task.started"
	EventTaskCompleted     EventType = "task.completed"
	EventTaskScored        EventType = "task.scored"
	EventTaskApproved      EventType = "task.approved"
	EventTaskRejected      EventType = "task.rejected"
	EventTaskCancelled     EventType = "task.cancelled"
	EventTaskBuddyMirrored EventType = "task.buddy_mirrored"
)

// TaskInfo 事件中的任务摘要
type TaskInfo struct {
	ID                string  `json:"id"`
	Kind              string  `json:"kind"`
	OwnerID           string  `json:"owner_id"`
	TemplateID        string  `json:"template_id"`
	Status            string  `json:"status"`
	TotalScore        float64 `json:"total_score"`
	ControlTotalScore float64 `json:"control_total_score"`
}

// Event 任务通知事件
type Event struct {
	ID    string    `json:"id"`
	Type  EventType `json:"type"`
	Time  time.Time `json:"time"`
	Actor string    `json:"actor,omitempty"`
	Task  *TaskInfo `json:"task"`
}

// NewTaskEvent 根据任务构建事件
func NewTaskEvent(eventType EventType, task *checklist.Task, actor string) *Event {
	return &Event{
		ID:    uuid.New().String(),
		Type:  eventType,
		Time:  time.Now(),
		Actor: actor,
		Task: &TaskInfo{
			ID:                task.ID,
			Kind:              string(task.Kind),
			OwnerID:           task.OwnerID,
			TemplateID:        task.TemplateID,
			Status:            string(task.Status),
			TotalScore:        task.TotalScore,
			ControlTotalScore: task.ControlTotalScore,
		},
	}
}

// Notifier 通知接口,实时投递由外部系统负责
type Notifier interface {
	Notify(ctx context.Context, evt *Event) error
	// Replay 重新投递发件箱中的待处理事件
	Replay(ctx context.Context) (int, error)
	Stop()
}

// NotifierOptions 通知器配置
type NotifierOptions struct {
	WebhookURL string
	Workers    int
	QueueSize  int
	MaxRetries int
	Timeout    time.Duration
	// InitialInterval 首次重试间隔,默认 1 秒
	InitialInterval time.Duration
	// ClaimTimeout 认领超过该时长仍未完成的事件在 Replay 时退回 pending,默认 5 分钟
	ClaimTimeout time.Duration
}

// dbNotifier 基于数据库发件箱的通知器
// 事件先落库,再由 worker 异步推送到 Webhook
type dbNotifier struct {
	eventRepo  repository.EventRepository
	httpClient *http.Client
	opts       NotifierOptions
	logger     *logrus.Logger
	queue      chan string
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewNotifier 创建通知器并启动 worker
func NewNotifier(db *gorm.DB, opts NotifierOptions, logger *logrus.Logger) Notifier {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	n := &dbNotifier{
		eventRepo:  repository.NewEventRepository(db),
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     logger,
		queue:      make(chan string, opts.QueueSize),
		stop:       make(chan struct{}),
	}

	// 启动 worker goroutines
	for i := 0; i < opts.Workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}

	return n
}

// Notify 持久化事件并入队
func (n *dbNotifier) Notify(ctx context.Context, evt *Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	now := time.Now()
	row := &model.EventModel{
		ID:        evt.ID,
		TaskID:    evt.Task.ID,
		Type:      string(evt.Type),
		Data:      data,
		Status:    model.EventStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := n.eventRepo.Save(ctx, row); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	n.enqueue(row.ID)
	return nil
}

// Replay 把发件箱中的待处理事件重新入队
func (n *dbNotifier) Replay(ctx context.Context) (int, error) {
	released, err := n.eventRepo.ReleaseStale(ctx, time.Now().Add(-n.opts.ClaimTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to release stale events: %w", err)
	}
	if released > 0 {
		n.logger.WithField("count", released).Warn("released stale event claims")
	}

	pending, err := n.eventRepo.FindPending(ctx, n.opts.QueueSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending events: %w", err)
	}
	for _, evt := range pending {
		n.enqueue(evt.ID)
	}
	return len(pending), nil
}

func (n *dbNotifier) enqueue(id string) {
	select {
	case n.queue <- id:
	default:
		// 队列满时事件留在发件箱,等待 Replay
		n.logger.WithField("event_id", id).Warn("event queue full, event left pending")
	}
}

// worker 事件投递 worker
func (n *dbNotifier) worker() {
	defer n.wg.Done()
	for {
		select {
		case id := <-n.queue:
			n.deliver(id)
		case <-n.stop:
			return
		}
	}
}

// deliver 推送单个事件,失败时指数退避重试
func (n *dbNotifier) deliver(id string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-n.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// 同一事件可能被 Notify 和 Replay 重复入队,只有认领成功的 worker 投递
	claimed, err := n.eventRepo.Claim(ctx, id)
	if err != nil {
		n.logger.WithError(err).WithField("event_id", id).Error("failed to claim event")
		return
	}
	if !claimed {
		return
	}

	evt, err := n.eventRepo.FindByID(ctx, id)
	if err != nil {
		n.logger.WithError(err).WithField("event_id", id).Error("failed to load event")
		n.release(ctx, id)
		return
	}

	// 未配置 Webhook 时只保留发件箱记录
	if n.opts.WebhookURL == "" {
		n.markResult(ctx, evt, model.EventStatusSuccess, 0, "")
		return
	}

	attempts := 0
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = n.opts.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(n.opts.MaxRetries)), ctx)

	err = backoff.Retry(func() error {
		attempts++
		return n.post(ctx, evt.Data)
	}, policy)

	if err != nil && ctx.Err() != nil {
		// 停止时中断的投递留在发件箱,下次启动 Replay
		n.logger.WithFields(logrus.Fields{
			"event_id": evt.ID,
			"attempts": attempts,
		}).Info("webhook delivery interrupted by shutdown, event left pending")
		n.release(ctx, evt.ID)
		return
	}
	if err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"event_id": evt.ID,
			"type":     evt.Type,
			"attempts": attempts,
		}).Error("webhook delivery failed")
		n.markResult(ctx, evt, model.EventStatusFailed, attempts-1, err.Error())
		return
	}
	n.markResult(ctx, evt, model.EventStatusSuccess, attempts-1, "")
}

// post 发送 Webhook 请求,4xx 不重试
func (n *dbNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.opts.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("webhook returned status code: %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}
}

func (n *dbNotifier) markResult(ctx context.Context, evt *model.EventModel, status string, retries int, lastError string) {
	if err := n.eventRepo.MarkResult(context.WithoutCancel(ctx), evt.ID, status, retries, lastError); err != nil {
		n.logger.WithError(err).WithField("event_id", evt.ID).Error("failed to update event status")
	}
}

func (n *dbNotifier) release(ctx context.Context, id string) {
	if err := n.eventRepo.Release(context.WithoutCancel(ctx), id); err != nil {
		n.logger.WithError(err).WithField("event_id", id).Error("failed to release event")
	}
}

// Stop 停止通知器并等待 worker 退出
func (n *dbNotifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.stop)
	})
	n.wg.Wait()
}
