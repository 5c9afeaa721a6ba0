package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher 执行请求完成后的异步副作用(缓存失效、通知、审计)
// 副作用失败只记录日志,不影响已经提交的状态转换
type Dispatcher struct {
	logger  *logrus.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher 创建副作用调度器
func NewDispatcher(logger *logrus.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{logger: logger, timeout: timeout}
}

// Go 在脱离请求取消的 context 上异步执行 fn
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"side_effect": name,
				"request_id":  RequestInfoFromContext(ctx).RequestID,
			}).Warn("side effect failed")
		}
	}()
}

// Wait 等待所有进行中的副作用结束
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
