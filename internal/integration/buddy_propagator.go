package integration

import (
	"context"
	"errors"
	"time"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/metrics"
	"github.com/sirupsen/logrus"
)

// BuddyOutcome 搭档同步结果
type BuddyOutcome string

const (
	// BuddyNotApplicable 不是带搭档的作业任务
	BuddyNotApplicable BuddyOutcome = "not_applicable"
	BuddyMirrored      BuddyOutcome = "mirrored"
	BuddySkipped       BuddyOutcome = "skipped"
	BuddyFailed        BuddyOutcome = "failed"
)

// BuddyPropagator 把主任务的复核分同步到搭档的同模板任务
// 同步失败只记录日志和指标,不影响主任务
type BuddyPropagator struct {
	tasks  TaskManager
	logger *logrus.Logger
	now    func() time.Time
}

// NewBuddyPropagator 创建搭档同步器
func NewBuddyPropagator(tasks TaskManager, logger *logrus.Logger) *BuddyPropagator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BuddyPropagator{tasks: tasks, logger: logger, now: time.Now}
}

// Propagate 在主任务打分成功后执行同步,返回同步结果和写入后的搭档任务
func (p *BuddyPropagator) Propagate(ctx context.Context, primary *checklist.Task) (BuddyOutcome, *checklist.Task) {
	if primary.Kind != checklist.KindWorkTask || !primary.HasBuddy() {
		return BuddyNotApplicable, nil
	}

	log := p.logger.WithFields(logrus.Fields{
		"task_id":     primary.ID,
		"buddy_id":    primary.BuddyID,
		"template_id": primary.TemplateID,
	})

	buddy, err := p.tasks.FindBuddyMatch(ctx, primary.BuddyID, primary.TemplateID, primary.ID)
	if err != nil {
		if errors.Is(err, checklist.ErrNotFound) {
			log.Warn("buddy has no completed task for this template, propagation skipped")
			metrics.RecordBuddyPropagation(string(BuddySkipped))
			return BuddySkipped, nil
		}
		return p.fail(log, err, "failed to look up buddy task"), nil
	}

	mirrored, err := checklist.MirrorControlScores(primary, buddy, p.now())
	if err != nil {
		return p.fail(log.WithField("buddy_task_id", buddy.ID), err, "buddy task cannot take the primary's scores"), nil
	}

	reason := "control scores mirrored from task " + primary.ID
	if err := p.tasks.Override(ctx, buddy, mirrored, OperationBuddyMirror, primary.ScorerID, reason); err != nil {
		return p.fail(log.WithField("buddy_task_id", buddy.ID), err, "failed to write buddy task"), nil
	}

	log.WithField("buddy_task_id", mirrored.ID).Info("control scores mirrored to buddy task")
	metrics.RecordBuddyPropagation(string(BuddyMirrored))
	return BuddyMirrored, mirrored
}

func (p *BuddyPropagator) fail(log *logrus.Entry, err error, msg string) BuddyOutcome {
	if kind, ok := checklist.KindOf(err); ok {
		log = log.WithField("error_kind", string(kind))
	}
	log.WithError(err).Warn(msg)
	metrics.RecordBuddyPropagation(string(BuddyFailed))
	return BuddyFailed
}
