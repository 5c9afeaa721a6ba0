package checklist

import "time"

// MirrorControlScores 管理覆盖: 把主任务打分结果写入搭档任务
//
// 这不是执行人驱动的状态转换,会绕过搭档任务自身的状态校验,
// 只要求两边都是工作任务,且搭档任务处于 completed 或 approved。不要在 Score/Approve 路径上复用。
func MirrorControlScores(primary, buddy *Task, now time.Time) (*Task, error) {
	if primary == nil || buddy == nil {
		return nil, NotFound("primary and buddy tasks are required")
	}
	if primary.ID == buddy.ID {
		return nil, DataIntegrity("task %q cannot be its own buddy", primary.ID)
	}
	if primary.Kind != KindWorkTask || buddy.Kind != KindWorkTask {
		return nil, DataIntegrity("buddy sync requires two worktasks, got %s %q and %s %q",
			primary.Kind, primary.ID, buddy.Kind, buddy.ID)
	}
	if primary.TemplateID != buddy.TemplateID {
		return nil, DataIntegrity("buddy task %q uses template %q, primary uses %q",
			buddy.ID, buddy.TemplateID, primary.TemplateID)
	}
	if primary.Status != StatusApproved {
		return nil, InvalidTransition("primary task %q is %s, not scored", primary.ID, primary.Status)
	}
	if buddy.Status != StatusCompleted && buddy.Status != StatusApproved {
		return nil, InvalidTransition("buddy task %q is %s", buddy.ID, buddy.Status)
	}

	next := buddy.Clone()
	var share float64
	if len(next.Items) > 0 {
		share = primary.ControlTotalScore / float64(len(next.Items))
	}
	for i := range next.Items {
		if i < len(primary.Items) {
			next.Items[i].ControlPoints = primary.Items[i].ControlPoints
			next.Items[i].ControlComment = primary.Items[i].ControlComment
		} else {
			next.Items[i].ControlPoints = share
			next.Items[i].ControlComment = ""
		}
		next.Items[i].ControlSource = ControlSourceBuddy
	}
	next.ControlTotalScore = primary.ControlTotalScore
	next.TotalScore = primary.ControlTotalScore
	next.ControlNote = primary.ControlNote
	next.Status = StatusApproved
	next.ScorerID = primary.ScorerID
	next.DeciderID = primary.DeciderID
	next.ScoredAt = &now
	next.DecidedAt = &now
	next.UpdatedAt = now
	return next, nil
}
