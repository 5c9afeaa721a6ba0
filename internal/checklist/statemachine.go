package checklist

// StateMachine 检查任务状态转换表
type StateMachine struct {
	transitions map[Status][]Status
}

// NewStateMachine 创建默认状态机
//
//	assigned  -> started | completed | cancelled
//	started   -> completed | cancelled
//	completed -> approved | rejected
func NewStateMachine() *StateMachine {
	return &StateMachine{
		transitions: map[Status][]Status{
			StatusAssigned:  {StatusStarted, StatusCompleted, StatusCancelled},
			StatusStarted:   {StatusCompleted, StatusCancelled},
			StatusCompleted: {StatusApproved, StatusRejected},
		},
	}
}

// CanTransition 判断状态转换是否允许
func (sm *StateMachine) CanTransition(from, to Status) bool {
	for _, s := range sm.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Check 校验状态转换,不允许时返回 InvalidTransition
func (sm *StateMachine) Check(from, to Status) error {
	if !sm.CanTransition(from, to) {
		return InvalidTransition("cannot move task from %q to %q", from, to)
	}
	return nil
}
