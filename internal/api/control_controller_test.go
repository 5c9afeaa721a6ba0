package api_test

import (
	"net/http"
	"testing"

	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestControlController_ListAndScore 测试待复核列表和打分
func TestControlController_ListAndScore(t *testing.T) {
	s := newTestServer(t)
	task := assignAndComplete(t, s)

	w := s.do(t, http.MethodGet, "/api/v1/controls/tasks", "sup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var groups []service.MachineGroup
	decodeData(t, w, &groups)
	require.Len(t, groups, 1)
	assert.Equal(t, "press-1", groups[0].MachineID)

	w = s.do(t, http.MethodGet, "/api/v1/controls/tasks", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &groups)
	assert.Empty(t, groups)

	// 旧版列表授予查看和打分,不授予审批
	w = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/approve", "aud", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/score", "sup", map[string]interface{}{
		"scores": []map[string]interface{}{{"points": 11}, {"points": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/score", "sup", map[string]interface{}{
		"scores": []map[string]interface{}{{"points": 9, "comment": "minor leak"}, {"points": 0}},
		"note":   "night shift",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.Result
	decodeData(t, w, &res)
	assert.Equal(t, checklist.StatusApproved, res.Task.Status)
	assert.Equal(t, 9.0, res.Task.ControlTotalScore)

	w = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/reject", "sup", map[string]string{"note": "late"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// TestControlController_Reject 测试驳回
func TestControlController_Reject(t *testing.T) {
	s := newTestServer(t)
	task := assignAndComplete(t, s)

	w := s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/reject", "sup", map[string]string{"note": "redo"})
	require.Equal(t, http.StatusOK, w.Code)
	var res service.Result
	decodeData(t, w, &res)
	assert.Equal(t, checklist.StatusRejected, res.Task.Status)
	assert.Equal(t, "task rejected", res.Message)
}
