package authority

// Normalize 合并新旧两种复核权限形态,只在角色加载时执行一次
//
// 旧形态是可复核角色 ID 列表,等价于 {view, score} 边;
// 同一目标同时存在新形态的边时以新形态为准。
func Normalize(edges []Authority, legacy []string) []Authority {
	out := make([]Authority, 0, len(edges)+len(legacy))
	seen := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		if e.TargetRoleID != "" {
			seen[e.TargetRoleID] = struct{}{}
		}
		out = append(out, e)
	}
	for _, target := range legacy {
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, Authority{TargetRoleID: target, CanView: true, CanScore: true})
	}
	return out
}
