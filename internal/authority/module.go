package authority

// HasModuleAccess 判断任一角色是否拥有模块权限,edit 为 true 时要求编辑权限
func HasModuleAccess(roles []*Role, module string, edit bool) bool {
	for _, r := range roles {
		if r == nil {
			continue
		}
		for _, m := range r.Modules {
			if m.Module != module {
				continue
			}
			if edit && m.CanEdit {
				return true
			}
			if !edit && (m.CanView || m.CanEdit) {
				return true
			}
		}
	}
	return false
}
