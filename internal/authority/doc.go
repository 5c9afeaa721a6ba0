// Package authority 解析角色之间的检查单复核权限。
//
// 权限图是稀疏的有向图: 每个角色带若干条 Authority 边,指向它可以
// 查看(view)、打分(score)或审批(approve)的下级角色。没有边就没有权限。
// 管理员角色不是边,而是在读取边之前直接返回全集。
//
// 新旧两种存储形态在加载角色时通过 Normalize 合并一次,
// 解析阶段只面对归一化后的 Authority。
package authority
