// Package checklist 实现检查单任务的生命周期状态机、分数汇总和搭档分数同步。
//
// 包内只有纯计算: 所有方法在任务副本上执行转换,不做任何 I/O。
// 持久化、权限校验和副作用由 integration 与 service 层负责。
package checklist
