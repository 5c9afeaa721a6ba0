package checklist

// Sum 对任意元素序列按 selector 求和
// 纯函数,生命周期状态机和搭档分数同步共用,保证两边计算结果一致
func Sum[T any](items []T, selector func(T) float64) float64 {
	var total float64
	for _, item := range items {
		total += selector(item)
	}
	return total
}

// AwardedTotal 计算已回答检查项的得分合计
func AwardedTotal(items []Item) float64 {
	return Sum(items, func(it Item) float64 {
		if !it.Answered {
			return 0
		}
		return it.AwardedPoints
	})
}

// ControlTotal 计算检查项的复核分合计
func ControlTotal(items []Item) float64 {
	return Sum(items, func(it Item) float64 { return it.ControlPoints })
}
