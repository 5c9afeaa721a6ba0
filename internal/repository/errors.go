package repository

import (
	"errors"

	"github.com/mautops/checklist-gin/internal/checklist"
	"gorm.io/gorm"
)

// notFound 把 gorm 的记录不存在错误转换为 checklist.NotFound
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return checklist.NotFound(format, args...)
	}
	return err
}
