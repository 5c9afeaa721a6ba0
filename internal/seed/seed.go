// Package seed 从 YAML 文件导入角色、用户、模板和设备
//
// 导入是幂等的: 同一文件重复导入只会更新已有记录。
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mautops/checklist-gin/internal/authority"
	"github.com/mautops/checklist-gin/internal/checklist"
	"github.com/mautops/checklist-gin/internal/model"
	"github.com/mautops/checklist-gin/internal/repository"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixture 导入文件内容
type Fixture struct {
	Roles     []Role     `yaml:"roles"`
	Users     []User     `yaml:"users"`
	Templates []Template `yaml:"templates"`
	Machines  []Machine  `yaml:"machines"`
}

// Role 角色
type Role struct {
	ID          string                       `yaml:"id"`
	Name        string                       `yaml:"name"`
	Modules     []authority.ModulePermission `yaml:"modules"`
	Authorities []authority.Authority        `yaml:"authorities"`
	// 旧版可复核角色列表,导入后按查看和打分权限处理
	ControllableRoles []string `yaml:"controllable_roles"`
}

// User 用户
type User struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Status  string   `yaml:"status"`
	RoleIDs []string `yaml:"roles"`
}

// Template 检查单模板
type Template struct {
	ID          string                   `yaml:"id"`
	Name        string                   `yaml:"name"`
	Category    string                   `yaml:"category"`
	Periodicity string                   `yaml:"periodicity"`
	Items       []checklist.TemplateItem `yaml:"items"`
}

// Machine 用户可操作的设备
type Machine struct {
	UserID    string `yaml:"user"`
	MachineID string `yaml:"machine"`
	Active    *bool  `yaml:"active"`
}

// Summary 导入结果
type Summary struct {
	Roles     int
	Users     int
	Templates int
	Machines  int
}

// LoadFile 读取导入文件
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load 解析导入内容,未知字段视为错误
func Load(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		if err == io.EOF {
			return &fx, nil
		}
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &fx, nil
}

// Apply 在一个事务中写入全部记录
func Apply(ctx context.Context, db *gorm.DB, fx *Fixture) (*Summary, error) {
	sum := &Summary{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles := repository.NewRoleRepository(tx)
		for _, r := range fx.Roles {
			if err := roles.Save(ctx, toRoleModel(r)); err != nil {
				return fmt.Errorf("role %q: %w", r.ID, err)
			}
			sum.Roles++
		}

		users := repository.NewUserRepository(tx)
		for _, u := range fx.Users {
			if err := users.Save(ctx, &model.UserModel{ID: u.ID, Name: u.Name, Status: u.Status, RoleIDs: u.RoleIDs}); err != nil {
				return fmt.Errorf("user %q: %w", u.ID, err)
			}
			sum.Users++
		}

		templates := repository.NewTemplateRepository(tx)
		for _, t := range fx.Templates {
			err := templates.Save(ctx, &model.ChecklistTemplateModel{
				ID:          t.ID,
				Name:        t.Name,
				Category:    t.Category,
				Periodicity: t.Periodicity,
				Items:       t.Items,
			})
			if err != nil {
				return fmt.Errorf("template %q: %w", t.ID, err)
			}
			sum.Templates++
		}

		machines := repository.NewMachineRepository(tx)
		for _, m := range fx.Machines {
			active := m.Active == nil || *m.Active
			if err := machines.SetActive(ctx, m.UserID, m.MachineID, active); err != nil {
				return fmt.Errorf("machine %q for %q: %w", m.MachineID, m.UserID, err)
			}
			sum.Machines++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func toRoleModel(r Role) *model.RoleModel {
	rm := &model.RoleModel{
		ID:                      r.ID,
		Name:                    r.Name,
		LegacyControllableRoles: r.ControllableRoles,
	}
	for _, m := range r.Modules {
		rm.Modules = append(rm.Modules, model.RoleModulePermissionModel{
			Module:  m.Module,
			CanView: m.CanView,
			CanEdit: m.CanEdit,
		})
	}
	for _, a := range r.Authorities {
		// 固定 ID,重复导入时覆盖同一条边
		rm.Authorities = append(rm.Authorities, model.ChecklistAuthorityModel{
			ID:           r.ID + ":" + a.TargetRoleID,
			TargetRoleID: a.TargetRoleID,
			CanView:      a.CanView,
			CanScore:     a.CanScore,
			CanApprove:   a.CanApprove,
		})
	}
	return rm
}
