package identity

import "strings"

// Role 用户角色（封闭枚举）
// 未知值映射为 RoleUnknown，调用方必须显式处理，而不是得到空值
type Role string

const (
	RoleMainUser         Role = "main_user"
	RoleEmergencyContact Role = "emergency_contact"
	RoleAdmin            Role = "admin"
	RoleUnknown          Role = "unknown"
)

// roleAliases 历史/同义角色名 → 规范角色
// profile 文档中的 role 字段是弱类型的，历史上出现过多种写法
var roleAliases = map[string]Role{
	"main_user":         RoleMainUser,
	"mainuser":          RoleMainUser,
	"main":              RoleMainUser,
	"user":              RoleMainUser,
	"emergency_contact": RoleEmergencyContact,
	"emergencycontact":  RoleEmergencyContact,
	"contact":           RoleEmergencyContact,
	"ec":                RoleEmergencyContact,
	"admin":             RoleAdmin,
	"administrator":     RoleAdmin,
}

// NormalizeRole 把 profile 文档中的 role 值规范化为封闭枚举
func NormalizeRole(v string) Role {
	key := strings.ToLower(strings.TrimSpace(v))
	key = strings.ReplaceAll(key, "-", "_")
	if role, ok := roleAliases[key]; ok {
		return role
	}
	return RoleUnknown
}
