package domain

import "time"

// User 用户 profile 的类型化视图
// profile 文档是弱类型的（role 等字段存在历史写法），
// 解析时只取已知字段，role 的规范化由 identity 包负责
type User struct {
	UID       string
	Role      string // 原始 role 值，未规范化
	FirstName string
	LastName  string
	Email     string
	Phone     string

	// 主用户的打卡计划
	CheckinIntervalHours int
	LastCheckinAt        time.Time
	NextCheckinDue       time.Time
}

// ParseUser 从 profile 文档解出用户
func ParseUser(uid string, data map[string]any) *User {
	u := &User{UID: uid}
	u.Role, _ = data["role"].(string)
	u.FirstName, _ = data["firstName"].(string)
	u.LastName, _ = data["lastName"].(string)
	u.Email, _ = data["email"].(string)
	u.Phone, _ = data["phone"].(string)

	if v, ok := data["checkinIntervalHours"].(float64); ok {
		u.CheckinIntervalHours = int(v)
	}
	if s, _ := data["lastCheckinAt"].(string); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			u.LastCheckinAt = t
		}
	}
	if s, _ := data["nextCheckinDue"].(string); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			u.NextCheckinDue = t
		}
	}
	return u
}
