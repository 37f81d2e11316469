package domain

import "time"

// 邀请状态
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
)

// Invite 待接受的联系人邀请（id + 随机 token 双重校验）
type Invite struct {
	ID            string
	MainUserUid   string
	Email         string // 已规范化
	Token         string
	Status        string
	Relation      string
	CreatedAt     time.Time
	AcceptedAt    time.Time
	AcceptedByUid string
}

// ToData 序列化为文档字段
func (i *Invite) ToData() map[string]any {
	data := map[string]any{
		"mainUserUid": i.MainUserUid,
		"email":       i.Email,
		"token":       i.Token,
		"status":      i.Status,
		"createdAt":   i.CreatedAt.UTC().Format(time.RFC3339),
	}
	if i.Relation != "" {
		data["relation"] = i.Relation
	}
	if i.AcceptedByUid != "" {
		data["acceptedByUid"] = i.AcceptedByUid
	}
	if !i.AcceptedAt.IsZero() {
		data["acceptedAt"] = i.AcceptedAt.UTC().Format(time.RFC3339)
	}
	return data
}

// ParseInvite 从文档字段解出邀请
func ParseInvite(id string, data map[string]any) *Invite {
	i := &Invite{ID: id}
	i.MainUserUid, _ = data["mainUserUid"].(string)
	i.Email, _ = data["email"].(string)
	i.Token, _ = data["token"].(string)
	i.Status, _ = data["status"].(string)
	i.Relation, _ = data["relation"].(string)
	i.AcceptedByUid, _ = data["acceptedByUid"].(string)
	if s, _ := data["createdAt"].(string); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			i.CreatedAt = t
		}
	}
	if s, _ := data["acceptedAt"].(string); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			i.AcceptedAt = t
		}
	}
	return i
}
