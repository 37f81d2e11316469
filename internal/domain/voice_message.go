package domain

import "time"

// Audience 消息受众
const (
	AudienceBroadcast = "broadcast" // 所有 ACTIVE 联系人可见，并镜像到主用户的 latestVoiceMessage 槽位
	AudienceDirect    = "direct"    // 只写入目标联系人的镜像文档，绝不触碰共享槽位
)

// VoiceMessageTTL 消息有效期（创建时一次性计算，之后不再重算/续期）
const VoiceMessageTTL = 24 * time.Hour

// VoiceMessage 语音消息负载（写入后不可变）
type VoiceMessage struct {
	Audience        string
	Transcript      string
	Explanation     string
	AnomalyDetected bool
	AudioURL        string
	CreatedAt       time.Time
	ExpiresAt       time.Time

	// direct 消息冗余记录目标身份（审计/过滤用）
	TargetUid   string
	TargetEmail string
	TargetPhone string
}

// ToData 序列化为文档字段
func (m *VoiceMessage) ToData() map[string]any {
	data := map[string]any{
		"audience":        m.Audience,
		"transcript":      m.Transcript,
		"explanation":     m.Explanation,
		"anomalyDetected": m.AnomalyDetected,
		"createdAt":       m.CreatedAt.UTC().Format(time.RFC3339),
		"expiresAt":       m.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if m.AudioURL != "" {
		data["audioUrl"] = m.AudioURL
	}
	if m.Audience == AudienceDirect {
		data["targetUid"] = m.TargetUid
		data["targetEmail"] = m.TargetEmail
		data["targetPhone"] = m.TargetPhone
	}
	return data
}

// ParseVoiceMessage 从文档字段解出消息负载，格式不完整返回 false
func ParseVoiceMessage(data map[string]any) (*VoiceMessage, bool) {
	if data == nil {
		return nil, false
	}
	m := &VoiceMessage{}
	m.Audience, _ = data["audience"].(string)
	m.Transcript, _ = data["transcript"].(string)
	m.Explanation, _ = data["explanation"].(string)
	m.AnomalyDetected, _ = data["anomalyDetected"].(bool)
	m.AudioURL, _ = data["audioUrl"].(string)
	m.TargetUid, _ = data["targetUid"].(string)
	m.TargetEmail, _ = data["targetEmail"].(string)
	m.TargetPhone, _ = data["targetPhone"].(string)

	createdAt, _ := data["createdAt"].(string)
	if createdAt == "" || m.Transcript == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, false
	}
	m.CreatedAt = t

	if expiresAt, _ := data["expiresAt"].(string); expiresAt != "" {
		if t, err := time.Parse(time.RFC3339, expiresAt); err == nil {
			m.ExpiresAt = t
		}
	}
	return m, true
}

// Expired 消息是否已过有效期
func (m *VoiceMessage) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}
