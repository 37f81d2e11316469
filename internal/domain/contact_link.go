package domain

// 紧急联系人关系在存储中有两个独立镜像（见 emergency_links 与
// users/<uid>/emergency_contacts），两者写入历史互相独立，
// 所有身份比较必须在两个镜像的并集上进行

const (
	// CollectionLinks 顶层镜像集合：每条关系一个自动ID文档
	CollectionLinks = "emergency_links"
	// CollectionContactsID 子集合镜像的 collection ID（users/<uid>/emergency_contacts/<ecUid>）
	CollectionContactsID = "emergency_contacts"
	// CollectionUsers 用户 profile 集合
	CollectionUsers = "users"
	// CollectionInvites 邀请集合
	CollectionInvites = "invites"
	// CollectionSOSEvents SOS 事件集合
	CollectionSOSEvents = "sos_events"
)

// 关系状态
const (
	LinkStatusPending = "pending"
	LinkStatusActive  = "ACTIVE"
)

// 链接文档字段名
const (
	FieldMainUserUid         = "mainUserUid"
	FieldEmergencyContactUid = "emergencyContactUid"
	FieldStatus              = "status"
	FieldLastVoiceMessage    = "lastVoiceMessage"
	FieldLatestVoiceMessage  = "latestVoiceMessage"
)

// LinkEmailFields 链接文档中历史上用过的邮箱字段名（按优先级排列）
// 匹配时对每个字段取值、规范化后参与比较；新增历史字段名只改这里
var LinkEmailFields = []string{
	"email",
	"contactEmail",
	"emergencyContactEmail",
	"ecEmail",
}

// LinkPhoneFields 链接文档中历史上用过的电话字段名（按优先级排列）
var LinkPhoneFields = []string{
	"phone",
	"phoneNumber",
	"contactPhone",
	"emergencyContactPhone",
	"mobile",
}

// UserPath 用户 profile 文档路径
func UserPath(uid string) string {
	return CollectionUsers + "/" + uid
}

// ContactsCollection 某主用户的子集合镜像路径
func ContactsCollection(mainUserUid string) string {
	return CollectionUsers + "/" + mainUserUid + "/" + CollectionContactsID
}

// ContactPath 子集合镜像中某联系人的文档路径
func ContactPath(mainUserUid, contactID string) string {
	return ContactsCollection(mainUserUid) + "/" + contactID
}

// LinkPath 顶层镜像中某链接的文档路径
func LinkPath(linkID string) string {
	return CollectionLinks + "/" + linkID
}

// InvitePath 邀请文档路径
func InvitePath(inviteID string) string {
	return CollectionInvites + "/" + inviteID
}
