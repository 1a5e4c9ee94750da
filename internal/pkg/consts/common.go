package consts

const (
	GroupAdmin        = "admin"
	GroupThreadPrefix = "thread:"
)

const (
	ThreadIDPrefix = "th_"
)

const (
	RoleAdmin = "ADMIN"
)

// 实时通道事件名
const (
	EventJoin         = "join"
	EventMessage      = "message"
	EventRead         = "read"
	EventThreadNew    = "thread:new"
	EventThreadUpdate = "thread:update"
	EventAck          = "ack"
)

// ThreadGroup 会话广播组名
func ThreadGroup(threadID string) string {
	return GroupThreadPrefix + threadID
}

// gin.Context 中的键
const (
	SessionKey = "session"
	StaffIDKey = "staff_id"
	RolesKey   = "roles"
)
