package consts

const (
	ChatDedupeKey     = "im:chat:dedupe:"
	ChatChannelPrefix = "im:chat:"
)

const (
	UnreadReconcileLock = "lock:chat:reconcile"
)
