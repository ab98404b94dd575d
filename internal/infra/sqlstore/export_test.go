package sqlstore

var (
	IsUnavailable = isUnavailable
	IsRejected    = isRejected
)
