package common

const (
	KEY_LOG_HOOK_SEND_ALERT = "send_alert"
)

const (
	KEY_ARTIFACT_LOCATION = "artifact_location:%s:%s"
)

const (
	HEADER_OWNER_ID   = "X-Owner-Id"
	HEADER_OWNER_NAME = "X-Owner-Name"
	HEADER_OWNER_ROLE = "X-Owner-Role"
)

const (
	ROLE_SUPERUSER = "superuser"
)

const (
	DATETIME_LAYOUT = "2006-01-02 15:04:05"
)
