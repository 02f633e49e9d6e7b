package services

// Client-facing message keys. They are translated by the i18n catalogs.
const (
	MsgUsernamePasswordRequired = "UsernamePasswordRequired"
	MsgUsernameAlreadyExists    = "UsernameAlreadyExists"
	MsgInvalidCredentials       = "InvalidCredentials"
	MsgAuthenticationRequired   = "AuthenticationRequired"
	MsgDateAndNameRequired      = "DateAndNameRequired"
	MsgInvalidMilestoneDay      = "InvalidMilestoneDay"
	MsgCannotDeleteSelf         = "CannotDeleteSelf"
	MsgCannotModifyOwnAdmin     = "CannotModifyOwnAdmin"
	MsgUserNotFound             = "UserNotFound"
)
