package common

// SessionCookieName is the cookie that carries the opaque session token.
const SessionCookieName = "sb_session"

// SignupsEnabledSetting is the settings key an admin toggles to open or
// close owner signups.
const SignupsEnabledSetting = "signups_enabled"
