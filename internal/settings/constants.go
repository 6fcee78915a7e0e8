package settings

// DB config keys and defaults for settings.
const (
	// SenderNameKey is the DB config key for the outbound mail display name.
	SenderNameKey = "MAIL_SENDER_NAME"
	// DefaultSenderName is the fallback outbound mail display name.
	DefaultSenderName = "Mystery Events"
	// PublicBaseURLKey overrides the verification URL base from the DB.
	PublicBaseURLKey = "PUBLIC_BASE_URL"
	// ScanWindowKey overrides the consistency scan window from the DB.
	ScanWindowKey = "CONSISTENCY_SCAN_WINDOW"
	// DefaultScanWindow is the fallback number of recent vouchers scanned.
	DefaultScanWindow = 50
)
