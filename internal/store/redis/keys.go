package redis

const (
	// KeyPrefixAppointment is the prefix for appointment records and
	// uniqueness markers. Markers live in the same keyspace under a synthetic
	// id of the form "UNIQ#<fingerprint>".
	KeyPrefixAppointment = "sched:appt:"
	// KeyPrefixDispatchLog is the prefix for dispatch log entries
	KeyPrefixDispatchLog = "sched:sendlog:"
	// KeyPrefixPreferences is the prefix for user notification preferences
	KeyPrefixPreferences = "sched:prefs:"
)

// MarkerIDPrefix prefixes the fingerprint to form the uniqueness marker id.
const MarkerIDPrefix = "UNIQ#"

// AppointmentKey returns the Redis key for an appointment record by id
func AppointmentKey(id string) string {
	return KeyPrefixAppointment + id
}

// MarkerKey returns the Redis key of the uniqueness marker for a fingerprint
func MarkerKey(fingerprint string) string {
	return AppointmentKey(MarkerIDPrefix + fingerprint)
}

// DispatchLogKey returns the Redis key for a dispatch log entry
func DispatchLogKey(notificationID string) string {
	return KeyPrefixDispatchLog + notificationID
}

// PreferencesKey returns the Redis key for a user's preferences
func PreferencesKey(userID string) string {
	return KeyPrefixPreferences + userID
}
