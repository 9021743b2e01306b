package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID. Path params are checked
// before they reach the DB so a malformed id is a 400/404, not a scan
// error.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
