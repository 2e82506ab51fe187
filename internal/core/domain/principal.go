package domain

import "strings"

// AnonymousID is the sentinel principal identifier used for unauthenticated
// visitors. Anonymous principals are tracked per device, not per account.
const AnonymousID = "anonymous"

// Principal is the identity credits and designs are tracked against: either an
// authenticated user or the anonymous sentinel with a client-supplied device ID.
type Principal struct {
	ID       string
	Role     string
	DeviceID string // only meaningful when Anonymous() is true
}

// Anonymous reports whether this principal is the unauthenticated sentinel.
func (p Principal) Anonymous() bool {
	return p.ID == "" || p.ID == AnonymousID
}

// Key returns the identifier balances and reservations are keyed by:
// the user ID for authenticated principals, the device ID otherwise.
func (p Principal) Key() string {
	if p.Anonymous() {
		return AnonymousID + ":" + p.DeviceID
	}
	return p.ID
}

// AnonymousPrincipal builds the anonymous sentinel for a device.
func AnonymousPrincipal(deviceID string) Principal {
	return Principal{ID: AnonymousID, DeviceID: deviceID}
}

// IsAnonymousKey reports whether a principal key produced by Principal.Key
// belongs to an anonymous device.
func IsAnonymousKey(key string) bool {
	return strings.HasPrefix(key, AnonymousID+":")
}

// DeviceFromKey extracts the device ID from an anonymous principal key.
func DeviceFromKey(key string) string {
	return strings.TrimPrefix(key, AnonymousID+":")
}
