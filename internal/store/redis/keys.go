package redis

import "strconv"

const (
	// KeyPrefixReservation is the prefix for per-reservation keys. The key
	// suffix is the reservation's unix timestamp: a renamed page keeps its
	// creation time, so the timestamp is the stable identity.
	KeyPrefixReservation = "reservebot:reservation:"
	// KeyAllReservations is the set of all stored reservation timestamps.
	KeyAllReservations = "reservebot:reservations:all"
)

// ReservationKey returns the Redis key for a reservation timestamp.
func ReservationKey(unixSeconds int64) string {
	return KeyPrefixReservation + strconv.FormatInt(unixSeconds, 10)
}
