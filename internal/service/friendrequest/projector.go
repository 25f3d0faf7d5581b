package friendrequest

import "time"

// The expiry projector. Requests are never expired in the store: a PENDING
// row whose creation age exceeds the configured window is rewritten to
// EXPIRED on the way out, and the store row is left untouched. Correctness
// never depends on the optional cleanup cron.

// IsExpired reports whether a request created at creationDate counts as
// expired at now. A non-positive expireAfter disables expiry entirely.
func IsExpired(creationDate time.Time, expireAfter time.Duration, now time.Time) bool {
	if expireAfter <= 0 {
		return false
	}
	return now.Sub(creationDate) > expireAfter
}

// ProjectExpiry returns r with the expiry projection applied: when the
// stored status is PENDING and the request has outlived expireAfter, the
// returned status is EXPIRED and the response date is projected to the
// moment the request expired.
func ProjectExpiry(r FriendRequest, expireAfter time.Duration, now time.Time) FriendRequest {
	if r.Status != StatusPending || !IsExpired(r.CreationDate, expireAfter, now) {
		return r
	}
	r.Status = StatusExpired
	responseDate := r.CreationDate.Add(expireAfter)
	r.ResponseDate = &responseDate
	return r
}

// responseDateForNewRecord resolves the stored response date for a record
// created directly in a given status (the admin path). An explicit
// responseDate wins; otherwise terminal statuses default to now, EXPIRED
// projects from the creation date, and PENDING stays nil.
func responseDateForNewRecord(
	now time.Time,
	statusValue Status,
	creationDate time.Time,
	responseDate *time.Time,
	expireAfter time.Duration,
) *time.Time {
	if responseDate != nil {
		return responseDate
	}
	switch statusValue {
	case StatusAccepted, StatusDeclined, StatusIgnored, StatusCanceled:
		return &now
	case StatusExpired:
		projected := creationDate.Add(expireAfter)
		return &projected
	}
	return nil
}
