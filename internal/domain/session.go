package domain

// Session is the proof of authentication for backend calls: the serialized
// browser storage state plus a validity flag. The session manager is the
// only writer; every other component treats a Session as read-only.
type Session struct {
	State []byte
	Valid bool
}
