package sentiments

import "errors"

// ErrMissingIdentity is returned when an entity carries neither uid nor
// userId; analysis is skipped entirely for such entities.
var ErrMissingIdentity = errors.New("entity has no uid or userId")
