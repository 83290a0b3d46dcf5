package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Clients and stores return these
// (optionally wrapped) so services can branch on the kind of failure without
// parsing upstream detail, which never travels past the client layer.
//
// - ErrRejected: the upstream refused the request (4xx class)
// - ErrUnavailable: the upstream or resource is temporarily down (5xx, timeouts)
var (
	ErrRejected    = errors.New("rejected")
	ErrUnavailable = errors.New("unavailable")
)
