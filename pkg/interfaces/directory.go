package interfaces

import (
	"context"

	"meetinghost/pkg/types"
)

// Directory resolves authentication tokens and meeting codes.
// FUNCTIONAL DISCOVERY: Unavailability is reported separately from invalid
// credentials so validation can tell "try later" from "reject"
type Directory interface {
	// IsAvailable reports whether the directory can currently answer.
	IsAvailable(ctx context.Context) bool

	// ResolveUser returns the profile for a token, or ErrInvalidToken /
	// ErrDirectoryUnavailable.
	ResolveUser(ctx context.Context, token string) (*types.User, error)

	// ResolveMeeting returns the presenter user id for a meeting code, or
	// ErrInvalidMeetingID / ErrDirectoryUnavailable.
	ResolveMeeting(ctx context.Context, code string) (int, error)
}

// DirectoryStore is a Directory that can also be written to locally.
type DirectoryStore interface {
	Directory

	PutUser(ctx context.Context, token string, user *types.User) error
	PutMeeting(ctx context.Context, code string, presenterID int) error
	Close() error
}
