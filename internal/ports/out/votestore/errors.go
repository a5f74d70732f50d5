package votestore

import "errors"

// ErrInvalidDirection is returned by Set when asked to persist anything but up or down.
var ErrInvalidDirection = errors.New("vote direction must be up or down")

// ErrInvalidContentType is returned for content types other than post and comment.
var ErrInvalidContentType = errors.New("content type must be post or comment")
