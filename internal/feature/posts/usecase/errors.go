// Package usecase implements the business logic for posts, comments, likes and post queries.
package usecase

import "errors"

var (
	// ErrPostNotFound is returned when the addressed post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrCommentNotFound is returned when the addressed comment does not exist on the post.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrAlreadyLiked is returned when a user likes the same post twice.
	ErrAlreadyLiked = errors.New("you have already liked this post")

	// ErrForbidden is returned when the requester may not mutate the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrStorage wraps store failures that have no more specific meaning.
	ErrStorage = errors.New("storage error")
)
