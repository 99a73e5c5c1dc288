package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrInvalidInput   = errors.New("invalid campaign input")
	ErrNotFound       = errors.New("campaign not found")
	ErrMissingList    = errors.New("campaign has no list assigned")
	ErrNoRecipients   = errors.New("list has no subscribed recipients")
	ErrAlreadySending = errors.New("campaign is already sending or sent")
	ErrNotDraft       = errors.New("only draft campaigns can be modified")
)
