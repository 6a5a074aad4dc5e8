package errors

import "fmt"

// FriendlyError is an error whose message is meant to be shown to users
// directly, without the "FATAL" treatment applied to unexpected errors.
// Friendly messages describe what went wrong and what the user can do
// about it.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	message string
}

func (err friendlyError) Error() string {
	return err.message
}

func (err friendlyError) FriendlyMessage() string {
	return err.message
}

// NewFriendlyError creates an error meant to be read by humans. The message
// should name the remediation, not just the failure.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}

// GetPrintableMessage returns the message that should be shown to the user
// for the given error. If any error in the chain is friendly, its friendly
// message wins. Otherwise the full context chain is returned.
func GetPrintableMessage(err error) string {
	for curr := err; curr != nil; {
		if friendly, ok := curr.(FriendlyError); ok {
			return friendly.FriendlyMessage()
		}

		unwrapper, ok := curr.(interface{ Unwrap() error })
		if !ok {
			break
		}
		curr = unwrapper.Unwrap()
	}
	return err.Error()
}
