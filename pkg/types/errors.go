package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrProfileNotFound        = errors.New("profile not found")
	ErrCircularInheritance    = errors.New("circular profile inheritance")
	ErrInvalidThresholdValue  = errors.New("invalid threshold value")
	ErrMissingRequiredChannel = errors.New("missing required channel")
	ErrMalformedRule          = errors.New("malformed rule")
)

// ProfileNotFoundError reports a profile id absent from the store.
type ProfileNotFoundError struct {
	ID string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found", e.ID)
}

// Is matches ErrProfileNotFound.
func (e *ProfileNotFoundError) Is(target error) bool { return target == ErrProfileNotFound }

// CircularInheritanceError carries the detected cycle, starting and ending at
// the first repeated id.
type CircularInheritanceError struct {
	Cycle []string
}

func (e *CircularInheritanceError) Error() string {
	return fmt.Sprintf("circular profile inheritance: %s", strings.Join(e.Cycle, " -> "))
}

// Is matches ErrCircularInheritance.
func (e *CircularInheritanceError) Is(target error) bool { return target == ErrCircularInheritance }

// InvalidThresholdValueError reports a threshold that fails a sanity check.
type InvalidThresholdValueError struct {
	Path   string
	Reason string
}

func (e *InvalidThresholdValueError) Error() string {
	return fmt.Sprintf("invalid threshold %s: %s", e.Path, e.Reason)
}

// Is matches ErrInvalidThresholdValue.
func (e *InvalidThresholdValueError) Is(target error) bool { return target == ErrInvalidThresholdValue }

// MissingRequiredChannelError reports a channel the analysis needs but the recording lacks.
type MissingRequiredChannelError struct {
	Channel string
	Impact  string
}

func (e *MissingRequiredChannelError) Error() string {
	if e.Impact == "" {
		return fmt.Sprintf("missing required channel %q", e.Channel)
	}
	return fmt.Sprintf("missing required channel %q: %s", e.Channel, e.Impact)
}

// Is matches ErrMissingRequiredChannel.
func (e *MissingRequiredChannelError) Is(target error) bool {
	return target == ErrMissingRequiredChannel
}

// MalformedRuleError reports a rule that cannot be evaluated and is skipped.
type MalformedRuleError struct {
	RuleID string
	Reason string
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("malformed rule %q: %s", e.RuleID, e.Reason)
}

// Is matches ErrMalformedRule.
func (e *MalformedRuleError) Is(target error) bool { return target == ErrMalformedRule }

// IssueFromError converts one of the non-fatal typed errors into an Issue.
// Other errors are reported with an empty kind.
func IssueFromError(err error) Issue {
	var (
		thr *InvalidThresholdValueError
		ch  *MissingRequiredChannelError
		mr  *MalformedRuleError
	)
	switch {
	case errors.As(err, &thr):
		return Issue{Kind: IssueInvalidThreshold, Subject: thr.Path, Message: err.Error()}
	case errors.As(err, &ch):
		return Issue{Kind: IssueMissingRequiredChannel, Subject: ch.Channel, Message: err.Error()}
	case errors.As(err, &mr):
		return Issue{Kind: IssueMalformedRule, Subject: mr.RuleID, Message: err.Error()}
	default:
		return Issue{Message: err.Error()}
	}
}
