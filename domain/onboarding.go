package domain

import "time"

// OnboardingState is a snapshot of onboarding progress: the current step plus
// the device-local persisted fields. It is cleared entirely on sign-out.
type OnboardingState struct {
	Step           int
	Completed      bool
	CachedName     string
	CachedBirthday time.Time
}
