// Package onboarding drives the four-step first-run flow: sign in, create or
// join a family, set up the profile, review. Steps already satisfied by
// remote data are skipped; progress and completion are persisted on the
// device.
package onboarding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/familysync/familysync-go/domain"
	fserrors "github.com/familysync/familysync-go/errors"
)

// Step is one of the four sequential onboarding screens.
type Step int

const (
	StepSignIn Step = iota + 1
	StepFamilySetup
	StepProfileSetup
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepSignIn:
		return "sign-in"
	case StepFamilySetup:
		return "family-setup"
	case StepProfileSetup:
		return "profile-setup"
	case StepReview:
		return "review"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// AuthSource exposes the coordinator's state to the machine (read-only).
type AuthSource interface {
	State() domain.AuthState
}

// ProfileLoader reloads the current user's remote profile for skip
// evaluation.
type ProfileLoader interface {
	Current(ctx context.Context) (*domain.UserProfile, error)
}

// ProgressStore is the slice of the device-local store the machine persists
// into.
type ProgressStore interface {
	HasSeenOnboarding() (bool, error)
	SetHasSeenOnboarding(bool) error
	HasLaunchedBefore() (bool, error)
	SetHasLaunchedBefore(bool) error
	UserName() (string, error)
	UserBirthday() (time.Time, error)
}

// Machine computes which onboarding step to display from authentication state
// plus remote profile completeness. It is the single writer of its step;
// reads return snapshots.
type Machine struct {
	auth     AuthSource
	profiles ProfileLoader
	store    ProgressStore

	mu   sync.Mutex
	step Step
}

// NewMachine starts at step 1.
func NewMachine(auth AuthSource, profiles ProfileLoader, store ProgressStore) *Machine {
	return &Machine{auth: auth, profiles: profiles, store: store, step: StepSignIn}
}

// Current returns the step to display.
func (m *Machine) Current() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// State returns a best-effort snapshot including the persisted fields. A
// field the store cannot read is zero-valued in the snapshot; callers who
// need read failures surfaced use the ProgressStore directly.
func (m *Machine) State() domain.OnboardingState {
	completed, _ := m.store.HasSeenOnboarding()
	name, _ := m.store.UserName()
	birthday, _ := m.store.UserBirthday()
	return domain.OnboardingState{
		Step:           int(m.Current()),
		Completed:      completed,
		CachedName:     name,
		CachedBirthday: birthday,
	}
}

// FirstLaunch reports whether this is the first run on the device, recording
// the launch. Only the first call on a device ever returns true; the flag is
// device-lifetime and survives sign-out.
func (m *Machine) FirstLaunch() (bool, error) {
	launched, err := m.store.HasLaunchedBefore()
	if err != nil {
		return false, err
	}
	if launched {
		return false, nil
	}
	if err := m.store.SetHasLaunchedBefore(true); err != nil {
		return false, fmt.Errorf("recording first launch: %w", err)
	}
	log.Debug().Msg("first launch on this device")
	return true, nil
}

// ShouldShow reports whether onboarding must be displayed: on first use, or
// whenever authentication is lost. Auth takes precedence over the completion
// flag.
func (m *Machine) ShouldShow() (bool, error) {
	seen, err := m.store.HasSeenOnboarding()
	if err != nil {
		return false, err
	}
	return !seen || !m.auth.State().Authenticated, nil
}

// HandleAuthChange reacts to coordinator state transitions: a successful
// sign-in advances past step 1, a lost session re-enters onboarding at step 1
// regardless of the completion flag.
func (m *Machine) HandleAuthChange(state domain.AuthState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state.Authenticated && m.step == StepSignIn {
		m.step = StepFamilySetup
		log.Debug().Stringer("step", m.step).Msg("onboarding advanced")
		return
	}
	if !state.Authenticated && !state.Loading && m.step != StepSignIn {
		m.step = StepSignIn
		log.Debug().Msg("onboarding reset, authentication lost")
	}
}

// FamilyReady advances past the family-setup step after an explicit
// create/join.
func (m *Machine) FamilyReady() {
	m.advanceFrom(StepFamilySetup)
}

// ProfileReady advances past the profile-setup step after a successful
// submission.
func (m *Machine) ProfileReady() {
	m.advanceFrom(StepProfileSetup)
}

func (m *Machine) advanceFrom(from Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step == from && m.step < StepReview {
		m.step++
		log.Debug().Stringer("step", m.step).Msg("onboarding advanced")
	}
}

// Next skips forward one screen without satisfying it, e.g. deferring family
// setup. It never passes review; review only exits through Complete.
func (m *Machine) Next() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step < StepReview {
		m.step++
	}
}

// Previous steps back one screen for manual correction. It is never
// auto-triggered and never goes below step 1.
func (m *Machine) Previous() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step > StepSignIn {
		m.step--
	}
}

// CheckAndSkipSteps reloads the remote profile and skips the steps remote
// data already satisfies: family setup when a family is linked, profile setup
// when a real display name and a birthday are present. Each check is
// independent and idempotent; the step never decreases and never passes
// review without explicit completion.
func (m *Machine) CheckAndSkipSteps(ctx context.Context) error {
	profile, err := m.profiles.Current(ctx)
	if err != nil {
		return fmt.Errorf("reloading profile for skip evaluation: %w", err)
	}
	if profile == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.step == StepFamilySetup && profile.HasFamily() {
		m.step = StepProfileSetup
		log.Debug().Str("family_id", profile.FamilyID).Msg("family setup skipped")
	}
	if m.step == StepProfileSetup && profileComplete(profile) {
		m.step = StepReview
		log.Debug().Msg("profile setup skipped")
	}
	return nil
}

// profileComplete reports whether the remote profile already carries a
// non-placeholder name and a birthday.
func profileComplete(p *domain.UserProfile) bool {
	name := trimmed(p.DisplayName)
	return name != "" && !domain.IsPlaceholderName(name) && p.Birthday != nil
}

// Complete finishes onboarding from the review step: the persisted flag flips
// and the main application takes over until authentication is lost.
func (m *Machine) Complete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepReview {
		return fserrors.NewValidationFailed("step",
			fmt.Sprintf("cannot complete onboarding from %s", m.step))
	}
	if err := m.store.SetHasSeenOnboarding(true); err != nil {
		return fmt.Errorf("persisting onboarding completion: %w", err)
	}
	log.Info().Msg("onboarding completed")
	return nil
}
