package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var onboardingCmd = &cobra.Command{
	Use:   "onboarding",
	Short: "Inspect and drive the onboarding flow",
}

var onboardingStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current onboarding step",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		first, err := a.Machine.FirstLaunch()
		if err != nil {
			return err
		}
		if first {
			fmt.Println("First launch on this device.")
		}

		a.Coordinator.CheckExistingSession(cmd.Context())
		if a.Coordinator.State().Authenticated {
			if err := a.Machine.CheckAndSkipSteps(cmd.Context()); err != nil {
				appLogger.Warn(cmd.Context(), "skip evaluation failed", map[string]any{"error": err.Error()})
			}
		}

		show, err := a.Machine.ShouldShow()
		if err != nil {
			return err
		}
		state := a.Machine.State()
		fmt.Printf("Current step: %s\n", a.Machine.Current())
		fmt.Printf("Completed before: %v\n", state.Completed)
		fmt.Printf("Onboarding required: %v\n", show)
		if state.CachedName != "" {
			fmt.Printf("Cached name: %s\n", state.CachedName)
		}
		return nil
	},
}

var onboardingNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip forward one onboarding screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.Coordinator.CheckExistingSession(cmd.Context())
		a.Machine.Next()
		fmt.Printf("Current step: %s\n", a.Machine.Current())
		return nil
	},
}

var onboardingBackCmd = &cobra.Command{
	Use:   "back",
	Short: "Step back one onboarding screen",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.Coordinator.CheckExistingSession(cmd.Context())
		a.Machine.Previous()
		fmt.Printf("Current step: %s\n", a.Machine.Current())
		return nil
	},
}

var onboardingCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Finish onboarding from the review step",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := requireUser(a, cmd); err != nil {
			return err
		}
		if err := a.Machine.CheckAndSkipSteps(cmd.Context()); err != nil {
			return err
		}
		if err := a.Machine.Complete(); err != nil {
			return err
		}
		fmt.Println("Onboarding complete. Welcome to FamilySync.")
		return nil
	},
}

func init() {
	onboardingCmd.AddCommand(onboardingStatusCmd, onboardingNextCmd, onboardingBackCmd, onboardingCompleteCmd)
	rootCmd.AddCommand(onboardingCmd)
}
