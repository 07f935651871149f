package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View and update your profile",
}

var (
	profileName     string
	profileBirthday string
)

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set your display name and birthday",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := requireUser(a, cmd)
		if err != nil {
			return err
		}

		birthday, err := time.Parse("2006-01-02", profileBirthday)
		if err != nil {
			return fmt.Errorf("birthday must be YYYY-MM-DD: %w", err)
		}

		if _, err := a.Profiles.SetProfile(cmd.Context(), userID, profileName, birthday); err != nil {
			return err
		}
		a.Machine.ProfileReady()

		fmt.Println("Profile saved.")
		fmt.Printf("Onboarding step: %s\n", a.Machine.Current())
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := requireUser(a, cmd); err != nil {
			return err
		}
		prof, err := a.Profiles.Current(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Name: %s\n", prof.DisplayName)
		if prof.Birthday != nil {
			fmt.Printf("Birthday: %s\n", prof.Birthday.Format("2006-01-02"))
		}
		if prof.HasFamily() {
			fmt.Printf("Family: %s\n", prof.FamilyID)
		}
		return nil
	},
}

func init() {
	profileSetCmd.Flags().StringVar(&profileName, "name", "", "display name (required)")
	profileSetCmd.Flags().StringVar(&profileBirthday, "birthday", "", "birthday as YYYY-MM-DD (required)")
	_ = profileSetCmd.MarkFlagRequired("name")
	_ = profileSetCmd.MarkFlagRequired("birthday")

	profileCmd.AddCommand(profileSetCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}
