package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	fserrors "github.com/familysync/familysync-go/errors"
)

var familyCmd = &cobra.Command{
	Use:   "family",
	Short: "Create, join, and inspect your family",
}

var familyName string

var familyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a family and print its invite code",
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

		fam, err := a.Families.Create(cmd.Context(), familyName, userID)
		if err != nil {
			return err
		}
		if _, err := a.Profiles.LinkFamily(cmd.Context(), userID, fam.ID); err != nil {
			return err
		}
		a.Machine.FamilyReady()

		fmt.Printf("Family %q created.\n", fam.Name)
		fmt.Printf("Invite code: %s\n", fam.InviteCode)
		return nil
	},
}

var inviteCode string

var familyJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a family with an invite code",
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

		fam, err := a.Families.Join(cmd.Context(), inviteCode, userID)
		if err != nil {
			switch fserrors.KindOf(err) {
			case fserrors.KindInvalidInviteCode:
				return fmt.Errorf("that invite code does not match any family")
			case fserrors.KindAlreadyMember:
				return fmt.Errorf("you are already a member of this family")
			}
			return err
		}
		if _, err := a.Profiles.LinkFamily(cmd.Context(), userID, fam.ID); err != nil {
			return err
		}
		a.Machine.FamilyReady()

		fmt.Printf("Joined family %q (%d members).\n", fam.Name, len(fam.Members))
		return nil
	},
}

var familyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the family you belong to",
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
		if !prof.HasFamily() {
			fmt.Println("You are not in a family yet.")
			return nil
		}
		fam, err := a.Families.Get(cmd.Context(), prof.FamilyID)
		if err != nil {
			return err
		}
		if fam == nil {
			fmt.Println("Your family record was not found.")
			return nil
		}
		fmt.Printf("Family: %s\n", fam.Name)
		fmt.Printf("Members: %d\n", len(fam.Members))
		fmt.Printf("Invite code: %s\n", fam.InviteCode)
		return nil
	},
}

// requireUser restores the session and returns the authenticated user ID.
func requireUser(a *app, cmd *cobra.Command) (string, error) {
	state := a.Coordinator.CheckExistingSession(cmd.Context())
	if !state.Authenticated {
		return "", fmt.Errorf("not signed in; run 'famsyncctl auth login' first")
	}
	return state.User.ID, nil
}

func init() {
	familyCreateCmd.Flags().StringVar(&familyName, "name", "", "family name (required)")
	_ = familyCreateCmd.MarkFlagRequired("name")
	familyJoinCmd.Flags().StringVar(&inviteCode, "code", "", "invite code (required)")
	_ = familyJoinCmd.MarkFlagRequired("code")

	familyCmd.AddCommand(familyCreateCmd, familyJoinCmd, familyShowCmd)
	rootCmd.AddCommand(familyCmd)
}
