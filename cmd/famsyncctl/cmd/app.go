package cmd

import (
	"fmt"

	"github.com/familysync/familysync-go/backend/appwrite"
	"github.com/familysync/familysync-go/config"
	"github.com/familysync/familysync-go/internal/family"
	"github.com/familysync/familysync-go/internal/identity"
	"github.com/familysync/familysync-go/internal/onboarding"
	"github.com/familysync/familysync-go/internal/profile"
	"github.com/familysync/familysync-go/localstore"
)

// app bundles the wired coordination layer for one command invocation. One
// coordinator and one state machine per process; no shared singletons.
type app struct {
	Config      *config.Config
	Store       *localstore.Store
	Backend     *appwrite.Client
	Coordinator *identity.Coordinator
	Profiles    *profile.Service
	Families    *family.Service
	Machine     *onboarding.Machine
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	store, err := localstore.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	client := appwrite.New(cfg.Endpoint, cfg.ProjectID, store)
	coordinator := identity.NewCoordinator(client, nil, store)
	profiles := profile.NewService(client, cfg.DatabaseID, store, coordinator)
	coordinator.BindProfiles(profiles)
	families := family.NewService(client, cfg.DatabaseID)

	machine := onboarding.NewMachine(coordinator, profiles, store)
	coordinator.Subscribe(machine.HandleAuthChange)

	return &app{
		Config:      cfg,
		Store:       store,
		Backend:     client,
		Coordinator: coordinator,
		Profiles:    profiles,
		Families:    families,
		Machine:     machine,
	}, nil
}

func (a *app) Close() {
	a.Profiles.Stop()
	a.Families.Stop()
	if err := a.Store.Close(); err != nil {
		fmt.Println("warning: closing local store:", err)
	}
}
