package main

import (
	"context"
	"fmt"
	"time"

	"tillshift/internal/model"
	"tillshift/internal/repository"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create operators and tills",
}

var (
	seedOpUsername string
	seedOpPassword string
	seedOpName     string
	seedOpEmail    string
	seedOpRole     string
	seedOpOutlet   string

	seedTillOutlet   string
	seedTillName     string
	seedTillInactive bool
)

var seedOperatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Create or update an operator (matched by username)",
	RunE:  runSeedOperator,
}

var seedTillCmd = &cobra.Command{
	Use:   "till",
	Short: "Register a till for an outlet",
	RunE:  runSeedTill,
}

func init() {
	f := seedOperatorCmd.Flags()
	f.StringVar(&seedOpUsername, "username", "", "login name (required)")
	f.StringVar(&seedOpPassword, "password", "", "plain password (required)")
	f.StringVar(&seedOpName, "name", "", "display name (defaults to username)")
	f.StringVar(&seedOpEmail, "email", "", "email address")
	f.StringVar(&seedOpRole, "role", model.RoleCashier, "cashier | supervisor | admin")
	f.StringVar(&seedOpOutlet, "outlet", "", "pin the operator to one outlet id")
	_ = seedOperatorCmd.MarkFlagRequired("username")
	_ = seedOperatorCmd.MarkFlagRequired("password")

	f = seedTillCmd.Flags()
	f.StringVar(&seedTillOutlet, "outlet", "", "outlet id (required)")
	f.StringVar(&seedTillName, "name", "", "till name, unique per outlet (required)")
	f.BoolVar(&seedTillInactive, "inactive", false, "register the till as inactive")
	_ = seedTillCmd.MarkFlagRequired("outlet")
	_ = seedTillCmd.MarkFlagRequired("name")

	seedCmd.AddCommand(seedOperatorCmd, seedTillCmd)
}

func runSeedOperator(cmd *cobra.Command, _ []string) error {
	op, err := buildOperator()
	if err != nil {
		return err
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	repo := repository.NewOperatorRepository(db)
	if err := repo.Upsert(ctx, op); err != nil {
		return fmt.Errorf("seed operator: %w", err)
	}
	saved, err := repo.FindByUsername(ctx, op.Username)
	if err != nil {
		return fmt.Errorf("seed operator: reload: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "operator %s (%s) id=%s\n", saved.Username, saved.Role, saved.ID)
	return nil
}

func buildOperator() (*model.Operator, error) {
	switch seedOpRole {
	case model.RoleCashier, model.RoleSupervisor, model.RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q", seedOpRole)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(seedOpPassword), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	op := &model.Operator{
		Username:     seedOpUsername,
		Name:         seedOpName,
		PasswordHash: string(hash),
		Role:         seedOpRole,
		Active:       true,
	}
	if op.Name == "" {
		op.Name = op.Username
	}
	if seedOpEmail != "" {
		op.Email = &seedOpEmail
	}
	if seedOpOutlet != "" {
		id, err := uuid.Parse(seedOpOutlet)
		if err != nil {
			return nil, fmt.Errorf("--outlet: %w", err)
		}
		op.OutletID = &id
	}
	return op, nil
}

func runSeedTill(cmd *cobra.Command, _ []string) error {
	outletID, err := uuid.Parse(seedTillOutlet)
	if err != nil {
		return fmt.Errorf("--outlet: %w", err)
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	till := &model.Till{OutletID: outletID, Name: seedTillName, Active: !seedTillInactive}
	if err := repository.NewTillRepository(db).Create(ctx, till); err != nil {
		return fmt.Errorf("seed till: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "till %q id=%s outlet=%s active=%t\n", till.Name, till.ID, till.OutletID, till.Active)
	return nil
}
