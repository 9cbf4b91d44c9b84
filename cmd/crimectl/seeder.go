package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/crime-report-api/internal/repository"
	"github.com/noah-isme/crime-report-api/internal/service"
	"github.com/noah-isme/crime-report-api/pkg/config"
	"github.com/noah-isme/crime-report-api/pkg/database"
	"github.com/noah-isme/crime-report-api/pkg/logger"
)

var (
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Insert bootstrap data",
	}
	seedSuperAdminCmd = &cobra.Command{
		Use:   "superadmin",
		Short: "Create or promote the bootstrap SUPER_ADMIN account",
		RunE:  runSeedSuperAdmin,
	}
	seedEmail         string
	seedPassword      string
	seedResetPassword bool
)

func init() {
	seedSuperAdminCmd.Flags().StringVar(&seedEmail, "email", "", "account email (defaults to SEED_SUPER_ADMIN_EMAIL)")
	seedSuperAdminCmd.Flags().StringVar(&seedPassword, "password", "", "account password (defaults to SEED_SUPER_ADMIN_PASSWORD)")
	seedSuperAdminCmd.Flags().BoolVar(&seedResetPassword, "reset-password", false, "overwrite the password of an existing account")
	seedCmd.AddCommand(seedSuperAdminCmd)
	rootCmd.AddCommand(seedCmd)
}

func runSeedSuperAdmin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	opts := service.SeedOptions{
		Email:         seedEmail,
		Password:      seedPassword,
		ResetPassword: seedResetPassword,
	}
	if opts.Email == "" {
		opts.Email = cfg.Seed.SuperAdminEmail
	}
	if opts.Password == "" {
		opts.Password = cfg.Seed.SuperAdminPassword
	}

	users := repository.NewUserRepository(db)
	limits := service.PageLimits{Default: cfg.Pagination.AuditDefaultLimit, Max: cfg.Pagination.AuditMaxLimit}
	audit := service.NewAuditService(repository.NewAuditRepository(db), users, nil, logr, limits)
	seeder := service.NewSeedService(db, users, service.NewBcryptHasher(0), audit, logr)

	result, err := seeder.SeedSuperAdmin(ctx, opts)
	if err != nil {
		return err
	}
	logr.Info("super admin seeded",
		zap.String("user_id", result.UserID),
		zap.String("email", result.Email),
		zap.String("outcome", result.Outcome),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", result.Outcome, result.Email, result.UserID)
	return nil
}
