package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/kakeibo/internal/expense"
	"github.com/frahmantamala/kakeibo/internal/expense/gormstore"
	"github.com/frahmantamala/kakeibo/internal/session"
	"github.com/frahmantamala/kakeibo/pkg/logger"
	"github.com/spf13/cobra"
)

var seedSamples bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Provision the default admin credential",
	Long: `Create the admin credential with the configured default password if no
credential exists yet. An existing credential is never touched. With
--samples a handful of expenses for the current month is recorded too.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Init(cfg.AppEnv, cfg.Logging.Level)
		lg := logger.LoggerWrapper()

		gdb, sqlDB, err := initDB(ctx, cfg.Database, lg)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer sqlDB.Close()

		authService := newAuthService(cfg, sqlDB, session.NewMemoryStore(), lg)
		created, err := authService.EnsureDefaultUser(ctx)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded admin user: %s\n", cfg.Security.AdminUsername)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "admin user already exists; left unchanged")
		}

		if !seedSamples {
			return nil
		}

		svc := expense.NewService(gormstore.NewExpenseRepository(gdb), lg)
		for _, in := range sampleExpenses(time.Now()) {
			exp, err := svc.CreateExpense(ctx, in)
			if err != nil {
				return fmt.Errorf("failed to seed expense %q: %w", in.Category, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded expense #%d %s %s %d\n", exp.ID, exp.Date, exp.Category, exp.Amount)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedSamples, "samples", false, "also record sample expenses for the current month")
}

func sampleExpenses(now time.Time) []expense.ExpenseInput {
	day := func(d int) string {
		return time.Date(now.Year(), now.Month(), d, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	return []expense.ExpenseInput{
		{Date: day(1), Category: "rent", ItemName: "monthly rent", Amount: 80000},
		{Date: day(3), Category: "food", ItemName: "groceries", Store: "supermarket", Amount: 4200},
		{Date: day(5), Category: "utilities", ItemName: "electricity", Amount: 6800},
		{Date: day(8), Category: "transport", ItemName: "train pass", Store: "station", Amount: 9500},
	}
}
