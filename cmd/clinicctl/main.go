package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yyds352/hospital-appointment/internal/app"
	"github.com/yyds352/hospital-appointment/internal/appointment"
	"github.com/yyds352/hospital-appointment/internal/config"
	"github.com/yyds352/hospital-appointment/internal/db"
	"github.com/yyds352/hospital-appointment/internal/logging"
	"github.com/yyds352/hospital-appointment/internal/seed"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Clinic scheduling administration",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(slotsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadPostgres() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	if cfg.Storage != config.StoragePostgres {
		return config.Config{}, zerolog.Nop(), errors.New("clinicctl requires STORAGE=postgres")
	}
	return cfg, logging.New(cfg.Env, cfg.LogLevel), nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	run := func(up bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadPostgres()
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			version, err := db.Migrate(dir, cfg.PostgresDSN, up)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Schema at version %d.\n", version)
			return nil
		}
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE:  run(true),
	}
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE:  run(false),
	}
	for _, c := range []*cobra.Command{upCmd, downCmd} {
		c.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
		cmd.AddCommand(c)
	}
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load generated departments, doctors, patients and slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadPostgres()
			if err != nil {
				return err
			}
			var opts seed.Options
			opts.Departments, _ = cmd.Flags().GetInt("departments")
			opts.DoctorsPerDepartment, _ = cmd.Flags().GetInt("doctors")
			opts.Patients, _ = cmd.Flags().GetInt("patients")
			opts.Days, _ = cmd.Flags().GetInt("days")
			opts.Capacity, _ = cmd.Flags().GetInt("capacity")
			opts.Seed, _ = cmd.Flags().GetUint64("seed")

			ctx := context.Background()
			a, err := app.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := seed.Load(ctx, seed.Generate(opts), a.Writer, a.Slots)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Printf("Seeded %d departments, %d doctors, %d patients, %d slots (%d already existed).\n",
				sum.Departments, sum.Doctors, sum.Patients, sum.Slots, sum.Skipped)
			return nil
		},
	}
	cmd.Flags().Int("departments", 3, "Number of departments")
	cmd.Flags().Int("doctors", 3, "Doctors per department")
	cmd.Flags().Int("patients", 50, "Number of patients")
	cmd.Flags().Int("days", 7, "Days of slots starting today")
	cmd.Flags().Int("capacity", 10, "Capacity of each slot")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 = random)")
	return cmd
}

type slotArgs struct {
	doctorID uuid.UUID
	date     time.Time
	periods  []appointment.Period
}

func parseSlotArgs(cmd *cobra.Command) (slotArgs, error) {
	var sa slotArgs
	rawDoctor, _ := cmd.Flags().GetString("doctor")
	id, err := uuid.Parse(rawDoctor)
	if err != nil {
		return sa, fmt.Errorf("--doctor must be a UUID: %w", err)
	}
	sa.doctorID = id

	rawDate, _ := cmd.Flags().GetString("date")
	sa.date, err = time.Parse(time.DateOnly, rawDate)
	if err != nil {
		return sa, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}

	rawPeriod, _ := cmd.Flags().GetString("period")
	if rawPeriod == "" {
		sa.periods = []appointment.Period{appointment.PeriodMorning, appointment.PeriodAfternoon}
		return sa, nil
	}
	p, err := appointment.ParsePeriod(rawPeriod)
	if err != nil {
		return sa, err
	}
	sa.periods = []appointment.Period{p}
	return sa, nil
}

func slotFlags(cmd *cobra.Command) {
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Slot date (YYYY-MM-DD)")
	cmd.Flags().String("period", "", "MORNING or AFTERNOON (default both)")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("date")
}

func withService(fn func(ctx context.Context, svc *appointment.Service) error) error {
	cfg, log, err := loadPostgres()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Service)
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Manage doctor schedule slots",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create slots for a doctor on consecutive days",
		RunE: func(cmd *cobra.Command, args []string) error {
			sa, err := parseSlotArgs(cmd)
			if err != nil {
				return err
			}
			capacity, _ := cmd.Flags().GetInt("capacity")
			days, _ := cmd.Flags().GetInt("days")

			return withService(func(ctx context.Context, svc *appointment.Service) error {
				for d := 0; d < days; d++ {
					date := sa.date.AddDate(0, 0, d)
					for _, p := range sa.periods {
						slot, err := svc.CreateSlot(ctx, sa.doctorID, date, p, capacity)
						if errors.Is(err, appointment.ErrDuplicateSlot) {
							fmt.Printf("%s/%s already exists\n", date.Format(time.DateOnly), p)
							continue
						}
						if err != nil {
							return err
						}
						fmt.Printf("created %s capacity=%d\n", slot.Key(), slot.MaxCapacity)
					}
				}
				return nil
			})
		},
	}
	slotFlags(createCmd)
	createCmd.Flags().Int("capacity", 10, "Max capacity of each slot")
	createCmd.Flags().Int("days", 1, "Number of consecutive days")
	cmd.AddCommand(createCmd)

	setStatus := func(use, short string, status appointment.SlotStatus) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				sa, err := parseSlotArgs(cmd)
				if err != nil {
					return err
				}
				return withService(func(ctx context.Context, svc *appointment.Service) error {
					for _, p := range sa.periods {
						slot, err := svc.SetSlotStatus(ctx, appointment.NewSlotKey(sa.doctorID, sa.date, p), status)
						if err != nil {
							return err
						}
						fmt.Printf("%s is %s (%d/%d available)\n", slot.Key(), slot.Status, slot.AvailableCapacity, slot.MaxCapacity)
					}
					return nil
				})
			},
		}
		slotFlags(c)
		return c
	}
	cmd.AddCommand(setStatus("suspend", "Stop new bookings on a slot", appointment.SlotSuspended))
	cmd.AddCommand(setStatus("resume", "Reopen a suspended slot", appointment.SlotActive))

	return cmd
}
