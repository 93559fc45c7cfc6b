package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/examcell/duty-roster/internal/config"
	"github.com/examcell/duty-roster/internal/domain"
	"github.com/examcell/duty-roster/internal/persistence"
	"github.com/examcell/duty-roster/internal/report"
	"github.com/examcell/duty-roster/internal/service"
)

// rosterFile is the seed format.
//
//	staff:
//	  - faculty_details: C037-Kannan, K
//	    max_duties: 4
//	unavailability:
//	  - staff_id: C037
//	    unavailable_dates: [12-01-2026]
type rosterFile struct {
	Staff          []service.RosterEntry         `yaml:"staff"`
	Unavailability []service.UnavailabilityEntry `yaml:"unavailability"`
}

// slotFile is the batch format; rows run in file order.
//
//	slots:
//	  - date: 10-01-2026
//	    session: FN
//	    required: 3
type slotFile struct {
	Slots []domain.SlotRequest `yaml:"slots"`
}

func readYAML(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *cli) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or replace staff from a roster YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rf rosterFile
			if err := readYAML(file, &rf); err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			n, err := a.RosterService.Populate(cmd.Context(), rf.Staff)
			if err != nil {
				return err
			}
			updated := 0
			if len(rf.Unavailability) > 0 {
				if updated, err = a.RosterService.AddUnavailability(cmd.Context(), rf.Unavailability); err != nil {
					return err
				}
			}
			return c.print(map[string]int{"populated": n, "unavailability_updated": updated})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "roster.yaml", "roster YAML file")
	return cmd
}

func (c *cli) assignCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Run an assignment batch from a slots YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sf slotFile
			if err := readYAML(file, &sf); err != nil {
				return err
			}
			if len(sf.Slots) == 0 {
				return errors.New("no slots in " + file)
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			batch := a.Assignments.AssignBatch(cmd.Context(), sf.Slots)
			if err := c.print(batch); err != nil {
				return err
			}
			if batch.Err != nil {
				return batch.Err
			}
			if batch.Aborted {
				return fmt.Errorf("batch aborted after %d of %d rows", batch.Processed, batch.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "slots.yaml", "slots YAML file")
	return cmd
}

func (c *cli) redistributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redistribute <staff-id>",
		Short: "Hand a staff member's duties to colleagues and clear them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			r, err := a.Reassignments.Redistribute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(r)
		},
	}
}

func (c *cli) transferCmd() *cobra.Command {
	var complete bool
	cmd := &cobra.Command{
		Use:   "transfer <source-id> <target-id>",
		Short: "Move every duty from source to target, or nothing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			run := a.Reassignments.Transfer
			if complete {
				run = a.Reassignments.CompleteTransfer
			}
			r, err := run(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.print(r)
		},
	}
	cmd.Flags().BoolVar(&complete, "complete", false, "only clear the source of an earlier incomplete transfer")
	return cmd
}

func (c *cli) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "report [datewise|staffwise|duties]",
		Short:     "Print a roster projection",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(report.KindDateWise), string(report.KindStaffWise), string(report.KindDuties)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := report.KindDuties
			if len(args) == 1 {
				k, ok := report.ParseKind(args[0])
				if !ok {
					return fmt.Errorf("unknown report %q", args[0])
				}
				kind = k
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			r, err := a.Reports.Build(cmd.Context(), kind)
			if err != nil {
				return err
			}
			return c.print(r)
		},
	}
}

func (c *cli) cleanupCmd() *cobra.Command {
	var (
		staffID string
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Clear past duties (default), one staff member, or everyone",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			switch {
			case all:
				if err := a.RosterService.ResetAll(cmd.Context()); err != nil {
					return err
				}
				return c.print(map[string]string{"reset": "all"})
			case staffID != "":
				if err := a.RosterService.ResetStaff(cmd.Context(), staffID); err != nil {
					return err
				}
				return c.print(map[string]string{"reset": staffID})
			default:
				r, err := a.RosterService.ClearPastDuties(cmd.Context())
				if err != nil {
					return err
				}
				return c.print(r)
			}
		},
	}
	cmd.Flags().Bool("past", true, "clear duties and unavailable dates before today")
	cmd.Flags().StringVar(&staffID, "staff", "", "reset one staff member")
	cmd.Flags().BoolVar(&all, "all", false, "reset every staff member")
	cmd.MarkFlagsMutuallyExclusive("staff", "all")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the Postgres roster store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Store.Backend != config.StorePostgres {
				return fmt.Errorf("migrate needs STORE_BACKEND=postgres, have %q", c.cfg.Store.Backend)
			}
			pg, err := persistence.NewPostgres(cmd.Context(), c.cfg.Postgres, c.logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), c.cfg.Postgres.MigrationsDir, c.logger); err != nil {
				return err
			}
			return c.print(map[string]string{"migrations": c.cfg.Postgres.MigrationsDir})
		},
	}
}
