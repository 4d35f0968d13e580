package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"PulseMail/internal/config"
	"PulseMail/internal/models"
	"PulseMail/internal/schedule"
)

var (
	nextType  string
	nextData  string
	nextFrom  string
	nextCount int
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Preview the next run times of a schedule",
	Example: `  pulsectl next --type weekly --data '{"time":"07:30","weekday":6}'
  pulsectl next --type monthly --data '{"time":"00:00","day":31}' --from 2024-02-15T00:00 -n 3`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		spec, err := models.DecodeSpec(models.ScheduleType(nextType), []byte(nextData), loc)
		if err != nil {
			return err
		}

		now := time.Now().In(loc)
		if nextFrom != "" {
			if now, err = models.ParseDatetime(nextFrom, loc); err != nil {
				return err
			}
			now = now.In(loc)
		}

		fmt.Println(schedule.Describe(spec))
		for i := 0; i < nextCount; i++ {
			next, err := schedule.NextRun(spec, now)
			if err != nil {
				return err
			}
			fmt.Println(next.Format("Mon 2006-01-02 15:04 MST"))
			if _, once := spec.(models.OnceSpec); once {
				break
			}
			now = next
		}
		return nil
	},
}

func init() {
	nextCmd.Flags().StringVarP(&nextType, "type", "t", "daily", "Schedule type: once, daily, weekly, monthly, interval")
	nextCmd.Flags().StringVarP(&nextData, "data", "d", "", "Schedule parameters as JSON")
	nextCmd.Flags().StringVar(&nextFrom, "from", "", "Compute from this datetime instead of now")
	nextCmd.Flags().IntVarP(&nextCount, "count", "n", 1, "Number of upcoming runs to show")
	_ = nextCmd.MarkFlagRequired("data")
}
