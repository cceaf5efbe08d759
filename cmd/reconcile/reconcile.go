// Package reconcile rebuilds work days from their entries.
package reconcile

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/datastore"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/localday"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/workday"
)

// maxDays bounds one invocation.
const maxDays = 366

// Options selects the rows to rebuild.
type Options struct {
	OrgID      string
	UserID     string
	LocationID string
	From       string
	// To defaults to From.
	To string
	// Timezone overrides the organization zone.
	Timezone string
}

// Command creates the reconcile command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute work days from entries",
		Long: "Recompute the work day of every local day in --from..--to for one member and location. " +
			"Use it after a reconcile failed or to repair rows written by older versions.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.OrgID, "org", "", "Organization ID")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "User ID")
	cmd.Flags().StringVar(&opts.LocationID, "location", "", "Location ID")
	cmd.Flags().StringVar(&opts.From, "from", "", "First local date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Last local date (YYYY-MM-DD), defaults to --from")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "IANA zone overriding the organization zone")
	for _, name := range []string{"org", "user", "location", "from"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// Run reconciles the range and prints one line per day to out. It fails
// when any day could not be reconciled; the other days are still written.
func Run(ctx context.Context, settings *conf.Settings, opts Options, out io.Writer) error {
	from, to, err := parseRange(opts.From, opts.To)
	if err != nil {
		return err
	}

	mgr, err := datastore.Open(datastore.OptionsFromSettings(settings, logger.Global().Module("datastore")))
	if err != nil {
		return err
	}
	defer func() { _ = mgr.Close() }()
	repos := repository.New(mgr.DB())

	org, err := repos.Directory.GetOrganization(ctx, opts.OrgID)
	if err != nil {
		return lookupError(err, "organization", opts.OrgID)
	}
	if _, err := repos.Directory.GetMember(ctx, org.ID, opts.UserID); err != nil {
		return lookupError(err, "user", opts.UserID)
	}
	if _, err := repos.Directory.GetLocation(ctx, org.ID, opts.LocationID); err != nil {
		return lookupError(err, "location", opts.LocationID)
	}

	zones, err := localday.NewResolver(settings.Policy.DefaultTimezone)
	if err != nil {
		return err
	}
	zone, err := zones.Resolve(opts.Timezone, org.Timezone)
	if err != nil {
		return err
	}

	agg := workday.New(repos, workday.Options{
		DailyMinimumMinutes: settings.Policy.DailyMinimumMinutes,
		Workers:             settings.Reconcile.Workers,
		Logger:              logger.Global().Module("workday"),
	})
	report := agg.ReconcileRange(ctx, workday.Key{
		OrgID:          org.ID,
		UserID:         opts.UserID,
		LocationID:     opts.LocationID,
		Timezone:       zone,
		MinimumMinutes: org.MinimumMinutes(),
	}, from, to)

	printReport(out, report)
	return report.Err()
}

func parseRange(fromStr, toStr string) (from, to localday.Date, err error) {
	if from, err = localday.ParseDate(fromStr); err != nil {
		return from, to, errors.ValidationError("from", "must be a YYYY-MM-DD date")
	}
	to = from
	if toStr != "" {
		if to, err = localday.ParseDate(toStr); err != nil {
			return from, to, errors.ValidationError("to", "must be a YYYY-MM-DD date")
		}
	}
	if to.Before(from) {
		return from, to, errors.ValidationError("to", "must not be before from")
	}
	if n := len(localday.Dates(from, to)); n > maxDays {
		return from, to, errors.ValidationError("to", fmt.Sprintf("range covers %d days, at most %d allowed", n, maxDays))
	}
	return from, to, nil
}

func lookupError(err error, entity, id string) error {
	switch {
	case errors.Is(err, repository.ErrOrganizationNotFound),
		errors.Is(err, repository.ErrMemberNotFound),
		errors.Is(err, repository.ErrLocationNotFound):
		return errors.NotFoundError(entity, id)
	default:
		return err
	}
}

func printReport(out io.Writer, report workday.BatchReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintln(w, "DATE\tACTION\tTOTAL\tBREAK\tPOLICY\tANOMALIES")
	for _, o := range report.Succeeded {
		total, brk, policy := "-", "-", "-"
		if o.WorkDay != nil {
			total = fmt.Sprintf("%d", o.WorkDay.TotalMinutes)
			brk = fmt.Sprintf("%d", o.WorkDay.BreakMinutes)
			policy = fmt.Sprintf("%t", o.WorkDay.MeetsPolicy)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", o.Key.Date, o.Action, total, brk, policy, len(o.Anomalies))
	}
	for _, f := range report.Failed {
		fmt.Fprintf(w, "%s\tfailed\t-\t-\t-\t-\n", f.Key.Date)
	}
}
