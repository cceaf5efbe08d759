// Package export writes an organization's work days to a spreadsheet file.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/datastore"
	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	workdays "github.com/geoclock/timekeeper/internal/export"
	"github.com/geoclock/timekeeper/internal/localday"
	"github.com/geoclock/timekeeper/internal/logger"
)

// Options selects the rows and the output.
type Options struct {
	OrgID  string
	From   string
	To     string
	Format string
	// Out is the destination file; "-" writes to stdout. Empty derives
	// workdays_<org>_<from>_<to>.<ext> in the working directory.
	Out string
}

// Command creates the export command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export work days as xlsx or csv",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := Run(cmd.Context(), settings, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if path != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.OrgID, "org", "", "Organization ID")
	cmd.Flags().StringVar(&opts.From, "from", "", "First local date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Last local date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", workdays.FormatXLSX, "Output format: xlsx, csv")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "Output file, - for stdout")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

// Run writes the export and returns the path written, or "-" for stdout.
func Run(ctx context.Context, settings *conf.Settings, opts Options, stdout io.Writer) (string, error) {
	_, ext, err := workdays.ContentType(opts.Format)
	if err != nil {
		return "", errors.ValidationError("format", "must be xlsx or csv")
	}
	filter := repository.WorkDayFilter{OrgID: opts.OrgID, From: opts.From, To: opts.To}
	if err := checkDate("from", opts.From); err != nil {
		return "", err
	}
	if err := checkDate("to", opts.To); err != nil {
		return "", err
	}

	mgr, err := datastore.Open(datastore.OptionsFromSettings(settings, logger.Global().Module("datastore")))
	if err != nil {
		return "", err
	}
	defer func() { _ = mgr.Close() }()
	repos := repository.New(mgr.DB())

	org, err := repos.Directory.GetOrganization(ctx, opts.OrgID)
	if err != nil {
		if errors.Is(err, repository.ErrOrganizationNotFound) {
			return "", errors.NotFoundError("organization", opts.OrgID)
		}
		return "", err
	}
	zones, err := localday.NewResolver(settings.Policy.DefaultTimezone)
	if err != nil {
		return "", err
	}
	zone, err := zones.Resolve(org.Timezone)
	if err != nil {
		return "", err
	}

	days, err := repository.AllWorkDays(ctx, repos.WorkDays, filter)
	if err != nil {
		return "", err
	}
	locations, err := repos.Directory.ListLocations(ctx, org.ID)
	if err != nil {
		return "", err
	}
	names := make(map[string]string, len(locations))
	for _, l := range locations {
		names[l.ID] = l.Name
	}
	render := workdays.Options{Timezone: zone, LocationNames: names}

	if opts.Out == "-" {
		return "-", workdays.Write(stdout, ext, days, render)
	}

	path := opts.Out
	if path == "" {
		path = defaultName(org.ID, opts.From, opts.To, ext)
	}
	if err := writeFile(path, ext, days, render); err != nil {
		return "", errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	logger.Global().Module("export").Info("work days exported",
		logger.String("org_id", org.ID),
		logger.String("path", path),
		logger.Int("rows", len(days)))
	return path, nil
}

// writeFile writes to a temporary file in the target directory and renames
// it into place.
func writeFile(path, ext string, days []*entities.WorkDay, render workdays.Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".workdays-*."+ext)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := workdays.Write(tmp, ext, days, render); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temporary file: %w", err)
	}
	return os.Rename(tmpName, path)
}

func checkDate(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := localday.ParseDate(v); err != nil {
		return errors.ValidationError(field, "must be a YYYY-MM-DD date")
	}
	return nil
}

func defaultName(orgID, from, to, ext string) string {
	if from == "" {
		from = "start"
	}
	if to == "" {
		to = time.Now().UTC().Format("2006-01-02")
	}
	return fmt.Sprintf("workdays_%s_%s_%s.%s", orgID, from, to, ext)
}
