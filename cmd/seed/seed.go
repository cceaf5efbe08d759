// Package seed creates an organization with a location and members, for
// local testing.
package seed

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/geoclock/timekeeper/internal/api/auth"
	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/datastore"
	"github.com/geoclock/timekeeper/internal/datastore/entities"
	"github.com/geoclock/timekeeper/internal/datastore/repository"
	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/localday"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
)

// Options describes what to create. Empty IDs are generated.
type Options struct {
	OrgName             string
	Timezone            string
	DailyMinimumMinutes int

	LocationName string
	Latitude     float64
	Longitude    float64
	RadiusMeters int

	AdminID     string
	EmployeeIDs []string
}

// Result lists the created rows. Tokens maps user IDs to bearer tokens and
// is empty when no signing secret is configured.
type Result struct {
	OrgID      string
	LocationID string
	AdminID    string
	Employees  []string
	Tokens     map[string]string
}

// Command creates the seed command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create an organization, a location and members",
		Long: "Create an organization with one location, an OWNER and optional employees, " +
			"and print a bearer token per member when security.jwtsecret is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := Run(cmd.Context(), settings, opts)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.OrgName, "org-name", "Demo", "Organization name")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "UTC", "Organization IANA timezone")
	cmd.Flags().IntVar(&opts.DailyMinimumMinutes, "minimum", 0, "Daily minimum minutes, 0 uses the configured policy")
	cmd.Flags().StringVar(&opts.LocationName, "location-name", "Office", "Location name")
	cmd.Flags().Float64Var(&opts.Latitude, "latitude", 0, "Location latitude")
	cmd.Flags().Float64Var(&opts.Longitude, "longitude", 0, "Location longitude")
	cmd.Flags().IntVar(&opts.RadiusMeters, "radius", 100, "Geofence radius in meters")
	cmd.Flags().StringVar(&opts.AdminID, "admin", "", "Owner user ID (generated when empty)")
	cmd.Flags().StringSliceVar(&opts.EmployeeIDs, "employee", nil, "Employee user IDs")

	return cmd
}

// Run validates opts and writes every row in one transaction.
func Run(ctx context.Context, settings *conf.Settings, opts Options) (*Result, error) {
	if err := validate(opts); err != nil {
		return nil, err
	}

	mgr, err := datastore.Open(datastore.OptionsFromSettings(settings, logger.Global().Module("datastore")))
	if err != nil {
		return nil, err
	}
	defer func() { _ = mgr.Close() }()
	repos := repository.New(mgr.DB())

	if opts.Timezone == "" {
		opts.Timezone = "UTC"
	}
	org := &entities.Organization{Name: strings.TrimSpace(opts.OrgName), Timezone: opts.Timezone}
	if opts.DailyMinimumMinutes > 0 {
		minimum := opts.DailyMinimumMinutes
		org.DailyMinimumMinutes = &minimum
	}
	location := &entities.Location{
		Name:         strings.TrimSpace(opts.LocationName),
		Latitude:     opts.Latitude,
		Longitude:    opts.Longitude,
		RadiusMeters: opts.RadiusMeters,
	}
	res := &Result{AdminID: opts.AdminID, Tokens: make(map[string]string)}
	if res.AdminID == "" {
		res.AdminID = uuid.NewString()
	}

	err = repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Directory.SaveOrganization(ctx, org); err != nil {
			return err
		}
		location.OrgID = org.ID
		if err := tx.Directory.SaveLocation(ctx, location); err != nil {
			return err
		}
		if err := tx.Directory.SaveMember(ctx, &entities.Member{OrgID: org.ID, UserID: res.AdminID, Role: model.RoleOwner}); err != nil {
			return err
		}
		for _, id := range opts.EmployeeIDs {
			if err := tx.Directory.SaveMember(ctx, &entities.Member{OrgID: org.ID, UserID: id, Role: model.RoleEmployee}); err != nil {
				return err
			}
			res.Employees = append(res.Employees, id)
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("seed").
			Category(errors.CategoryDatabase).
			Build()
	}
	res.OrgID = org.ID
	res.LocationID = location.ID

	if settings.Security.JWTSecret != "" {
		tokens, err := auth.NewTokenService(settings.Security.JWTSecret, settings.Main.Name)
		if err != nil {
			return nil, err
		}
		for _, id := range append([]string{res.AdminID}, res.Employees...) {
			token, err := tokens.Issue(id, org.ID, auth.DefaultTokenTTL)
			if err != nil {
				return nil, err
			}
			res.Tokens[id] = token
		}
	}

	logger.Global().Module("seed").Info("seeded organization",
		logger.String("org_id", res.OrgID),
		logger.String("location_id", res.LocationID),
		logger.Int("members", 1+len(res.Employees)))
	return res, nil
}

func validate(opts Options) error {
	switch {
	case strings.TrimSpace(opts.OrgName) == "":
		return errors.ValidationError("org-name", "is required")
	case strings.TrimSpace(opts.LocationName) == "":
		return errors.ValidationError("location-name", "is required")
	case opts.Latitude < -90 || opts.Latitude > 90:
		return errors.ValidationError("latitude", "must be between -90 and 90")
	case opts.Longitude < -180 || opts.Longitude > 180:
		return errors.ValidationError("longitude", "must be between -180 and 180")
	case opts.RadiusMeters <= 0:
		return errors.ValidationError("radius", "must be positive")
	case opts.DailyMinimumMinutes < 0:
		return errors.ValidationError("minimum", "must not be negative")
	}
	for _, id := range opts.EmployeeIDs {
		if strings.TrimSpace(id) == "" || id == opts.AdminID {
			return errors.ValidationError("employee", "ids must be non-empty and differ from the admin")
		}
	}
	if _, err := localday.NewResolver(opts.Timezone); err != nil {
		return err
	}
	return nil
}

func printResult(out io.Writer, res *Result) {
	fmt.Fprintf(out, "organization: %s\n", res.OrgID)
	fmt.Fprintf(out, "location:     %s\n", res.LocationID)
	fmt.Fprintf(out, "owner:        %s\n", res.AdminID)
	for _, id := range res.Employees {
		fmt.Fprintf(out, "employee:     %s\n", id)
	}
	if len(res.Tokens) == 0 {
		fmt.Fprintln(out, "no tokens issued: security.jwtsecret is not set")
		return
	}
	for _, id := range append([]string{res.AdminID}, res.Employees...) {
		fmt.Fprintf(out, "token %s: %s\n", id, res.Tokens[id])
	}
}
