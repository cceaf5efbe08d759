package repository

import (
	"context"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// DirectoryRepository provides access to organizations, members and locations.
type DirectoryRepository interface {
	// GetOrganization returns ErrOrganizationNotFound if absent.
	GetOrganization(ctx context.Context, id string) (*entities.Organization, error)

	// GetMember returns ErrMemberNotFound if the user does not belong to the organization.
	GetMember(ctx context.Context, orgID, userID string) (*entities.Member, error)

	// GetLocation returns ErrLocationNotFound if absent or owned by another organization.
	GetLocation(ctx context.Context, orgID, id string) (*entities.Location, error)

	// ListLocations returns the locations of an organization ordered by name.
	ListLocations(ctx context.Context, orgID string) ([]*entities.Location, error)

	// SaveOrganization inserts or updates an organization.
	SaveOrganization(ctx context.Context, org *entities.Organization) error

	// SaveMember inserts or updates a membership.
	SaveMember(ctx context.Context, member *entities.Member) error

	// SaveLocation inserts or updates a location.
	SaveLocation(ctx context.Context, location *entities.Location) error
}
