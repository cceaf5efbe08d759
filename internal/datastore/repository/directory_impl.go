package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/geoclock/timekeeper/internal/datastore/entities"
)

// directoryRepository implements DirectoryRepository.
type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

// GetOrganization retrieves an organization by ID.
func (r *directoryRepository) GetOrganization(ctx context.Context, id string) (*entities.Organization, error) {
	var org entities.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetMember retrieves a membership.
func (r *directoryRepository) GetMember(ctx context.Context, orgID, userID string) (*entities.Member, error) {
	var member entities.Member
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// GetLocation retrieves a location scoped to an organization.
func (r *directoryRepository) GetLocation(ctx context.Context, orgID, id string) (*entities.Location, error) {
	var location entities.Location
	err := r.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&location).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// ListLocations returns the locations of an organization.
func (r *directoryRepository) ListLocations(ctx context.Context, orgID string) ([]*entities.Location, error) {
	var locations []*entities.Location
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("name ASC").
		Find(&locations).Error
	if err != nil {
		return nil, err
	}
	return locations, nil
}

// SaveOrganization upserts an organization by ID.
func (r *directoryRepository) SaveOrganization(ctx context.Context, org *entities.Organization) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "timezone", "daily_minimum_minutes"}),
		}).
		Create(org).Error
}

// SaveMember upserts a membership by (org_id, user_id).
func (r *directoryRepository) SaveMember(ctx context.Context, member *entities.Member) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role"}),
		}).
		Create(member).Error
}

// SaveLocation upserts a location by ID.
func (r *directoryRepository) SaveLocation(ctx context.Context, location *entities.Location) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "latitude", "longitude", "radius_meters"}),
		}).
		Create(location).Error
}
