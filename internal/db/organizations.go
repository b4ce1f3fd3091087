package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"textflow/internal/models"
)

// CreateOrganization creates a new organization.
func (d *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, features, texting_hours_start, texting_hours_end, texting_hours_enforced)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	return d.Pool.QueryRow(ctx, query,
		org.Name, org.Features, org.TextingHoursStart, org.TextingHoursEnd, org.TextingHoursEnforced,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
}

// GetOrganizationByID retrieves an organization by ID.
func (d *DB) GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT id, name, features, texting_hours_start, texting_hours_end, texting_hours_enforced,
		       created_at, updated_at
		FROM organizations WHERE id = $1
	`

	var org models.Organization
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.Features,
		&org.TextingHoursStart, &org.TextingHoursEnd, &org.TextingHoursEnforced,
		&org.CreatedAt, &org.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}

// GetOrganizationForCampaign retrieves the organization a campaign belongs
// to with a single joined query.
func (d *DB) GetOrganizationForCampaign(ctx context.Context, campaignID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.features, o.texting_hours_start, o.texting_hours_end,
		       o.texting_hours_enforced, o.created_at, o.updated_at
		FROM organizations o
		JOIN campaigns c ON c.organization_id = o.id
		WHERE c.id = $1
	`

	var org models.Organization
	err := d.Pool.QueryRow(ctx, query, campaignID).Scan(
		&org.ID, &org.Name, &org.Features,
		&org.TextingHoursStart, &org.TextingHoursEnd, &org.TextingHoursEnforced,
		&org.CreatedAt, &org.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	return &org, nil
}

// UpdateOrganizationFeatures replaces the serialized features column.
// Callers must clear the organization's cache entry afterwards.
func (d *DB) UpdateOrganizationFeatures(ctx context.Context, id uuid.UUID, features string) error {
	tag, err := d.Pool.Exec(ctx, `
		UPDATE organizations SET features = $2, updated_at = now() WHERE id = $1
	`, id, features)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrgNotFound
	}
	return nil
}
