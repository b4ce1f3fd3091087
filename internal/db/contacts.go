package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CampaignContact is the narrow contact row the core subsystem touches.
// Contact import and the full contact lifecycle live outside this subsystem.
type CampaignContact struct {
	ID            int64      `json:"id"`
	CampaignID    uuid.UUID  `json:"campaign_id"`
	AssignmentID  *uuid.UUID `json:"assignment_id,omitempty"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Cell          string     `json:"cell"`
	MessageStatus string     `json:"message_status"`
}

// GetCampaignContact retrieves one contact by id.
func (d *DB) GetCampaignContact(ctx context.Context, id int64) (*CampaignContact, error) {
	var contact CampaignContact
	err := d.Pool.QueryRow(ctx, `
		SELECT id, campaign_id, assignment_id, first_name, last_name, cell, message_status
		FROM campaign_contacts WHERE id = $1
	`, id).Scan(
		&contact.ID, &contact.CampaignID, &contact.AssignmentID,
		&contact.FirstName, &contact.LastName, &contact.Cell, &contact.MessageStatus,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

// SaveContactTags upserts the given tags for a contact.
func (d *DB) SaveContactTags(ctx context.Context, contactID int64, tags map[string]string) error {
	for name, value := range tags {
		if _, err := d.Pool.Exec(ctx, `
			INSERT INTO campaign_contact_tags (campaign_contact_id, name, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (campaign_contact_id, name) DO UPDATE SET value = EXCLUDED.value
		`, contactID, name, value); err != nil {
			return err
		}
	}
	return nil
}

// PickOwnedPhoneNumber selects an unallocated phone number owned by the
// organization for the given service, at random.
func (d *DB) PickOwnedPhoneNumber(ctx context.Context, orgID uuid.UUID, service string) (string, error) {
	var number string
	err := d.Pool.QueryRow(ctx, `
		SELECT phone_number FROM owned_phone_numbers
		WHERE organization_id = $1 AND service = $2 AND allocated_to_id IS NULL
		ORDER BY random()
		LIMIT 1
	`, orgID, service).Scan(&number)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return number, nil
}
