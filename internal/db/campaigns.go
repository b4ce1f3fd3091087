package db

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"textflow/internal/models"
)

// CreateCampaign creates a new campaign.
func (d *DB) CreateCampaign(ctx context.Context, campaign *models.Campaign) error {
	query := `
		INSERT INTO campaigns (organization_id, title, is_archived, is_started, use_dynamic_assignment, batch_size, features)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	return d.Pool.QueryRow(ctx, query,
		campaign.OrganizationID, campaign.Title, campaign.IsArchived, campaign.IsStarted,
		campaign.UseDynamicAssignment, campaign.BatchSize, campaign.Features,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)
}

// GetCampaignByID retrieves a campaign row by ID.
func (d *DB) GetCampaignByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `
		SELECT id, organization_id, title, is_archived, is_started, use_dynamic_assignment,
		       batch_size, features, created_at, updated_at
		FROM campaigns WHERE id = $1
	`

	var campaign models.Campaign
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&campaign.ID, &campaign.OrganizationID, &campaign.Title,
		&campaign.IsArchived, &campaign.IsStarted, &campaign.UseDynamicAssignment,
		&campaign.BatchSize, &campaign.Features, &campaign.CreatedAt, &campaign.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}

	return &campaign, nil
}

// SetCampaignArchived flips the archived flag. Callers must clear the
// campaign's cache entry afterwards.
func (d *DB) SetCampaignArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	tag, err := d.Pool.Exec(ctx, `
		UPDATE campaigns SET is_archived = $2, updated_at = now() WHERE id = $1
	`, id, archived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// SetCampaignStarted flips the started flag.
func (d *DB) SetCampaignStarted(ctx context.Context, id uuid.UUID, started bool) error {
	tag, err := d.Pool.Exec(ctx, `
		UPDATE campaigns SET is_started = $2, updated_at = now() WHERE id = $1
	`, id, started)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

// GetCampaignCustomFields returns the custom-field names of the campaign's
// first contact. The first contact's fields serve as a schema hint for the
// whole campaign. No contacts means no custom fields, not an error.
func (d *DB) GetCampaignCustomFields(ctx context.Context, campaignID uuid.UUID) ([]string, error) {
	// The subselect pins the query planner to the campaign_id index when
	// picking the minimum contact id.
	query := `
		SELECT custom_fields FROM campaign_contacts
		WHERE id = (
			SELECT min(id) FROM campaign_contacts WHERE campaign_id = $1
		)
	`

	var raw string
	err := d.Pool.QueryRow(ctx, query, campaignID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return []string{}, nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// GetCampaignInteractionSteps returns the campaign's live interaction steps
// assembled into a tree of root steps.
func (d *DB) GetCampaignInteractionSteps(ctx context.Context, campaignID uuid.UUID) ([]*models.InteractionStep, error) {
	query := `
		SELECT id, campaign_id, parent_id, question, script, answer_option,
		       answer_actions, answer_actions_data, is_deleted
		FROM interaction_steps
		WHERE campaign_id = $1 AND is_deleted = FALSE
		ORDER BY created_at, id
	`

	rows, err := d.Pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*models.InteractionStep
	for rows.Next() {
		var step models.InteractionStep
		if err := rows.Scan(
			&step.ID, &step.CampaignID, &step.ParentID, &step.Question, &step.Script,
			&step.AnswerOption, &step.AnswerActions, &step.AnswerActionsData, &step.IsDeleted,
		); err != nil {
			return nil, err
		}
		steps = append(steps, &step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return models.AssembleInteractionSteps(steps), nil
}

// GetCampaignContactTimezones returns the distinct timezone offsets across
// the campaign's contacts.
func (d *DB) GetCampaignContactTimezones(ctx context.Context, campaignID uuid.UUID) ([]string, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT DISTINCT timezone_offset FROM campaign_contacts WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offsets []string
	for rows.Next() {
		var tz string
		if err := rows.Scan(&tz); err != nil {
			return nil, err
		}
		offsets = append(offsets, tz)
	}
	return offsets, rows.Err()
}

// GetCampaignContactsCount returns the campaign's total contact count.
func (d *DB) GetCampaignContactsCount(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := d.Pool.QueryRow(ctx, `
		SELECT count(*) FROM campaign_contacts WHERE campaign_id = $1
	`, campaignID).Scan(&count)
	return count, err
}

// GetCampaignAssignedCount counts contacts with an assignment. Used for the
// full recount that corrects counter drift after bulk assignment changes.
func (d *DB) GetCampaignAssignedCount(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := d.Pool.QueryRow(ctx, `
		SELECT count(*) FROM campaign_contacts
		WHERE campaign_id = $1 AND assignment_id IS NOT NULL
	`, campaignID).Scan(&count)
	return count, err
}
