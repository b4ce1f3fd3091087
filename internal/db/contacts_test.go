package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestGetCampaignContact(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	org := createTestOrg(t, db)
	campaign := createTestCampaign(t, db, org.ID)
	contactID := insertTestContact(t, db, campaign.ID, "{}", "-5_1", true)

	contact, err := db.GetCampaignContact(ctx, contactID)
	if err != nil {
		t.Fatalf("GetCampaignContact() error = %v", err)
	}
	if contact.CampaignID != campaign.ID {
		t.Errorf("GetCampaignContact() campaign = %v, want %v", contact.CampaignID, campaign.ID)
	}
	if contact.AssignmentID == nil {
		t.Error("GetCampaignContact() assignment_id = nil, want set")
	}
	if contact.MessageStatus != "needsMessage" {
		t.Errorf("GetCampaignContact() message_status = %q, want %q", contact.MessageStatus, "needsMessage")
	}

	// Not found
	_, err = db.GetCampaignContact(ctx, contactID+100000)
	if !errors.Is(err, ErrContactNotFound) {
		t.Errorf("GetCampaignContact() error = %v, want ErrContactNotFound", err)
	}
}

func TestSaveContactTags(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	org := createTestOrg(t, db)
	campaign := createTestCampaign(t, db, org.ID)
	contactID := insertTestContact(t, db, campaign.ID, "{}", "", false)

	err := db.SaveContactTags(ctx, contactID, map[string]string{"voter": "yes", "volunteer": ""})
	if err != nil {
		t.Fatalf("SaveContactTags() error = %v", err)
	}

	// Saving again updates in place instead of failing on the key.
	err = db.SaveContactTags(ctx, contactID, map[string]string{"voter": "no"})
	if err != nil {
		t.Fatalf("SaveContactTags() upsert error = %v", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT name, value FROM campaign_contact_tags WHERE campaign_contact_id = $1
	`, contactID)
	if err != nil {
		t.Fatalf("failed to read tags back: %v", err)
	}
	defer rows.Close()

	got := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			t.Fatalf("failed to scan tag: %v", err)
		}
		got[name] = value
	}
	if got["voter"] != "no" {
		t.Errorf("tag voter = %q, want %q", got["voter"], "no")
	}
	if _, ok := got["volunteer"]; !ok {
		t.Error("tag volunteer missing")
	}
	if len(got) != 2 {
		t.Errorf("tag count = %d, want 2", len(got))
	}
}

func TestPickOwnedPhoneNumber(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	org := createTestOrg(t, db)

	// Empty pool is not an error.
	number, err := db.PickOwnedPhoneNumber(ctx, org.ID, "fakeservice")
	if err != nil {
		t.Fatalf("PickOwnedPhoneNumber() error = %v", err)
	}
	if number != "" {
		t.Errorf("PickOwnedPhoneNumber() = %q, want empty for empty pool", number)
	}

	allocated := uuid.New()
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO owned_phone_numbers (organization_id, service, phone_number, allocated_to_id)
		VALUES ($1, 'fakeservice', '+15550001111', $2),
		       ($1, 'fakeservice', '+15550002222', NULL),
		       ($1, 'twilio', '+15550003333', NULL)
	`, org.ID, allocated)
	if err != nil {
		t.Fatalf("failed to insert phone numbers: %v", err)
	}

	number, err = db.PickOwnedPhoneNumber(ctx, org.ID, "fakeservice")
	if err != nil {
		t.Fatalf("PickOwnedPhoneNumber() error = %v", err)
	}
	if number != "+15550002222" {
		t.Errorf("PickOwnedPhoneNumber() = %q, want the unallocated fakeservice number", number)
	}
}
