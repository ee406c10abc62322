package types

import (
	"testing"

	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/google/uuid"
)

func TestDecodePurposeMetadataRegistration(t *testing.T) {
	registrationID := uuid.New()
	eventID := uuid.New()
	clubID := uuid.New()

	md := map[string]string{
		"purpose_kind":    "event_registration",
		"registration_id": registrationID.String(),
		"event_id":        eventID.String(),
		"club_id":         clubID.String(),
	}

	purpose, err := DecodePurposeMetadata(md)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if purpose.Kind != enums.PurposeKindEventRegistration {
		t.Fatalf("unexpected kind %s", purpose.Kind)
	}
	if purpose.Registration == nil {
		t.Fatal("expected registration variant")
	}
	if purpose.Registration.RegistrationID != registrationID {
		t.Fatalf("unexpected registration id %s", purpose.Registration.RegistrationID)
	}
	if purpose.ClubID() != clubID {
		t.Fatalf("unexpected club id %s", purpose.ClubID())
	}
}

func TestDecodePurposeMetadataRejectsUnknownKind(t *testing.T) {
	if _, err := DecodePurposeMetadata(map[string]string{"purpose_kind": "tee_time"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDecodePurposeMetadataRejectsMissingIDs(t *testing.T) {
	md := map[string]string{
		"purpose_kind": "membership",
		"club_id":      uuid.New().String(),
	}
	if _, err := DecodePurposeMetadata(md); err == nil {
		t.Fatal("expected error for missing membership id")
	}
}

func TestEncodeMetadataRoundTrip(t *testing.T) {
	original := PaymentPurpose{
		Kind: enums.PurposeKindCreditBundle,
		CreditBundle: &CreditBundlePurpose{
			ClubID:  uuid.New(),
			Credits: 500,
		},
	}

	md, err := original.EncodeMetadata()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodePurposeMetadata(md)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.CreditBundle == nil || decoded.CreditBundle.Credits != 500 {
		t.Fatalf("unexpected decoded purpose %+v", decoded)
	}
	if decoded.CreditBundle.ClubID != original.CreditBundle.ClubID {
		t.Fatalf("club id mismatch")
	}
}

func TestPaymentPurposeValidateRejectsMultipleVariants(t *testing.T) {
	purpose := PaymentPurpose{
		Kind:         enums.PurposeKindMembership,
		Membership:   &MembershipPurpose{MembershipID: uuid.New(), PlanID: uuid.New(), ClubID: uuid.New()},
		CreditBundle: &CreditBundlePurpose{ClubID: uuid.New(), Credits: 10},
	}
	if err := purpose.Validate(); err == nil {
		t.Fatal("expected error for two variants")
	}
}
