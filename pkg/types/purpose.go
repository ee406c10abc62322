package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/google/uuid"
)

// RegistrationPurpose identifies the event registration a payment settles.
type RegistrationPurpose struct {
	RegistrationID uuid.UUID `json:"registration_id"`
	EventID        uuid.UUID `json:"event_id"`
	ClubID         uuid.UUID `json:"club_id"`
}

// MembershipPurpose identifies the club membership a payment activates.
type MembershipPurpose struct {
	MembershipID uuid.UUID `json:"membership_id"`
	PlanID       uuid.UUID `json:"plan_id"`
	ClubID       uuid.UUID `json:"club_id"`
}

// CreditBundlePurpose identifies a platform credit top-up. Credit bundles are
// charged to the platform account, not a club's connected account.
type CreditBundlePurpose struct {
	ClubID  uuid.UUID `json:"club_id"`
	Credits int64     `json:"credits"`
}

// PaymentPurpose is a tagged union describing what a checkout payment pays
// for. Exactly one variant is set, selected by Kind. The webhook boundary
// decodes processor metadata into this type once; handlers never read raw
// metadata maps.
type PaymentPurpose struct {
	Kind         enums.PurposeKind    `json:"kind"`
	Registration *RegistrationPurpose `json:"event_registration,omitempty"`
	Membership   *MembershipPurpose   `json:"membership,omitempty"`
	CreditBundle *CreditBundlePurpose `json:"credit_bundle,omitempty"`
}

// Validate checks that Kind is known and the matching variant (and only that
// variant) is populated.
func (p PaymentPurpose) Validate() error {
	if !p.Kind.IsValid() {
		return fmt.Errorf("purpose: invalid kind %q", p.Kind)
	}
	set := 0
	if p.Registration != nil {
		set++
	}
	if p.Membership != nil {
		set++
	}
	if p.CreditBundle != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("purpose: expected exactly one variant, got %d", set)
	}

	switch p.Kind {
	case enums.PurposeKindEventRegistration:
		if p.Registration == nil {
			return fmt.Errorf("purpose: kind %s requires registration variant", p.Kind)
		}
		if p.Registration.RegistrationID == uuid.Nil || p.Registration.ClubID == uuid.Nil {
			return fmt.Errorf("purpose: registration variant missing ids")
		}
	case enums.PurposeKindMembership:
		if p.Membership == nil {
			return fmt.Errorf("purpose: kind %s requires membership variant", p.Kind)
		}
		if p.Membership.MembershipID == uuid.Nil || p.Membership.ClubID == uuid.Nil {
			return fmt.Errorf("purpose: membership variant missing ids")
		}
	case enums.PurposeKindCreditBundle:
		if p.CreditBundle == nil {
			return fmt.Errorf("purpose: kind %s requires credit bundle variant", p.Kind)
		}
		if p.CreditBundle.ClubID == uuid.Nil || p.CreditBundle.Credits <= 0 {
			return fmt.Errorf("purpose: credit bundle variant incomplete")
		}
	}
	return nil
}

// ClubID returns the club the purpose belongs to, across variants.
func (p PaymentPurpose) ClubID() uuid.UUID {
	switch {
	case p.Registration != nil:
		return p.Registration.ClubID
	case p.Membership != nil:
		return p.Membership.ClubID
	case p.CreditBundle != nil:
		return p.CreditBundle.ClubID
	}
	return uuid.Nil
}

// IsZero reports whether no purpose was recorded. Refund and dispute rows
// have none of their own.
func (p PaymentPurpose) IsZero() bool {
	return p.Kind == "" && p.Registration == nil && p.Membership == nil && p.CreditBundle == nil
}

// Value serializes the purpose to JSONB. A zero purpose persists as NULL.
func (p PaymentPurpose) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// Scan decodes JSONB into the purpose.
func (p *PaymentPurpose) Scan(value interface{}) error {
	if value == nil {
		*p = PaymentPurpose{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded PaymentPurpose
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*p = decoded
	return nil
}

// Metadata key names attached to processor checkout sessions and payment
// intents. The processor only carries flat string maps.
const (
	metaPurposeKind    = "purpose_kind"
	metaRegistrationID = "registration_id"
	metaEventID        = "event_id"
	metaMembershipID   = "membership_id"
	metaPlanID         = "plan_id"
	metaClubID         = "club_id"
	metaCredits        = "credits"
)

// MetadataKeySessionRef carries the local checkout session id alongside the
// purpose so settlement-first reconstruction can recover the payer.
const MetadataKeySessionRef = "checkout_session_id"

// EncodeMetadata flattens the purpose into processor metadata.
func (p PaymentPurpose) EncodeMetadata() (map[string]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	md := map[string]string{metaPurposeKind: p.Kind.String()}
	switch p.Kind {
	case enums.PurposeKindEventRegistration:
		md[metaRegistrationID] = p.Registration.RegistrationID.String()
		md[metaEventID] = p.Registration.EventID.String()
		md[metaClubID] = p.Registration.ClubID.String()
	case enums.PurposeKindMembership:
		md[metaMembershipID] = p.Membership.MembershipID.String()
		md[metaPlanID] = p.Membership.PlanID.String()
		md[metaClubID] = p.Membership.ClubID.String()
	case enums.PurposeKindCreditBundle:
		md[metaClubID] = p.CreditBundle.ClubID.String()
		md[metaCredits] = strconv.FormatInt(p.CreditBundle.Credits, 10)
	}
	return md, nil
}

// DecodePurposeMetadata rebuilds the tagged union from processor metadata.
// Called once at the webhook boundary.
func DecodePurposeMetadata(md map[string]string) (PaymentPurpose, error) {
	kind, err := enums.ParsePurposeKind(md[metaPurposeKind])
	if err != nil {
		return PaymentPurpose{}, fmt.Errorf("purpose: %w", err)
	}

	purpose := PaymentPurpose{Kind: kind}
	switch kind {
	case enums.PurposeKindEventRegistration:
		variant := RegistrationPurpose{}
		if variant.RegistrationID, err = parseMetaUUID(md, metaRegistrationID); err != nil {
			return PaymentPurpose{}, err
		}
		if variant.EventID, err = parseMetaUUID(md, metaEventID); err != nil {
			return PaymentPurpose{}, err
		}
		if variant.ClubID, err = parseMetaUUID(md, metaClubID); err != nil {
			return PaymentPurpose{}, err
		}
		purpose.Registration = &variant
	case enums.PurposeKindMembership:
		variant := MembershipPurpose{}
		if variant.MembershipID, err = parseMetaUUID(md, metaMembershipID); err != nil {
			return PaymentPurpose{}, err
		}
		if variant.PlanID, err = parseMetaUUID(md, metaPlanID); err != nil {
			return PaymentPurpose{}, err
		}
		if variant.ClubID, err = parseMetaUUID(md, metaClubID); err != nil {
			return PaymentPurpose{}, err
		}
		purpose.Membership = &variant
	case enums.PurposeKindCreditBundle:
		variant := CreditBundlePurpose{}
		if variant.ClubID, err = parseMetaUUID(md, metaClubID); err != nil {
			return PaymentPurpose{}, err
		}
		credits, err := strconv.ParseInt(md[metaCredits], 10, 64)
		if err != nil {
			return PaymentPurpose{}, fmt.Errorf("purpose: parse credits: %w", err)
		}
		variant.Credits = credits
		purpose.CreditBundle = &variant
	}

	if err := purpose.Validate(); err != nil {
		return PaymentPurpose{}, err
	}
	return purpose, nil
}

func parseMetaUUID(md map[string]string, key string) (uuid.UUID, error) {
	raw, ok := md[key]
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("purpose: metadata missing %s", key)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("purpose: parse %s: %w", key, err)
	}
	return parsed, nil
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
