package parliament

import (
	"encoding/json"
	"fmt"
)

// Purpose declares what an envelope asks the receiver to do.
type Purpose string

const (
	// PurposeUpdate carries an attribute change for one archive.
	PurposeUpdate Purpose = "UPDATE"

	// PurposeCreateArchive asks senators to build a new archive through a trigger.
	PurposeCreateArchive Purpose = "CREATE_ARCHIVE"

	// PurposeCancelArchive asks senators to drop an archive.
	PurposeCancelArchive Purpose = "CANCEL_ARCHIVE"

	// PurposeRegisterObserver announces an observer and its key subscriptions.
	PurposeRegisterObserver Purpose = "REGISTER_OBSERVER"

	// PurposeCancelObserver withdraws an observer.
	PurposeCancelObserver Purpose = "CANCEL_OBSERVER"
)

// Validate checks if the Purpose is a valid enum value.
func (p Purpose) Validate() error {
	switch p {
	case PurposeUpdate, PurposeCreateArchive, PurposeCancelArchive,
		PurposeRegisterObserver, PurposeCancelObserver:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPurpose, p)
	}
}

// Envelope is the unit exchanged over the multicast log and unicast queues.
// Origin names the peer that published it.
type Envelope struct {
	Purpose Purpose         `json:"purpose"`
	Origin  string          `json:"origin"`
	Data    json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into an envelope with the given purpose.
func NewEnvelope(purpose Purpose, origin string, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", purpose, err)
	}
	return &Envelope{Purpose: purpose, Origin: origin, Data: raw}, nil
}

// Decode unmarshals the envelope payload into v.
func (e *Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Purpose, err)
	}
	return nil
}

// Update is the UPDATE payload. AttrName is the root attribute the hook is
// registered under; Value addresses the (possibly nested) field and carries
// the new value. A plain attribute assignment is a single-segment path.
type Update struct {
	ClassName     string      `json:"class_name"`
	ValidateAttr  string      `json:"validate_attr"`
	ValidateValue string      `json:"validate_value"`
	AttrName      string      `json:"attr_name"`
	Value         *Descriptor `json:"value"`
}

// Key returns the archive key the update targets.
func (u *Update) Key() Key {
	return Key{Class: u.ClassName, Attr: u.ValidateAttr, Value: u.ValidateValue}
}

// CreateArchive is the CREATE_ARCHIVE payload. Object is passed verbatim to
// the constructor registered under Trigger.
type CreateArchive struct {
	Trigger string          `json:"trigger"`
	Key     Key             `json:"key"`
	Object  json.RawMessage `json:"object"`
}

// CancelArchive is the CANCEL_ARCHIVE payload.
type CancelArchive struct {
	Key Key `json:"key"`
}

// RegisterObserver is the REGISTER_OBSERVER payload.
type RegisterObserver struct {
	Name string `json:"name"`
	Keys []Key  `json:"keys"`
}

// CancelObserver is the CANCEL_OBSERVER payload.
type CancelObserver struct {
	Name string `json:"name"`
}
