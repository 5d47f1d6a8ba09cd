package apikey

import (
	"encoding/json"
	"fmt"
)

const (
	APIKeyRandomBytes  = 32
	SecondsPerDay      = 24 * 3600
	DefaultDaysValid   = 30
	FingerprintLength  = 8
	DefaultSnapshotKey = "keygate:api_keys"
)

// CredentialRecord is the persisted state of one issued API key. The key
// string itself is the map key of the snapshot and is not stored here.
type CredentialRecord struct {
	ClientName       string  `json:"client_name"`
	CreatedAt        int64   `json:"created_at"`
	ExpiresAt        int64   `json:"expires_at"`
	RateCapacity     int     `json:"rate_capacity"`
	RateRefillPerSec float64 `json:"rate_refill_per_sec"`
}

// IsExpiredAt reports whether the record is expired at the given unix second.
func (r CredentialRecord) IsExpiredAt(unix int64) bool {
	return unix > r.ExpiresAt
}

func NewCredentialRecord(clientName string, createdAt int64, daysValid int, capacity int, refillPerSec float64) CredentialRecord {
	return CredentialRecord{
		ClientName:       clientName,
		CreatedAt:        createdAt,
		ExpiresAt:        createdAt + int64(daysValid)*SecondsPerDay,
		RateCapacity:     capacity,
		RateRefillPerSec: refillPerSec,
	}
}

func EncodeSnapshot(records map[string]CredentialRecord) ([]byte, error) {
	if records == nil {
		records = map[string]CredentialRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode api key snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a snapshot document. Empty input and a JSON null
// both decode to an empty mapping.
func DecodeSnapshot(data []byte) (map[string]CredentialRecord, error) {
	records := make(map[string]CredentialRecord)
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode api key snapshot: %w", err)
	}
	if records == nil {
		records = make(map[string]CredentialRecord)
	}
	return records, nil
}
