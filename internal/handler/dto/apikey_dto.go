package dto

import "github.com/makkenzo/keygate/internal/domain/apikey"

// CreateAPIKeyRequest binds from a JSON body or from query/form values.
type CreateAPIKeyRequest struct {
	ClientName string `json:"client_name" form:"client_name" binding:"required"`
	DaysValid  *int   `json:"days_valid" form:"days_valid" binding:"omitempty,gte=1"`
}

type RevokeAPIKeyRequest struct {
	Key string `json:"key" form:"key" binding:"required"`
}

type CreateAPIKeyResponse struct {
	Message string                  `json:"message"`
	APIKey  string                  `json:"api_key"`
	Record  apikey.CredentialRecord `json:"record"`
}

type ListAPIKeysResponse struct {
	Message string                             `json:"message"`
	Keys    map[string]apikey.CredentialRecord `json:"keys"`
}

type RevokedKey struct {
	Revoked string `json:"revoked"`
}

type RevokeAPIKeyResponse struct {
	Message string     `json:"message"`
	Key     RevokedKey `json:"key"`
}

type WhoAmIResponse struct {
	ClientName       string  `json:"client_name"`
	CreatedAt        int64   `json:"created_at"`
	ExpiresAt        int64   `json:"expires_at"`
	RateCapacity     int     `json:"rate_capacity"`
	RateRefillPerSec float64 `json:"rate_refill_per_sec"`
}

func NewWhoAmIResponse(rec apikey.CredentialRecord) *WhoAmIResponse {
	return &WhoAmIResponse{
		ClientName:       rec.ClientName,
		CreatedAt:        rec.CreatedAt,
		ExpiresAt:        rec.ExpiresAt,
		RateCapacity:     rec.RateCapacity,
		RateRefillPerSec: rec.RateRefillPerSec,
	}
}
