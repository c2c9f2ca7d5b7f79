package application

import (
	"strings"

	"github.com/ccc-cruise/service-promo/internal/domain/promo"
)

// CodeValidation is the per-code result of a batch validation.
type CodeValidation struct {
	Code    string `json:"code"`
	Type    string `json:"type,omitempty"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// BatchValidation is the result of validating one submission of codes.
type BatchValidation struct {
	Results    []CodeValidation `json:"results"`
	HasSbs     bool             `json:"has_sbs"`
	HasArtist  bool             `json:"has_artist"`
	HasCcc     bool             `json:"has_ccc"`
	MixBlocked bool             `json:"mix_blocked"`
	AnyInvalid bool             `json:"any_invalid"`
}

// ValidateBatch classifies each submitted code by prefix and flags
// case-insensitive duplicates within the batch. It is pure: no repository
// or ledger is touched. Staff (SBS) codes are mutually exclusive with the
// artist and early-bird types within one submission.
func ValidateBatch(codes []string) BatchValidation {
	result := BatchValidation{Results: make([]CodeValidation, 0, len(codes))}

	seen := make(map[string]bool, len(codes))
	for _, raw := range codes {
		entry := CodeValidation{Code: raw}
		normalized := strings.ToUpper(strings.TrimSpace(raw))

		codeType, ok := promo.Classify(normalized)
		switch {
		case !ok:
			entry.Message = "Not recognized"
			result.AnyInvalid = true
		case seen[normalized]:
			entry.Message = "Duplicate code"
			result.AnyInvalid = true
		default:
			seen[normalized] = true
			entry.Valid = true
			entry.Type = string(codeType)

			switch codeType {
			case promo.TypeStaff:
				result.HasSbs = true
			case promo.TypeArtist:
				result.HasArtist = true
			case promo.TypeEarlyBird:
				result.HasCcc = true
			}
		}

		result.Results = append(result.Results, entry)
	}

	result.MixBlocked = result.HasSbs && (result.HasArtist || result.HasCcc)
	return result
}
