package promo

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/ccc-cruise/service-promo/internal/domain"
	"github.com/google/uuid"
)

// CodeType identifies one of the fixed promo code families.
type CodeType string

const (
	TypeEarlyBird CodeType = "early_bird"
	TypeArtist    CodeType = "artist"
	TypeStaff     CodeType = "staff"
)

// CapacityBounded reports whether reservations of this type count against
// a per-category cap. Staff codes are deliberately uncapped.
func (t CodeType) CapacityBounded() bool {
	return t == TypeEarlyBird || t == TypeArtist
}

// Valid reports whether t is one of the known code types.
func (t CodeType) Valid() bool {
	return t == TypeEarlyBird || t == TypeArtist || t == TypeStaff
}

// Status is the administrative lifecycle state of a promo code.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Assignment is optional metadata recording who a code was handed to.
type Assignment struct {
	Name  string
	Email string
	Phone string
	Note  string
}

// PromoCode is the aggregate root for promotional codes.
type PromoCode struct {
	id         uuid.UUID
	code       string
	codeType   CodeType
	status     Status
	maxUses    int // 0 means unlimited
	assignedTo Assignment
	createdAt  time.Time
	updatedAt  time.Time
}

// NewPromoCode creates a new active promo code. The code string is stored
// upper-cased so uniqueness is case-insensitive.
func NewPromoCode(code string, codeType CodeType, maxUses int, assignedTo Assignment) (*PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.NewInvalidInputError("promo code is required")
	}
	if !codeType.Valid() {
		return nil, domain.NewInvalidInputError("invalid code type: %s", codeType)
	}
	if maxUses < 0 {
		return nil, domain.NewInvalidInputError("max uses cannot be negative")
	}

	now := time.Now().UTC()
	return &PromoCode{
		id:         uuid.New(),
		code:       code,
		codeType:   codeType,
		status:     StatusActive,
		maxUses:    maxUses,
		assignedTo: assignedTo,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstruct rebuilds a PromoCode from persistence.
func Reconstruct(id uuid.UUID, code string, codeType CodeType, status Status, maxUses int, assignedTo Assignment, createdAt, updatedAt time.Time) *PromoCode {
	return &PromoCode{
		id: id, code: code, codeType: codeType, status: status,
		maxUses: maxUses, assignedTo: assignedTo,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Archive deactivates the code for new reservations.
func (p *PromoCode) Archive() {
	p.status = StatusArchived
	p.updatedAt = time.Now().UTC()
}

// Reactivate makes an archived code usable again.
func (p *PromoCode) Reactivate() {
	p.status = StatusActive
	p.updatedAt = time.Now().UTC()
}

// IsArchived reports whether the code is administratively deactivated.
func (p *PromoCode) IsArchived() bool { return p.status == StatusArchived }

// Getters.
func (p *PromoCode) ID() uuid.UUID          { return p.id }
func (p *PromoCode) Code() string           { return p.code }
func (p *PromoCode) Type() CodeType         { return p.codeType }
func (p *PromoCode) Status() Status         { return p.status }
func (p *PromoCode) MaxUses() int           { return p.maxUses }
func (p *PromoCode) AssignedTo() Assignment { return p.assignedTo }
func (p *PromoCode) CreatedAt() time.Time   { return p.createdAt }
func (p *PromoCode) UpdatedAt() time.Time   { return p.updatedAt }

// codeCharset excludes 0/O and 1/I to keep codes readable over the phone.
const codeCharset = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const randomSuffixLen = 8

// GenerateCode produces a random code string for the given type, prefixed
// per the classification rules so generated codes classify back to their type.
func GenerateCode(codeType CodeType) (string, error) {
	prefix, ok := prefixFor(codeType)
	if !ok {
		return "", domain.NewInvalidInputError("invalid code type: %s", codeType)
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	for i := 0; i < randomSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(codeCharset[n.Int64()])
	}
	return sb.String(), nil
}
