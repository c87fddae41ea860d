package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Bracket is one row of an annual progressive PAYE table. BaseCents is
// the cumulative tax owed on everything below LowerCents, so tax for an
// annual income g landing in this bracket is
// base + rate * (g - lower).
type Bracket struct {
	LowerCents int64   `json:"lower_cents"`
	Rate       float64 `json:"rate"`
	BaseCents  int64   `json:"base_cents"`
}

// TaxTable is one versioned set of statutory parameters. Tables are
// immutable once created; rate changes ship as a new version so that a
// payroll run can always be reproduced against the version it used.
type TaxTable struct {
	ID      snowflake.ID `gorm:"primaryKey"`
	Version string       `gorm:"type:text;not null;uniqueIndex"`

	Brackets           datatypes.JSON `gorm:"not null"`
	PrimaryRebateCents int64          `gorm:"not null"`

	UIFEmployeeRate            float64 `gorm:"type:numeric(6,4);not null"`
	UIFEmployerRate            float64 `gorm:"type:numeric(6,4);not null"`
	UIFCeilingCents            int64   `gorm:"not null"`
	SDLRate                    float64 `gorm:"type:numeric(6,4);not null"`
	SDLExemptionThresholdCents int64   `gorm:"not null"`

	IsActive  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TaxTable) TableName() string { return "tax_tables" }

func (t *TaxTable) DecodeBrackets() ([]Bracket, error) {
	var brackets []Bracket
	if err := json.Unmarshal(t.Brackets, &brackets); err != nil {
		return nil, ErrInvalidBrackets
	}
	if len(brackets) == 0 {
		return nil, ErrInvalidBrackets
	}
	return brackets, nil
}

func (t *TaxTable) Validate() error {
	if t.Version == "" {
		return ErrInvalidVersion
	}
	brackets, err := t.DecodeBrackets()
	if err != nil {
		return err
	}
	if brackets[0].LowerCents != 0 {
		return ErrInvalidBrackets
	}
	for i, b := range brackets {
		if b.Rate < 0 || b.Rate > 1 || b.BaseCents < 0 {
			return ErrInvalidBrackets
		}
		if i > 0 && b.LowerCents <= brackets[i-1].LowerCents {
			return ErrInvalidBrackets
		}
	}
	if t.PrimaryRebateCents < 0 || t.UIFCeilingCents < 0 {
		return ErrInvalidRate
	}
	if t.UIFEmployeeRate < 0 || t.UIFEmployerRate < 0 || t.SDLRate < 0 {
		return ErrInvalidRate
	}
	return nil
}

// Breakdown is the statutory result for one employee-month, in cents.
// UIFEmployerCents and SDLCents are employer costs and do not reduce
// NetCents.
type Breakdown struct {
	GrossCents       int64  `json:"gross_cents"`
	PAYECents        int64  `json:"paye_cents"`
	UIFEmployeeCents int64  `json:"uif_employee_cents"`
	UIFEmployerCents int64  `json:"uif_employer_cents"`
	SDLCents         int64  `json:"sdl_cents"`
	NetCents         int64  `json:"net_cents"`
	TableVersion     string `json:"table_version"`
}
