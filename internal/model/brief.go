package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// briefValidator is shared; validator.Validate is safe for concurrent use.
var briefValidator = validator.New(validator.WithRequiredStructEnabled())

// BriefFilters are the optional structured constraints a curator can
// attach to a brief. All fields narrow discovery; none are required.
type BriefFilters struct {
	TimePeriod      string   `json:"time_period,omitempty" validate:"omitempty,max=100"`
	YearRangeFrom   int      `json:"year_range_from,omitempty" validate:"omitempty,gte=1000,lte=2100"`
	YearRangeTo     int      `json:"year_range_to,omitempty" validate:"omitempty,gte=1000,lte=2100"`
	ArtMovements    []string `json:"art_movements,omitempty" validate:"max=5,dive,min=2,max=100"`
	MediaTypes      []string `json:"media_types,omitempty" validate:"max=5,dive,min=2,max=100"`
	GeographicFocus []string `json:"geographic_focus,omitempty" validate:"max=10,dive,min=2,max=100"`
}

// CuratorBrief is the free-text exhibition brief submitted by a
// curator. Immutable once submitted: the pipeline reads it at every
// stage but never writes it back.
type CuratorBrief struct {
	Title            string       `json:"title" validate:"required,min=1,max=200"`
	Description      string       `json:"description,omitempty" validate:"max=2000"`
	Concepts         []string     `json:"concepts" validate:"required,min=1,max=10,dive,min=3,max=100"`
	ReferenceArtists []string     `json:"reference_artists,omitempty" validate:"max=20,dive,min=2,max=200"`
	TargetAudience   string       `json:"target_audience,omitempty" validate:"omitempty,oneof=general academic youth family specialists"`
	DurationWeeks    int          `json:"duration_weeks,omitempty" validate:"omitempty,gte=2,lte=52"`
	Filters          BriefFilters `json:"filters,omitempty"`
}

// Validate runs the struct tags plus the cross-field rules the tags
// cannot express (year-range ordering).
func (b CuratorBrief) Validate() error {
	if err := briefValidator.Struct(b); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("brief: field %s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("brief: %w", err)
	}
	f := b.Filters
	if f.YearRangeFrom != 0 && f.YearRangeTo != 0 && f.YearRangeFrom >= f.YearRangeTo {
		return fmt.Errorf("brief: year_range_to must be after year_range_from")
	}
	return nil
}

// ConceptQuery joins the brief's concepts into a single search string.
func (b CuratorBrief) ConceptQuery() string {
	return strings.Join(b.Concepts, " ")
}
