// internal/feed/criteria.go

package feed

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/nikkjaat/cafemeetups-client/internal/common/validate"
)

// Criteria is the session-scoped discovery filter. Changing it replaces the
// feed contents and resets the cursor.
type Criteria struct {
	Category         string   `json:"category"`
	AgeMin           int      `json:"ageMin" validate:"gte=18"`
	AgeMax           int      `json:"ageMax" validate:"gte=18,gtefield=AgeMin"`
	Distance         int      `json:"distance" validate:"gte=0"`
	Interests        []string `json:"interests,omitempty"`
	RelationshipType string   `json:"relationshipType,omitempty" validate:"omitempty,oneof=casual serious friendship marriage"`
	LookingFor       string   `json:"lookingFor,omitempty"`
	Limit            int      `json:"limit" validate:"gte=1"`
}

// DefaultCriteria mirrors the app's initial filter panel state.
func DefaultCriteria() Criteria {
	return Criteria{
		Category: "all",
		AgeMin:   18,
		AgeMax:   100,
		Distance: 50,
		Limit:    50,
	}
}

// Validate rejects malformed criteria before any request is sent.
func (c Criteria) Validate() error {
	return validate.Struct(c)
}

// Query encodes the criteria as discovery query parameters.
func (c Criteria) Query() url.Values {
	q := url.Values{}
	category := c.Category
	if category == "" {
		category = "all"
	}
	q.Set("category", category)
	q.Set("ageMin", strconv.Itoa(c.AgeMin))
	q.Set("ageMax", strconv.Itoa(c.AgeMax))
	q.Set("distance", strconv.Itoa(c.Distance))
	q.Set("limit", strconv.Itoa(c.Limit))
	if c.RelationshipType != "" {
		q.Set("relationshipType", c.RelationshipType)
	}
	if c.LookingFor != "" {
		q.Set("lookingFor", c.LookingFor)
	}
	if len(c.Interests) > 0 {
		q.Set("interests", strings.Join(c.Interests, ","))
	}
	return q
}
