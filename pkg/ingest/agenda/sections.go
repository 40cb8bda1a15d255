package agenda

import (
	"strings"

	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

// SectionRule maps a section title to a category when the lower-cased title
// contains any of its keywords.
type SectionRule struct {
	Keywords []string
	Category types.SectionCategory
}

// DefaultSectionRules is the keyword table used for agenda section titles.
// Rules are tried in order; the first match wins.
var DefaultSectionRules = []SectionRule{
	{[]string{"first reading"}, types.CategoryOrdinanceFirstReading},
	{[]string{"second reading", "hearing"}, types.CategoryOrdinanceSecondReading},
	{[]string{"claims"}, types.CategoryClaims},
	{[]string{"resolution"}, types.CategoryResolutions},
	{[]string{"public request"}, types.CategoryPublicHearing},
	{[]string{"petition", "communication"}, types.CategoryPetitionsCommunications},
	{[]string{"officers"}, types.CategoryOfficersCommunications},
	{[]string{"reports", "directors"}, types.CategoryReportsOfDirectors},
	{[]string{"regular meeting"}, types.CategoryRegularMeeting},
	{[]string{"reception"}, types.CategoryReceptionBid},
	{[]string{"deferred", "tabled"}, types.CategoryDeferred},
	{[]string{"adjournment"}, types.CategoryAdjournment},
}

// ClassifySection returns the category of the first rule whose keyword
// appears in title, or CategoryOther.
func ClassifySection(title string, rules []SectionRule) types.SectionCategory {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Category
			}
		}
	}
	return types.CategoryOther
}

// ItemTypeFor derives the item type from a section category.
func ItemTypeFor(c types.SectionCategory) types.ItemType {
	s := string(c)
	switch {
	case strings.Contains(s, "ordinance"):
		return types.ItemOrdinance
	case strings.Contains(s, "resolution"):
		return types.ItemResolution
	case strings.Contains(s, "claims"):
		return types.ItemClaims
	}
	return types.ItemOther
}
