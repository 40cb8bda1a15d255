// Package types provides the record types produced by the council document parsers.
package types

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Meeting types.
const (
	MeetingRegular = "regular"
	MeetingSpecial = "special"
)

// MeetingInfo is derived once per document from its leading text.
type MeetingInfo struct {
	Type string `json:"type" yaml:"type"`
	// Date is YYYY-MM-DD, or the raw matched text when it does not parse.
	Date *string `json:"date" yaml:"date"`
}

// SectionCategory is the normalized classification of a section title.
type SectionCategory string

const (
	CategoryOrdinanceFirstReading   SectionCategory = "ordinance_first_reading"
	CategoryOrdinanceSecondReading  SectionCategory = "ordinance_second_reading"
	CategoryClaims                  SectionCategory = "claims"
	CategoryResolutions             SectionCategory = "resolutions"
	CategoryPublicHearing           SectionCategory = "public_hearing"
	CategoryPetitionsCommunications SectionCategory = "petitions_communications"
	CategoryOfficersCommunications  SectionCategory = "officers_communications"
	CategoryReportsOfDirectors      SectionCategory = "reports_of_directors"
	CategoryRegularMeeting          SectionCategory = "regular_meeting"
	CategoryReceptionBid            SectionCategory = "reception_bid"
	CategoryDeferred                SectionCategory = "deferred"
	CategoryAdjournment             SectionCategory = "adjournment"
	CategoryOther                   SectionCategory = "other"
)

// ItemType is the record category of an item, derived from its section.
type ItemType string

const (
	ItemOrdinance  ItemType = "ordinance"
	ItemResolution ItemType = "resolution"
	ItemClaims     ItemType = "claims"
	ItemOther      ItemType = "other"
	// ItemAgenda marks the agenda extract in a split manifest.
	ItemAgenda ItemType = "agenda"
)

// Result is the recorded outcome of a vote.
type Result string

const (
	ResultIntroduced Result = "introduced"
	ResultApproved   Result = "approved"
	ResultWithdrawn  Result = "withdrawn"
	ResultDefeated   Result = "defeated"
	ResultTabled     Result = "tabled"
	ResultPostponed  Result = "postponed"
)

// ParseResult maps a printed result word ("Approved", "WITHDRAWN") to a Result.
func ParseResult(word string) Result {
	return Result(strings.ToLower(strings.TrimSpace(word)))
}

// Display returns the result as printed in minutes ("Approved").
func (r Result) Display() string {
	return cases.Title(language.English).String(string(r))
}

// AgendaItem is a single numbered entry of an agenda section.
type AgendaItem struct {
	ItemNumber string   `json:"item_number" yaml:"item_number"`
	Title      string   `json:"title" yaml:"title"`
	PageStart  *int     `json:"page_start" yaml:"page_start"`
	PageEnd    *int     `json:"page_end" yaml:"page_end"`
	FileNumber *string  `json:"file_number" yaml:"file_number"`
	ItemType   ItemType `json:"item_type" yaml:"item_type"`
}

// HasPages reports whether both page bounds are known.
func (i AgendaItem) HasPages() bool {
	return i.PageStart != nil && i.PageEnd != nil
}

// Section is a numbered top-level grouping of an agenda.
type Section struct {
	Number   int             `json:"number" yaml:"number"`
	Title    string          `json:"title" yaml:"title"`
	Category SectionCategory `json:"type" yaml:"type"`
	Items    []AgendaItem    `json:"items" yaml:"items"`
}

// Agenda is the parsed form of an agenda document.
type Agenda struct {
	Meeting     MeetingInfo `json:"meeting" yaml:"meeting"`
	AgendaPages int         `json:"agenda_pages" yaml:"agenda_pages"`
	Sections    []Section   `json:"sections" yaml:"sections"`
}

// ItemCount returns the number of items across all sections.
func (a *Agenda) ItemCount() int {
	n := 0
	for _, s := range a.Sections {
		n += len(s.Items)
	}
	return n
}

// ItemsWithPages returns the number of items that carry a page range.
func (a *Agenda) ItemsWithPages() int {
	n := 0
	for _, s := range a.Sections {
		for _, it := range s.Items {
			if it.HasPages() {
				n++
			}
		}
	}
	return n
}

// VoteBreakdown assigns every roster member to exactly one outcome.
type VoteBreakdown struct {
	Aye     []string `json:"aye" yaml:"aye"`
	Nay     []string `json:"nay" yaml:"nay"`
	Abstain []string `json:"abstain" yaml:"abstain"`
	Absent  []string `json:"absent" yaml:"absent"`
	// Unrecognized holds names from the vote detail that match no roster member.
	Unrecognized []string `json:"unrecognized,omitempty" yaml:"unrecognized,omitempty"`
}

// Total returns the number of roster members assigned.
func (v *VoteBreakdown) Total() int {
	return len(v.Aye) + len(v.Nay) + len(v.Abstain) + len(v.Absent)
}

// MinutesItem is a voted item recovered from meeting minutes.
type MinutesItem struct {
	ItemNumber string         `json:"item_number" yaml:"item_number"`
	Title      string         `json:"title" yaml:"title"`
	FileNumber *string        `json:"file_number" yaml:"file_number"`
	Result     *Result        `json:"result" yaml:"result"`
	VoteTally  *string        `json:"vote_tally" yaml:"vote_tally"`
	Votes      *VoteBreakdown `json:"votes,omitempty" yaml:"votes,omitempty"`
	VoteDetail string         `json:"vote_detail,omitempty" yaml:"vote_detail,omitempty"`
}

// Minutes is the parsed form of a minutes document.
type Minutes struct {
	Meeting         MeetingInfo   `json:"meeting" yaml:"meeting"`
	CouncilMembers  []string      `json:"council_members" yaml:"council_members"`
	InitialAbsences []string      `json:"initial_absences" yaml:"initial_absences"`
	Items           []MinutesItem `json:"items" yaml:"items"`
}

// ResultCounts tallies items by result; items without one count as "no_action".
func (m *Minutes) ResultCounts() map[string]int {
	counts := make(map[string]int)
	for _, it := range m.Items {
		key := "no_action"
		if it.Result != nil {
			key = string(*it.Result)
		}
		counts[key]++
	}
	return counts
}

// Voted returns the number of items with a recorded result.
func (m *Minutes) Voted() int {
	n := 0
	for _, it := range m.Items {
		if it.Result != nil {
			n++
		}
	}
	return n
}
