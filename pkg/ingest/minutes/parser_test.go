package minutes

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/council-records/pkg/ingest/textsource"
	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

func strp(v string) *string { return &v }

func resultp(r types.Result) *types.Result { return &r }

func TestParse_UnanimousVoteOnItemLine(t *testing.T) {
	items := Parse([]string{
		"10. RESOLUTIONS",
		"10.1 A Resolution honoring a retiree.  Approved 9-0",
	}, DefaultRoster, Options{})

	require.Len(t, items, 1)
	want := types.MinutesItem{
		ItemNumber: "10.1",
		Title:      "A Resolution honoring a retiree.",
		Result:     resultp(types.ResultApproved),
		VoteTally:  strp("9-0"),
		Votes: &types.VoteBreakdown{
			Aye:     DefaultRoster,
			Nay:     []string{},
			Abstain: []string{},
			Absent:  []string{},
		},
	}
	if diff := cmp.Diff(want, items[0]); diff != "" {
		t.Errorf("item mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NamedNay(t *testing.T) {
	items := Parse([]string{
		"10.2 A Resolution authorizing a contract",
		"Res. 26-115",
		"Approved 8-1  Councilperson Lavarro: nay",
	}, DefaultRoster, Options{})

	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "A Resolution authorizing a contract", it.Title)
	require.NotNil(t, it.FileNumber)
	assert.Equal(t, "Res. 26-115", *it.FileNumber)
	require.NotNil(t, it.Votes)
	assert.Equal(t, []string{"Lavarro"}, it.Votes.Nay)
	assert.Len(t, it.Votes.Aye, 8)
	assert.NotContains(t, it.Votes.Aye, "Lavarro")
	assert.Empty(t, it.Votes.Absent)
	assert.Equal(t, "Councilperson Lavarro: nay", it.VoteDetail)
}

func TestParse_WithdrawnWithoutTally(t *testing.T) {
	items := Parse([]string{
		"4.1 An Ordinance amending parking rules",
		"Ord. 26-010",
		"Withdrawn - Pdf",
		"Withdrawn",
	}, DefaultRoster, Options{})

	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "An Ordinance amending parking rules", it.Title)
	require.NotNil(t, it.Result)
	assert.Equal(t, types.ResultWithdrawn, *it.Result)
	assert.Nil(t, it.VoteTally)
	assert.Nil(t, it.Votes)
	require.NotNil(t, it.FileNumber)
	assert.Equal(t, "Ord. 26-010", *it.FileNumber)
}

func TestParse_WithdrawnLinkLabelSetsResult(t *testing.T) {
	items := Parse([]string{
		"10. RESOLUTIONS",
		"10.4 A Resolution authorizing a lease",
		"Withdrawn - Pdf",
		"10.5 A Resolution honoring a retiree",
		"Res. - Pdf",
		"Approved 9-0",
	}, DefaultRoster, Options{})

	require.Len(t, items, 2)
	withdrawn := items[0]
	assert.Equal(t, "A Resolution authorizing a lease", withdrawn.Title)
	require.NotNil(t, withdrawn.Result)
	assert.Equal(t, types.ResultWithdrawn, *withdrawn.Result)
	assert.Nil(t, withdrawn.VoteTally)
	assert.Empty(t, withdrawn.VoteDetail)

	approved := items[1]
	assert.Equal(t, "A Resolution honoring a retiree", approved.Title)
	require.NotNil(t, approved.Result)
	assert.Equal(t, types.ResultApproved, *approved.Result)
}

func TestParse_ContinuationLines(t *testing.T) {
	items := Parse([]string{
		"3.1",
		"An Ordinance supplementing Chapter 160",
		"Introduced 7-2",
		"",
		"Councilperson Lavarro and",
		"Councilperson Zuppa: nay",
		"Public comment followed.",
	}, DefaultRoster, Options{})

	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "An Ordinance supplementing Chapter 160", it.Title)
	assert.Equal(t, types.ResultIntroduced, *it.Result)
	assert.Equal(t, "Councilperson Lavarro and Councilperson Zuppa: nay", it.VoteDetail)
	assert.Equal(t, []string{"Lavarro", "Zuppa"}, it.Votes.Nay)
	assert.Len(t, it.Votes.Aye, 7)
}

func TestParse_ClaimsInlineTally(t *testing.T) {
	items := Parse([]string{
		"9. CLAIMS",
		"9.1 Meeting Claims List: Approved-9-0",
		"9.2 Payroll claims: 9-0",
	}, DefaultRoster, Options{})

	require.Len(t, items, 2)
	assert.Equal(t, "Meeting Claims List", items[0].Title)
	assert.Equal(t, types.ResultApproved, *items[0].Result)
	assert.Equal(t, "9-0", *items[0].VoteTally)

	assert.Equal(t, "Payroll claims", items[1].Title)
	assert.Equal(t, types.ResultApproved, *items[1].Result)
	assert.Equal(t, "9-0", *items[1].VoteTally)
}

func TestParse_ClaimsBareTallyStrippedFromTitle(t *testing.T) {
	items := Parse([]string{
		"9. CLAIMS",
		"9.1 Meeting Claims List: -9-0",
		"9.2 Dedicated trust",
		"claims: 8-1",
	}, DefaultRoster, Options{})

	require.Len(t, items, 2)
	assert.Equal(t, "Meeting Claims List", items[0].Title)
	assert.Equal(t, "9-0", *items[0].VoteTally)
	assert.Equal(t, "Dedicated trust claims", items[1].Title)
	assert.Equal(t, "8-1", *items[1].VoteTally)
}

func TestParse_SplitSectionHeader(t *testing.T) {
	items := Parse([]string{
		"10.1 A Resolution",
		"Approved 9-0",
		"10.",
		"Resolutions (continued)",
		"10.2 Another Resolution",
		"Defeated 4-5",
	}, DefaultRoster, Options{})

	require.Len(t, items, 2)
	assert.Equal(t, "A Resolution", items[0].Title)
	assert.Equal(t, types.ResultApproved, *items[0].Result)
	assert.Equal(t, "Another Resolution", items[1].Title)
	assert.Equal(t, types.ResultDefeated, *items[1].Result)
}

func TestParse_BlockBoundaries(t *testing.T) {
	items := Parse([]string{
		"3.1 An Ordinance",
		"Introduced 9-0",
		"5.1 Letter from a resident",
		"Approved 9-0",
		"11.",
		"ADJOURNMENT",
		"10.1 A Resolution",
		"12. ADJOURNMENT",
		"Approved 9-0",
	}, DefaultRoster, Options{})

	require.Len(t, items, 2)
	assert.Equal(t, "3.1", items[0].ItemNumber)
	assert.Equal(t, types.ResultIntroduced, *items[0].Result)
	assert.Equal(t, "10.1", items[1].ItemNumber)
	assert.Nil(t, items[1].Result)
	assert.Nil(t, items[1].Votes)
}

func TestParse_AbsentMembers(t *testing.T) {
	items := Parse([]string{"10.1 A Resolution", "Approved 7-0"}, DefaultRoster, Options{})

	require.Len(t, items, 1)
	v := items[0].Votes
	require.NotNil(t, v)
	assert.Len(t, v.Aye, 7)
	assert.Len(t, v.Absent, 2)
	assert.Equal(t, len(DefaultRoster), v.Total())
}

func TestParse_CustomVotedSections(t *testing.T) {
	raw := []string{"6.1 Bid opening", "Approved 9-0"}
	assert.Empty(t, Parse(raw, DefaultRoster, Options{}))
	assert.Len(t, Parse(raw, DefaultRoster, Options{VotedSections: []string{"6"}}), 1)
}

func TestCleanTitle(t *testing.T) {
	tests := map[string]string{
		"An Ordinance Ord. 26-006 - Pdf":     "An Ordinance",
		"A Resolution Res. - Pdf":            "A Resolution",
		"A Resolution Withdrawn - Pdf":       "A Resolution",
		"An Ordinance Ord.26-006 - amending": "An Ordinance amending",
		"Claims List: Approved - 9-0":        "Claims List",
		"  spaced    out   title ":           "spaced out title",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanTitle(in), in)
	}
}

func TestParseDocument(t *testing.T) {
	doc := &textsource.Document{Path: "minutes.txt", Pages: []string{
		"Special Meeting\nWednesday, February 11, 2026\n" +
			"Daniel Rivera, Councilperson-at-Large\n" +
			"Frank E. Gilmore, Councilperson, Ward F\n" +
			"Richard Boggiano, Jr., Councilperson, Ward C\n" +
			"Councilperson Boggiano was absent.",
		"10. RESOLUTIONS\n10.1 A Resolution\nApproved 2-0",
		"Reviewed and found to be correct\n10.9 Not part of the record\nApproved 3-0",
	}}

	m := ParseDocument(doc, Options{})
	assert.Equal(t, types.MeetingSpecial, m.Meeting.Type)
	require.NotNil(t, m.Meeting.Date)
	assert.Equal(t, "2026-02-11", *m.Meeting.Date)
	assert.Equal(t, []string{"Rivera", "Gilmore", "Boggiano"}, m.CouncilMembers)
	assert.Equal(t, []string{"Boggiano"}, m.InitialAbsences)
	require.Len(t, m.Items, 1)
	assert.Equal(t, []string{"Rivera", "Gilmore"}, m.Items[0].Votes.Aye)
	assert.Equal(t, []string{"Boggiano"}, m.Items[0].Votes.Absent)
}

func TestParseDocument_MaxPages(t *testing.T) {
	doc := &textsource.Document{Pages: []string{
		"10.1 A Resolution\nApproved 9-0",
		"10.2 Beyond the limit\nApproved 9-0",
	}}
	m := ParseDocument(doc, Options{MaxPages: 1})
	require.Len(t, m.Items, 1)
	assert.Equal(t, DefaultRoster, m.CouncilMembers)
}
