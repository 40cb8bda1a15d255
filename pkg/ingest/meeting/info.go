package meeting

import (
	"regexp"
	"strings"
	"time"

	"github.com/otherjamesbrown/council-records/pkg/ingest/types"
)

var meetingDateRe = regexp.MustCompile(`(?:Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday),\s+` +
	`((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4})`)

// DetectInfo reads the meeting type and date from document text.
//
// The date is the first "<Weekday>, <Month> <D>, <YYYY>" in the text, returned
// as YYYY-MM-DD. A match that is not a real calendar date is kept verbatim.
// The type is special when "Special Meeting" appears anywhere, else regular.
func DetectInfo(text string) types.MeetingInfo {
	info := types.MeetingInfo{Type: types.MeetingRegular}

	if m := meetingDateRe.FindStringSubmatch(text); m != nil {
		raw := strings.Join(strings.Fields(m[1]), " ")
		date := raw
		if t, err := time.Parse("January 2, 2006", raw); err == nil {
			date = t.Format("2006-01-02")
		}
		info.Date = &date
	}

	if strings.Contains(text, "Special Meeting") {
		info.Type = types.MeetingSpecial
	}
	return info
}
