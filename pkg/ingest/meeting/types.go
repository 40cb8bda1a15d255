// Package meeting discovers council meeting folders and reads the meeting
// header (type and date) shared by agendas and minutes.
package meeting

import "time"

// File kinds recognized inside a meeting folder.
const (
	FileAgenda  = "agenda"
	FileMinutes = "minutes"
	FilePacket  = "packet"
	FileUnknown = "unknown"
)

// MeetingFiles represents the source documents of one meeting.
type MeetingFiles struct {
	AgendaPath  string `json:"agenda_path,omitempty"`
	MinutesPath string `json:"minutes_path,omitempty"`
	PacketPath  string `json:"packet_path,omitempty"`
}

// Empty reports whether no source document was found.
func (f MeetingFiles) Empty() bool {
	return f.AgendaPath == "" && f.MinutesPath == "" && f.PacketPath == ""
}

// Meeting is a folder holding the documents of one council meeting.
type Meeting struct {
	// Key identifies the meeting: YYYY-MM-DD when the path carries a date,
	// otherwise the folder path relative to the scan root.
	Key   string       `json:"key"`
	Dir   string       `json:"dir"`
	Date  time.Time    `json:"date"`
	Files MeetingFiles `json:"files"`
}

// HasDate reports whether a date was derived from the path.
func (m *Meeting) HasDate() bool {
	return !m.Date.IsZero()
}
