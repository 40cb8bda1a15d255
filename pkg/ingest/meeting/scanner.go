package meeting

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Folder layouts that carry a meeting date.
var (
	// .../2026/01-14
	yearDirPattern = regexp.MustCompile(`^\d{4}$`)
	monthDayDir    = regexp.MustCompile(`^(\d{2})-(\d{2})$`)

	// .../2026-01-14 or .../Council 2026-01-14
	isoDatePattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})$`)
)

// ScanMeetings walks root and returns every folder holding at least one
// meeting document, sorted by key. When root is a file, its folder is used.
func ScanMeetings(root string) ([]*Meeting, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		m, err := ScanMeetingDir(filepath.Dir(root), filepath.Dir(root))
		if err != nil || m == nil {
			return []*Meeting{}, err
		}
		return []*Meeting{m}, nil
	}

	meetings := make([]*Meeting, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subdirectories are skipped, the root is not.
			if path == root {
				return err
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		m, err := ScanMeetingDir(root, path)
		if err != nil {
			return nil
		}
		if m != nil {
			meetings = append(meetings, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(meetings, func(i, j int) bool { return meetings[i].Key < meetings[j].Key })
	return meetings, nil
}

// ScanMeetingDir inspects a single folder. It returns nil when the folder
// holds no meeting documents.
func ScanMeetingDir(root, dir string) (*Meeting, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files MeetingFiles
	var minutesPacket string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		switch DetectFileType(name) {
		case FileAgenda:
			files.AgendaPath = preferPDF(files.AgendaPath, path)
		case FileMinutes:
			if isMinutesPacket(name) {
				minutesPacket = preferPDF(minutesPacket, path)
			} else {
				files.MinutesPath = preferPDF(files.MinutesPath, path)
			}
		case FilePacket:
			files.PacketPath = preferPDF(files.PacketPath, path)
		}
	}
	if files.MinutesPath == "" {
		files.MinutesPath = minutesPacket
	}
	if files.Empty() {
		return nil, nil
	}

	m := &Meeting{Dir: dir, Files: files}
	m.Date = DateFromPath(dir)
	if m.HasDate() {
		m.Key = m.Date.Format("2006-01-02")
	} else if rel, err := filepath.Rel(root, dir); err == nil && rel != "." {
		m.Key = filepath.ToSlash(rel)
	} else {
		m.Key = filepath.Base(dir)
	}
	return m, nil
}

// preferPDF keeps the PDF when a folder has both a PDF and a text export.
func preferPDF(current, candidate string) string {
	if current == "" {
		return candidate
	}
	if strings.EqualFold(filepath.Ext(current), ".pdf") {
		return current
	}
	return candidate
}

func isMinutesPacket(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "minutes-packet")
}

// DetectFileType determines the role of a file inside a meeting folder.
func DetectFileType(filename string) string {
	lower := strings.ToLower(filename)
	ext := filepath.Ext(lower)
	base := strings.TrimSuffix(lower, ext)

	switch ext {
	case ".pdf", ".txt":
	default:
		return FileUnknown
	}

	switch base {
	case "agenda":
		return FileAgenda
	case "minutes", "minutes-packet":
		return FileMinutes
	case "packet", "agenda-packet":
		if ext == ".pdf" {
			return FilePacket
		}
	}
	return FileUnknown
}

// DateFromPath derives a meeting date from ".../YYYY/MM-DD" or a trailing
// "YYYY-MM-DD" in the folder name. It returns the zero time when neither fits.
func DateFromPath(dir string) time.Time {
	base := filepath.Base(dir)
	parent := filepath.Base(filepath.Dir(dir))

	if m := monthDayDir.FindStringSubmatch(base); m != nil && yearDirPattern.MatchString(parent) {
		if t, err := time.Parse("2006-01-02", parent+"-"+m[1]+"-"+m[2]); err == nil {
			return t
		}
	}
	if m := isoDatePattern.FindStringSubmatch(base); m != nil {
		if t, err := time.Parse("2006-01-02", m[1]+"-"+m[2]+"-"+m[3]); err == nil {
			return t
		}
	}
	return time.Time{}
}

// MeetingForFile returns the meeting folder that owns path, if path is one of
// its documents.
func MeetingForFile(root, path string) (*Meeting, error) {
	if DetectFileType(filepath.Base(path)) == FileUnknown {
		return nil, nil
	}
	return ScanMeetingDir(root, filepath.Dir(path))
}
