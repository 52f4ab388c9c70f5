// internal/fetch/progress.go
package fetch

import (
	"regexp"
	"strconv"
	"strings"
)

// Progress is one structured progress event parsed from an external
// downloader's output. Zero fields mean "not reported on this line".
type Progress struct {
	Percent        float64
	Bytes          int64
	TotalBytes     int64
	Fragment       int
	TotalFragments int
}

// Advanced reports whether this event shows forward progress over prev:
// either the byte counter or the fragment counter moved.
func (p Progress) Advanced(prev Progress) bool {
	return p.Bytes > prev.Bytes || p.Fragment > prev.Fragment
}

// ProgressParser turns one external tool's output lines into progress events.
// One implementation exists per supported tool so new downloaders can be
// added without touching the Supervisor.
type ProgressParser interface {
	// ParseLine extracts a progress event from one output line. ok is false
	// for lines that carry no progress information.
	ParseLine(line string) (p Progress, ok bool)
	// Permanent reports whether the line indicates a failure that no retry
	// can fix.
	Permanent(line string) bool
}

var sizeMultipliers = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
}

// ytdlpProgress matches yt-dlp's --newline download lines, e.g.
//
//	[download]  42.5% of ~ 123.45MiB at 2.50MiB/s ETA 00:42 (frag 17/40)
var (
	ytdlpProgress = regexp.MustCompile(`\[download\]\s+([\d.]+)% of ~?\s*([\d.]+)(B|KiB|MiB|GiB)`)
	ytdlpFragment = regexp.MustCompile(`\(frag (\d+)/(\d+)\)`)
)

// ytdlpPermanentMarkers are output fragments that identify unretryable
// failures.
var ytdlpPermanentMarkers = []string{
	"fragment not found",
	"fragment unavailable",
	"unable to continue",
	"unsupported url",
}

// YTDLPParser parses yt-dlp style progress output.
type YTDLPParser struct{}

func (YTDLPParser) ParseLine(line string) (Progress, bool) {
	m := ytdlpProgress.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	p := Progress{}
	p.Percent, _ = strconv.ParseFloat(m[1], 64)
	total, _ := strconv.ParseFloat(m[2], 64)
	p.TotalBytes = int64(total * sizeMultipliers[m[3]])
	p.Bytes = int64(p.Percent / 100 * float64(p.TotalBytes))

	if f := ytdlpFragment.FindStringSubmatch(line); f != nil {
		p.Fragment, _ = strconv.Atoi(f[1])
		p.TotalFragments, _ = strconv.Atoi(f[2])
	}
	return p, true
}

func (YTDLPParser) Permanent(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range ytdlpPermanentMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// aria2Progress matches aria2c's console summary lines, e.g.
//
//	[#2089b0 400MiB/500MiB(80%) CN:16 DL:5.2MiB ETA:19s]
var aria2Progress = regexp.MustCompile(`\[#\w+\s+([\d.]+)(B|KiB|MiB|GiB)/([\d.]+)(B|KiB|MiB|GiB)\((\d+)%\)`)

// Aria2Parser parses aria2c style progress output.
type Aria2Parser struct{}

func (Aria2Parser) ParseLine(line string) (Progress, bool) {
	m := aria2Progress.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}

	p := Progress{}
	done, _ := strconv.ParseFloat(m[1], 64)
	total, _ := strconv.ParseFloat(m[3], 64)
	p.Bytes = int64(done * sizeMultipliers[m[2]])
	p.TotalBytes = int64(total * sizeMultipliers[m[4]])
	p.Percent, _ = strconv.ParseFloat(m[5], 64)
	return p, true
}

func (Aria2Parser) Permanent(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "resource not found") ||
		strings.Contains(lower, "exception: authorization failed")
}
