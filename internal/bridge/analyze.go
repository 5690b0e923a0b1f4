package bridge

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/muurk/fairbuds/internal/protocol"
)

// CaptureFailure is a captured frame that did not parse.
type CaptureFailure struct {
	File  string
	Line  int
	Seq   int
	Hex   string
	Error string
}

// CaptureStats summarizes capture files.
type CaptureStats struct {
	Files          int
	Frames         int
	Parsed         int
	Failed         int
	Directions     map[string]int
	Commands       map[string]int // "SelectEQ/request" -> count
	Events         map[string]int // event kind of frames from the device
	Lengths        map[int]int
	Failures       []CaptureFailure
	BadLines       int
	LastDeviceInfo string // last decoded device info, if any
}

// NewCaptureStats returns empty stats.
func NewCaptureStats() *CaptureStats {
	return &CaptureStats{
		Directions: make(map[string]int),
		Commands:   make(map[string]int),
		Events:     make(map[string]int),
		Lengths:    make(map[int]int),
	}
}

// CaptureFiles expands path to the capture files it names: the file itself
// or every *.jsonl in a directory, sorted.
func CaptureFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .jsonl files in %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// AnalyzeFile adds one capture file to the stats.
func (s *CaptureStats) AnalyzeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return s.Analyze(path, f)
}

// Analyze reads JSON Lines capture records from r. Lines that are not
// records are counted in BadLines and skipped.
func (s *CaptureStats) Analyze(name string, r io.Reader) error {
	s.Files++
	parser := &protocol.Parser{}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var rec CapturedFrame
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			s.BadLines++
			continue
		}
		s.Frames++
		s.Directions[rec.Direction]++

		data, err := hex.DecodeString(rec.Hex)
		if err != nil {
			s.fail(name, line, rec, fmt.Sprintf("hex decode: %v", err))
			continue
		}
		s.Lengths[len(data)]++

		frame, err := protocol.ParseFrame(data)
		if err != nil {
			s.fail(name, line, rec, err.Error())
			continue
		}
		s.Parsed++
		s.Commands[protocol.CommandName(frame.Command)+"/"+protocol.TypeName(frame.Type)]++

		if rec.Direction != DirectionFromDevice {
			continue
		}
		ev, err := parser.Parse(data)
		if err != nil {
			continue
		}
		s.Events[ev.Kind().String()]++
		if di, ok := ev.(*protocol.DeviceInfoEvent); ok {
			s.LastDeviceInfo = di.String()
		}
	}
	return scanner.Err()
}

func (s *CaptureStats) fail(name string, line int, rec CapturedFrame, msg string) {
	s.Failed++
	s.Failures = append(s.Failures, CaptureFailure{
		File:  name,
		Line:  line,
		Seq:   rec.Seq,
		Hex:   rec.Hex,
		Error: msg,
	})
}

// Report writes a plain-text summary, showing at most maxFailures failures.
func (s *CaptureStats) Report(w io.Writer, maxFailures int) {
	pct := func(n, total int) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total) * 100
	}

	fmt.Fprintf(w, "Files processed:  %d\n", s.Files)
	fmt.Fprintf(w, "Frames:           %d\n", s.Frames)
	fmt.Fprintf(w, "Parsed:           %d (%.1f%%)\n", s.Parsed, pct(s.Parsed, s.Frames))
	fmt.Fprintf(w, "Failed:           %d (%.1f%%)\n", s.Failed, pct(s.Failed, s.Frames))
	if s.BadLines > 0 {
		fmt.Fprintf(w, "Skipped lines:    %d\n", s.BadLines)
	}

	section := func(title string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s\n", title)
		for _, k := range sortedKeys(counts) {
			fmt.Fprintf(w, "  %-28s %d\n", k, counts[k])
		}
	}
	section("Directions", s.Directions)
	section("Commands", s.Commands)
	section("Device events", s.Events)

	if len(s.Lengths) > 0 {
		fmt.Fprintf(w, "\nFrame lengths\n")
		lengths := make([]int, 0, len(s.Lengths))
		for l := range s.Lengths {
			lengths = append(lengths, l)
		}
		sort.Ints(lengths)
		for _, l := range lengths {
			fmt.Fprintf(w, "  %3d bytes  %d\n", l, s.Lengths[l])
		}
	}

	if s.LastDeviceInfo != "" {
		fmt.Fprintf(w, "\nLast device info: %s\n", s.LastDeviceInfo)
	}

	if len(s.Failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\nParse failures (%d)\n", len(s.Failures))
	for i, f := range s.Failures {
		if i >= maxFailures {
			fmt.Fprintf(w, "  ... %d more\n", len(s.Failures)-maxFailures)
			break
		}
		preview := f.Hex
		if len(preview) > 64 {
			preview = preview[:64] + "..."
		}
		fmt.Fprintf(w, "  %s:%d seq %d: %s\n    %s\n", filepath.Base(f.File), f.Line, f.Seq, f.Error, preview)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
