package rsync

import (
	"strconv"
	"strings"
)

// ActionKind classifies one itemized change.
type ActionKind string

const (
	ActionCreate ActionKind = "create"
	ActionUpdate ActionKind = "update"
	ActionDelete ActionKind = "delete"
)

// Action records one itemized change from the transfer.
type Action struct {
	Kind ActionKind
	Path string
}

// Report condenses the outcome of one transfer. For dry runs the counts and
// actions describe the plan rsync would have executed.
type Report struct {
	FilesTransferred int
	FilesCreated     int
	FilesDeleted     int
	TotalFiles       int
	TotalBytes       int64
	TransferredBytes int64
	Actions          []Action
}

// Changed reports whether the transfer moved or deleted anything.
func (r Report) Changed() bool {
	return r.FilesTransferred > 0 || r.FilesDeleted > 0 || len(r.Actions) > 0
}

// reportParser accumulates a Report from rsync stdout lines.
type reportParser struct {
	rep Report
}

func newReportParser() *reportParser {
	return &reportParser{}
}

func (p *reportParser) report() Report {
	return p.rep
}

func (p *reportParser) consume(line string) {
	trimmed := strings.TrimRight(line, "\r")
	if trimmed == "" {
		return
	}

	if path, ok := strings.CutPrefix(trimmed, "*deleting"); ok {
		p.rep.Actions = append(p.rep.Actions, Action{Kind: ActionDelete, Path: strings.TrimSpace(path)})
		return
	}
	if action, ok := parseItemized(trimmed); ok {
		p.rep.Actions = append(p.rep.Actions, action)
		return
	}
	p.consumeStats(trimmed)
}

// parseItemized decodes one --itemize-changes line: an 11-character change
// summary, a space, then the path. Only file and directory content changes
// become actions; attribute-only touches are ignored.
func parseItemized(line string) (Action, bool) {
	if len(line) < 13 || line[11] != ' ' {
		return Action{}, false
	}
	code := line[:11]
	switch code[0] {
	case '>', '<', 'c', 'h':
	default:
		return Action{}, false
	}
	switch code[1] {
	case 'f', 'd', 'L':
	default:
		return Action{}, false
	}
	path := strings.TrimSpace(line[12:])
	if path == "" {
		return Action{}, false
	}
	if strings.Contains(code, "+++++++") {
		return Action{Kind: ActionCreate, Path: path}, true
	}
	if strings.ContainsAny(code[2:], "cs") {
		return Action{Kind: ActionUpdate, Path: path}, true
	}
	return Action{}, false
}

func (p *reportParser) consumeStats(line string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "Number of files:"):
		p.rep.TotalFiles = parseLeadingInt(strings.TrimPrefix(trimmed, "Number of files:"))
	case strings.HasPrefix(trimmed, "Number of created files:"):
		p.rep.FilesCreated = parseLeadingInt(strings.TrimPrefix(trimmed, "Number of created files:"))
	case strings.HasPrefix(trimmed, "Number of deleted files:"):
		p.rep.FilesDeleted = parseLeadingInt(strings.TrimPrefix(trimmed, "Number of deleted files:"))
	case strings.HasPrefix(trimmed, "Number of regular files transferred:"):
		p.rep.FilesTransferred = parseLeadingInt(strings.TrimPrefix(trimmed, "Number of regular files transferred:"))
	case strings.HasPrefix(trimmed, "Total file size:"):
		p.rep.TotalBytes = parseLeadingInt64(strings.TrimPrefix(trimmed, "Total file size:"))
	case strings.HasPrefix(trimmed, "Total transferred file size:"):
		p.rep.TransferredBytes = parseLeadingInt64(strings.TrimPrefix(trimmed, "Total transferred file size:"))
	}
}

// parseLeadingInt reads the first integer token, tolerating rsync's thousands
// separators and trailing annotations like "(reg: 4, dir: 1)".
func parseLeadingInt(value string) int {
	return int(parseLeadingInt64(value))
}

func parseLeadingInt64(value string) int64 {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0
	}
	token := strings.ReplaceAll(fields[0], ",", "")
	parsed, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
