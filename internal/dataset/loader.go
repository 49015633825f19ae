package dataset

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"sales-coach-go/internal/types"
)

// Load reads call recordings from the first sheet of an xlsx workbook,
// detecting columns by header heuristics. Rows without an http(s) audio URL
// are skipped.
func Load(path string) ([]types.CallRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	if cols.audio == -1 {
		return nil, fmt.Errorf("no audio url column in header %q", rows[0])
	}

	var out []types.CallRecord
	for i, r := range rows {
		if i == 0 {
			continue
		}
		record := types.CallRecord{
			CallID:   cell(r, cols.callID),
			CallType: cell(r, cols.callType),
			AudioURL: cell(r, cols.audio),
			Agent:    cell(r, cols.agent),
		}
		if !isHTTP(record.AudioURL) {
			continue
		}
		if record.CallID == "" {
			record.CallID = fmt.Sprintf("row-%d", i+1)
		}
		out = append(out, record)
	}
	return out, nil
}

type columns struct {
	audio, callID, callType, agent int
}

func detectColumns(header []string) columns {
	c := columns{audio: -1, callID: -1, callType: -1, agent: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "audio") || strings.Contains(l, "recording") || strings.Contains(l, "url") ||
			strings.Contains(l, "call") && strings.Contains(l, "link"):
			if c.audio == -1 {
				c.audio = i
			}
		case strings.Contains(l, "type"):
			if c.callType == -1 {
				c.callType = i
			}
		case strings.Contains(l, "agent") || strings.Contains(l, "rep"):
			if c.agent == -1 {
				c.agent = i
			}
		case strings.Contains(l, "id"):
			if c.callID == -1 {
				c.callID = i
			}
		}
	}
	return c
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isHTTP(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
