// internal/output/excel.go
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/FeedScrapexter/pkg/types"
)

// DefaultExcelMaxCellLength is the maximum characters in a single Excel cell
const DefaultExcelMaxCellLength = 32767

// Workbook sheets, one per batch list.
const (
	SheetVideos        = "Videos"
	SheetShorts        = "Shorts"
	SheetRecommended   = "Recommended"
	SheetSubscriptions = "Subscriptions"
)

var (
	videoHeaders = []string{
		"Batch ID", "Collected At", "Video ID", "Title", "Channel", "Channel ID", "URL",
		"Thumbnail", "Short", "Views", "Upload Date", "Duration", "Source Phase", "Weight",
	}
	channelHeaders = []string{"Batch ID", "Collected At", "Channel ID", "Handle", "Name", "URL"}
)

// ExcelSink appends batch rows to an xlsx workbook. The workbook is reopened
// and saved on every delivery so that it is always complete on disk.
type ExcelSink struct {
	filename string
	mu       sync.Mutex
}

// NewExcelSink writes to filename, creating its directory.
func NewExcelSink(filename string) (*ExcelSink, error) {
	if filename == "" {
		return nil, fmt.Errorf("excel sink path is required")
	}
	if filepath.Ext(filename) != ".xlsx" {
		return nil, fmt.Errorf("excel sink path must end in .xlsx: %s", filename)
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &ExcelSink{filename: filename}, nil
}

func (s *ExcelSink) Name() string { return "excel" }

func (s *ExcelSink) Deliver(_ context.Context, batch *types.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.open()
	if err != nil {
		return err
	}
	defer file.Close()

	collected := batch.CollectedAt.UTC().Format(time.RFC3339)
	lists := []struct {
		sheet   string
		records []types.ExtractedRecord
	}{
		{SheetVideos, batch.Videos},
		{SheetShorts, batch.Shorts},
		{SheetRecommended, batch.RecommendedVideos},
	}
	for _, list := range lists {
		rows := make([][]interface{}, 0, len(list.records))
		for _, r := range list.records {
			rows = append(rows, videoRow(batch.ID, collected, r))
		}
		if err := appendRows(file, list.sheet, videoHeaders, rows); err != nil {
			return err
		}
	}

	channels := make([][]interface{}, 0, len(batch.Subscriptions))
	for _, c := range batch.Subscriptions {
		channels = append(channels, []interface{}{batch.ID, collected, c.ChannelID, c.Handle, cell(c.Name), c.URL})
	}
	if err := appendRows(file, SheetSubscriptions, channelHeaders, channels); err != nil {
		return err
	}

	if err := file.SaveAs(s.filename); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", s.filename, err)
	}
	return nil
}

func (s *ExcelSink) Close() error { return nil }

// open loads the workbook or creates it with every sheet in place.
func (s *ExcelSink) open() (*excelize.File, error) {
	if _, err := os.Stat(s.filename); err == nil {
		file, err := excelize.OpenFile(s.filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook %s: %w", s.filename, err)
		}
		return file, nil
	}

	file := excelize.NewFile()
	for _, sheet := range []string{SheetVideos, SheetShorts, SheetRecommended, SheetSubscriptions} {
		if _, err := file.NewSheet(sheet); err != nil {
			file.Close()
			return nil, err
		}
	}
	if err := file.DeleteSheet("Sheet1"); err != nil {
		file.Close()
		return nil, err
	}
	if idx, err := file.GetSheetIndex(SheetVideos); err == nil && idx >= 0 {
		file.SetActiveSheet(idx)
	}
	return file, nil
}

func appendRows(file *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	existing, err := file.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	next := len(existing) + 1
	if next == 1 {
		if err := writeHeaders(file, sheet, headers); err != nil {
			return err
		}
		next = 2
	}
	for _, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheet, cellName, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", next, sheet, err)
		}
		next++
	}
	return nil
}

func writeHeaders(file *excelize.File, sheet string, headers []string) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := file.SetSheetRow(sheet, "A1", &values); err != nil {
		return err
	}

	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := file.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	lastCol := last[:len(last)-1]
	if err := file.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		return err
	}
	return file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func videoRow(batchID, collected string, r types.ExtractedRecord) []interface{} {
	var views interface{} = ""
	if r.Metadata.ViewCount != nil {
		views = *r.Metadata.ViewCount
	}
	return []interface{}{
		batchID, collected, r.ID, cell(r.Title), cell(r.ChannelName), r.ChannelID, r.URL,
		r.ThumbnailURL, r.IsShort, views, r.Metadata.UploadDate, r.Metadata.Duration,
		string(r.SourcePhase), r.SignificanceWeight,
	}
}

// cell truncates text to the Excel cell limit.
func cell(s string) string {
	if len(s) <= DefaultExcelMaxCellLength {
		return s
	}
	r := []rune(s)
	if len(r) > DefaultExcelMaxCellLength {
		r = r[:DefaultExcelMaxCellLength]
	}
	return string(r)
}
