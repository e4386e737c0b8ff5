// Package report renders teacher-facing progress workbooks.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/talbiyah/progress-engine/internal/progress"
	"github.com/talbiyah/progress-engine/internal/quran"
)

// WriteWorkbook streams an .xlsx progress report: an Overview sheet
// with the derived aggregates, a Milestones sheet with one row per
// milestone, and a Quran sheet with the per-surah pillar counters.
func WriteWorkbook(w io.Writer, snap *progress.Snapshot, surahs map[int]progress.SurahProgress, stats progress.StudentStats) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeOverviewSheet(f, snap, stats); err != nil {
		return err
	}
	if err := writeMilestonesSheet(f, snap); err != nil {
		return err
	}
	if err := writeQuranSheet(f, surahs); err != nil {
		return err
	}

	// The default sheet excelize creates is replaced by Overview.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeOverviewSheet(f *excelize.File, snap *progress.Snapshot, stats progress.StudentStats) error {
	const sheet = "Overview"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	rows := [][]any{
		{"Subject", snap.Subject.Name},
		{"Overall progress", fmt.Sprintf("%d%%", snap.Overall)},
		{"Total ayat memorized", stats.TotalAyatMemorized},
		{"Surahs complete", stats.SurahsComplete},
		{"Surahs in progress", stats.SurahsInProgress},
		{},
		{"Phase", "Progress", "Locked"},
	}
	for _, ps := range snap.Phases {
		rows = append(rows, []any{ps.Phase.Name, fmt.Sprintf("%d%%", ps.Percent), ps.Locked})
	}

	return writeRows(f, sheet, rows)
}

func writeMilestonesSheet(f *excelize.File, snap *progress.Snapshot) error {
	const sheet = "Milestones"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	rows := [][]any{
		{"Phase", "Stage", "Milestone", "Pillar", "Status", "Verified by", "Notes"},
	}
	for _, ps := range snap.Phases {
		for _, ss := range ps.Stages {
			for _, ms := range ss.Milestones {
				rows = append(rows, []any{
					ps.Phase.Name,
					ss.Stage.Name,
					ms.Milestone.Name,
					string(ms.Milestone.Pillar),
					string(ms.Status),
					ms.Progress.VerifiedBy,
					ms.Progress.VerificationNotes,
				})
			}
		}
	}

	return writeRows(f, sheet, rows)
}

func writeQuranSheet(f *excelize.File, surahs map[int]progress.SurahProgress) error {
	const sheet = "Quran"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	numbers := make([]int, 0, len(surahs))
	for n := range surahs {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	rows := [][]any{
		{"Surah", "Name", "Total ayat", "Fahm", "Itqan", "Hifz", "Status"},
	}
	for _, n := range numbers {
		sp := surahs[n]
		info, _ := quran.Get(n)
		rows = append(rows, []any{
			n,
			info.Name,
			info.TotalAyat,
			sp.FahmProgress,
			sp.ItqanProgress,
			sp.HifzProgress,
			string(sp.Status()),
		})
	}

	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d on %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
