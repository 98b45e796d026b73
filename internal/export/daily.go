// Package export renders dashboard statistics as spreadsheets.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"crm/internal/domain"
)

const (
	summarySheet = "Résumé"
	dailySheet   = "Segments"
)

var dailyHeaders = []string{
	"Date",
	"Commandes",
	"Revenu",
	"Chauffeurs core",
	"Évolution core",
	"Électrons",
	"Évolution électrons",
	"Revenu moyen",
	"Commandes moyennes",
}

// Generator builds xlsx workbooks.
type Generator struct{}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// DailyReport is the input of a daily segments workbook.
type DailyReport struct {
	WorkspaceID string
	Start       string
	End         string
	Summary     domain.Summary
	Days        []domain.DailyStat
}

// DailyStats returns a workbook with a period summary sheet and one row per day.
func (g *Generator) DailyStats(report DailyReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	g.writeSummary(file, report)

	if _, err := file.NewSheet(dailySheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := g.writeDays(file, report.Days); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report DailyReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	set("A1", "Espace de travail")
	set("B1", report.WorkspaceID)
	set("A2", "Début de période")
	set("B2", report.Start)
	set("A3", "Fin de période")
	set("B3", report.End)
	set("A4", "Commandes")
	set("B4", report.Summary.TotalOrders)
	set("A5", "Revenu")
	set("B5", round2(report.Summary.TotalRevenue))
	set("A6", "Chauffeurs core")
	set("B6", report.Summary.CoreDrivers)
	set("A7", "Électrons")
	set("B7", report.Summary.Electrons)

	_ = file.SetColWidth(summarySheet, "A", "A", 24)
	_ = file.SetColWidth(summarySheet, "B", "B", 18)
}

func (g *Generator) writeDays(file *excelize.File, days []domain.DailyStat) error {
	for i, header := range dailyHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		_ = file.SetCellValue(dailySheet, cell, header)
	}

	for i, day := range days {
		row := []interface{}{
			day.Date,
			day.TotalOrders,
			round2(day.TotalRevenue),
			day.CoreDrivers,
			day.CoreChange,
			day.Electrons,
			day.ElectronsChange,
			round2(day.AverageRevenue),
			round2(day.AverageOrders),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(dailySheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	_ = file.SetColWidth(dailySheet, "A", "A", 12)
	_ = file.SetColWidth(dailySheet, "B", "I", 18)
	return nil
}

func round2(v float64) float64 {
	if v < 0 {
		return -round2(-v)
	}
	return float64(int64(v*100+0.5)) / 100
}
