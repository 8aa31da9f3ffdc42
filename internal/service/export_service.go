package service

import (
	"context"
	"fmt"

	"hdf-dwh/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExportService writes the dm datamart views to an Excel workbook, one
// sheet per view.
type ExportService interface {
	ExportWorkbook(ctx context.Context, path string) error
}

type exportService struct {
	datamartsRepo repository.DatamartsRepository
	logger        *zap.Logger
}

func NewExportService(datamartsRepo repository.DatamartsRepository, logger *zap.Logger) ExportService {
	return &exportService{datamartsRepo: datamartsRepo, logger: logger}
}

func (s *exportService) ExportWorkbook(ctx context.Context, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for _, view := range repository.DatamartViews {
		if _, err := f.NewSheet(view.Sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", view.Sheet, err)
		}

		columns, rows, err := s.datamartsRepo.FetchView(ctx, view.Name)
		if err != nil {
			return err
		}

		for col, name := range columns {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(view.Sheet, cell, name); err != nil {
				return fmt.Errorf("failed to set header cell %s: %w", cell, err)
			}
			if err := f.SetCellStyle(view.Sheet, cell, cell, headerStyle); err != nil {
				return fmt.Errorf("failed to set header style: %w", err)
			}
		}

		for r, record := range rows {
			for c, value := range record {
				cell, err := excelize.CoordinatesToCellName(c+1, r+2)
				if err != nil {
					return fmt.Errorf("failed to convert coordinates: %w", err)
				}
				if err := f.SetCellValue(view.Sheet, cell, value); err != nil {
					return fmt.Errorf("failed to set cell %s: %w", cell, err)
				}
			}
		}

		s.logger.Info("datamart exported",
			zap.String("view", view.Name),
			zap.String("sheet", view.Sheet),
			zap.Int("rows", len(rows)))
	}

	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	s.logger.Info("workbook written", zap.String("path", path))
	return nil
}
