package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/keypointsim/recorder/internal/database"
	"github.com/keypointsim/recorder/internal/dataset"
	"github.com/keypointsim/recorder/internal/model"
	"github.com/keypointsim/recorder/internal/model/convert"
	"gorm.io/gorm"
)

// ErrExportUsage is returned when export is called with too few arguments.
var ErrExportUsage = errors.New("usage: export <catalog.db> <outputDir> [runID...]")

// exportCatalog rebuilds the dataset files of one or more runs from a
// catalog database. Without run ids every run is exported.
func exportCatalog(args []string) error {
	if len(args) < 2 {
		return ErrExportUsage
	}
	db, err := database.GetSqliteDB(args[0])
	if err != nil {
		return fmt.Errorf("open catalog %s: %w", args[0], err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	runIDs := args[2:]
	if len(runIDs) == 0 {
		if err := db.Model(&model.Run{}).Order("started_at").Pluck("id", &runIDs).Error; err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
	}

	for _, id := range runIDs {
		n, err := exportRun(db, id, args[1])
		if err != nil {
			return fmt.Errorf("run %s: %w", id, err)
		}
		fmt.Printf("Exported %d frames of run %s\n", n, id)
	}
	return nil
}

func exportRun(db *gorm.DB, runID, outDir string) (int, error) {
	var rows []model.Frame
	if err := db.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return 0, err
	}

	byLabel := make(map[string]map[string]dataset.DescriptiveFrame)
	flat := make(map[string]dataset.FlatFrame, len(rows))
	keys := make([]string, 0, len(rows))
	labelKeys := make(map[string][]string)

	for _, row := range rows {
		rec := convert.FrameToCore(row)
		if byLabel[rec.OutputLabel] == nil {
			byLabel[rec.OutputLabel] = make(map[string]dataset.DescriptiveFrame)
		}
		byLabel[rec.OutputLabel][rec.Key] = dataset.Descriptive(&rec)
		flat[rec.Key] = dataset.Flat(&rec)
		keys = append(keys, rec.Key)
		labelKeys[rec.OutputLabel] = append(labelKeys[rec.OutputLabel], rec.Key)
	}

	for label, frames := range byLabel {
		dir := dataset.SceneDir(outDir, label)
		if err := dataset.AppendDescriptive(filepath.Join(dir, dataset.DescriptiveFile), frames); err != nil {
			return 0, err
		}
		if err := dataset.AppendKeys(filepath.Join(dir, dataset.KeysFile), labelKeys[label]); err != nil {
			return 0, err
		}
	}
	if err := dataset.AppendFlat(filepath.Join(outDir, dataset.FlatFile), flat); err != nil {
		return 0, err
	}
	if err := dataset.AppendKeys(filepath.Join(outDir, dataset.KeysFile), keys); err != nil {
		return 0, err
	}
	return len(rows), nil
}
