// Package export renders annotations as CSV or as a YOLO label archive.
// Both writers produce byte-identical output for identical input.
package export

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/skylabel/internal/models"
)

// CSVHeader is the fixed column order of the CSV export.
var CSVHeader = []string{
	"assigned_filename",
	"aircraft_type_code",
	"aircraft_type_name",
	"airline_code",
	"airline_name",
	"clarity",
	"occlusion",
	"registration_text",
	"registration_box",
}

// RegistrationClass is the YOLO class index of the registration box.
const RegistrationClass = 0

// archiveTime is stamped on every zip entry so archives are reproducible.
var archiveTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatBox renders a box as "cx cy w h".
func FormatBox(b models.Box) string {
	return strings.Join([]string{
		formatFloat(b.CenterX), formatFloat(b.CenterY),
		formatFloat(b.Width), formatFloat(b.Height),
	}, " ")
}

// WriteCSV writes a header row and one row per annotation, in the order given.
func WriteCSV(w io.Writer, anns []models.Annotation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for _, a := range anns {
		record := []string{
			a.AssignedFilename,
			a.AircraftTypeCode,
			a.AircraftTypeName,
			a.AirlineCode,
			a.AirlineName,
			formatFloat(a.Clarity),
			formatFloat(a.Occlusion),
			a.RegistrationText,
			FormatBox(a.RegistrationBox),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export: csv row %d: %w", a.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: csv flush: %w", err)
	}
	return nil
}

// YOLOLine renders the label line for one annotation.
func YOLOLine(a models.Annotation) string {
	b := a.RegistrationBox
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f\n", RegistrationClass, b.CenterX, b.CenterY, b.Width, b.Height)
}

// LabelName is the archive entry name for an annotation: the assigned
// filename's stem with a .txt extension.
func LabelName(a models.Annotation) string {
	return strings.TrimSuffix(a.AssignedFilename, filepath.Ext(a.AssignedFilename)) + ".txt"
}

// WriteYOLO writes a zip archive containing classes.txt and one label file
// per annotation, in the order given.
func WriteYOLO(w io.Writer, anns []models.Annotation) error {
	zw := zip.NewWriter(w)

	if err := writeEntry(zw, "classes.txt", "registration\n"); err != nil {
		return err
	}
	for _, a := range anns {
		if err := writeEntry(zw, LabelName(a), YOLOLine(a)); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("export: close archive: %w", err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name, content string) error {
	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: archiveTime,
	})
	if err != nil {
		return fmt.Errorf("export: create %s: %w", name, err)
	}
	if _, err := io.WriteString(f, content); err != nil {
		return fmt.Errorf("export: write %s: %w", name, err)
	}
	return nil
}
