// internal/export/export.go
package export

import (
	"context"
	"encoding/csv"
	"io"

	commonerrors "kaya-concierge/internal/common/errors"
	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/common/metrics"
	"kaya-concierge/internal/store"
)

// csvHeader matches the column names the operations team imports from.
var csvHeader = []string{"name", "Email ID", "Mobile Number", "Description", "Status"}

// Row is one lead in the operator report.
type Row struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Exporter builds snapshot reports over the lead store.
type Exporter struct {
	store  store.LeadStore
	logger logger.Logger
}

func NewExporter(leadStore store.LeadStore, log logger.Logger) *Exporter {
	return &Exporter{
		store:  leadStore,
		logger: log.WithFields(map[string]interface{}{"component": "exporter"}),
	}
}

// Export returns one row per lead in store order. Unset answers fall back to
// the generic description.
func (e *Exporter) Export(ctx context.Context) ([]Row, error) {
	leads, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, commonerrors.NewExportFailedError(err)
	}

	rows := make([]Row, 0, len(leads))
	for _, lead := range leads {
		rows = append(rows, Row{
			Name:        lead.Contact.Name,
			Email:       lead.Contact.Email,
			Mobile:      lead.Contact.Mobile,
			Description: lead.Description(),
			Status:      string(lead.Status),
		})
	}
	return rows, nil
}

// WriteCSV streams the report as a spreadsheet-compatible CSV.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer) error {
	rows, err := e.Export(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return commonerrors.NewExportFailedError(err)
	}
	for _, row := range rows {
		record := []string{row.Name, row.Email, row.Mobile, row.Description, row.Status}
		if err := writer.Write(record); err != nil {
			return commonerrors.NewExportFailedError(err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return commonerrors.NewExportFailedError(err)
	}

	metrics.ExportsGenerated.Inc()
	e.logger.Info("report exported", map[string]interface{}{
		"rows": len(rows),
	})
	return nil
}
