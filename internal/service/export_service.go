package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bav-systems/visitas-api/internal/models"
	appErrors "github.com/bav-systems/visitas-api/pkg/errors"
	"github.com/bav-systems/visitas-api/pkg/export"
)

type auditReader interface {
	ListAll(ctx context.Context) ([]models.AuditEntry, error)
}

// ExportService renders the full bitácora as a downloadable PDF or TXT file.
type ExportService struct {
	audit    auditReader
	recorder ipAuditRecorder
	pdf      *export.PDFExporter
	txt      *export.TXTExporter
	logger   *zap.Logger
}

// NewExportService constructs an ExportService instance.
func NewExportService(audit auditReader, recorder ipAuditRecorder, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		audit:    audit,
		recorder: recorder,
		pdf:      export.NewPDFExporter(),
		txt:      export.NewTXTExporter(),
		logger:   logger,
	}
}

// ExportPDF renders the bitácora as PDF and returns filename plus payload.
func (s *ExportService) ExportPDF(ctx context.Context, actorID *string, actorIP string) (string, []byte, error) {
	dataset, err := s.buildDataset(ctx)
	if err != nil {
		return "", nil, err
	}

	payload, err := s.pdf.Render(dataset, "BITÁCORA COMPLETA DEL SISTEMA")
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
	}

	s.recorder.Record(ctx, actorID, models.AuditActionExportPDF, "Bitácora exportada en formato PDF", actorIP)

	filename := fmt.Sprintf("bitacora_%s.pdf", time.Now().UTC().Format("20060102_150405"))
	return filename, payload, nil
}

// ExportTXT renders the bitácora as plain text.
func (s *ExportService) ExportTXT(ctx context.Context, actorID *string, actorIP string) (string, []byte, error) {
	dataset, err := s.buildDataset(ctx)
	if err != nil {
		return "", nil, err
	}

	payload, err := s.txt.Render(dataset, "BITÁCORA COMPLETA DEL SISTEMA")
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render txt export")
	}

	s.recorder.Record(ctx, actorID, models.AuditActionExportTXT, "Bitácora exportada en formato TXT", actorIP)

	filename := fmt.Sprintf("bitacora_%s.txt", time.Now().UTC().Format("20060102_150405"))
	return filename, payload, nil
}

func (s *ExportService) buildDataset(ctx context.Context) (export.Dataset, error) {
	entries, err := s.audit.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, err
	}

	dataset := export.Dataset{
		Headers: []string{"Fecha", "Usuario", "Acción", "Detalles", "IP Origen"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		username := "Sistema"
		if entry.Username != nil {
			username = *entry.Username
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Fecha":     entry.CreatedAt.Format("2006-01-02 15:04:05"),
			"Usuario":   username,
			"Acción":    entry.Action,
			"Detalles":  entry.Details,
			"IP Origen": entry.OriginIP,
		})
	}
	return dataset, nil
}
