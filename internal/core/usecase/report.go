package usecase

import (
	"context"
	"fmt"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
)

// RunReportUseCase executes canned analytical queries by name.
type RunReportUseCase struct {
	reports ports.ReportCatalog
	querier ports.DatasetQueryService
}

func NewRunReportUseCase(reports ports.ReportCatalog, querier ports.DatasetQueryService) *RunReportUseCase {
	return &RunReportUseCase{reports: reports, querier: querier}
}

func (uc *RunReportUseCase) List() []domain.Report {
	return uc.reports.List()
}

func (uc *RunReportUseCase) Run(ctx context.Context, fingerprint, name string) (*domain.QueryResult, error) {
	report, ok := uc.reports.Get(name)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run report", fmt.Errorf("unknown report %q", name))
	}
	return uc.querier.Query(ctx, fingerprint, report.SQL)
}
