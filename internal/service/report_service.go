package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/examcell/duty-roster/internal/report"
	apperrors "github.com/examcell/duty-roster/pkg/util/errorutil"
)

// ReportService projects the current roster and hands the result to a sink.
type ReportService struct {
	base
	sink report.Sink
}

// NewReportService creates the service. A nil sink logs reports only.
func NewReportService(deps Dependencies, sink report.Sink) *ReportService {
	b := newBase(deps)
	if sink == nil {
		sink = report.LogSink{Logger: b.logger}
	}
	return &ReportService{base: b, sink: sink}
}

// Build reads a roster snapshot, projects it and publishes it. A sink
// failure is logged; the projection is still returned.
func (s *ReportService) Build(ctx context.Context, kind report.Kind) (report.Report, error) {
	if _, ok := report.ParseKind(string(kind)); !ok {
		return report.Report{}, apperrors.NewInvalidInput("unknown report kind", map[string]any{"kind": kind})
	}
	records, err := s.roster.List(ctx)
	if err != nil {
		return report.Report{}, err
	}
	r := report.Report{
		Kind:        kind,
		GeneratedAt: s.clock().In(s.policy.Location).Format(time.RFC3339),
		Rows:        report.Project(kind, records),
	}
	if err := s.sink.Publish(ctx, r); err != nil {
		s.logger.Warn("report sink failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	return r, nil
}
