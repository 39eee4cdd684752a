package application

import (
	"context"
	"errors"

	"bridgewatch/internal/domain"
)

type ReportCache interface {
	GetReport(ctx context.Context, bridge string) (domain.Report, bool)
	SetReport(ctx context.Context, report domain.Report)
}

// ReportService stores reports and serves the latest one per bridge, reading
// through the cache when one is configured.
type ReportService struct {
	repo  ReportRepository
	cache ReportCache
}

func NewReportService(repo ReportRepository, cache ReportCache) (*ReportService, error) {
	if repo == nil {
		return nil, errors.New("report repository is required")
	}
	return &ReportService{repo: repo, cache: cache}, nil
}

func (s *ReportService) Save(ctx context.Context, report domain.Report) error {
	if err := s.repo.SaveReport(ctx, report); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.SetReport(ctx, report)
	}
	return nil
}

func (s *ReportService) Latest(ctx context.Context, bridge string) (domain.Report, bool, error) {
	if s.cache != nil {
		if report, ok := s.cache.GetReport(ctx, bridge); ok {
			return report, true, nil
		}
	}
	report, ok, err := s.repo.LatestReport(ctx, bridge)
	if err != nil || !ok {
		return domain.Report{}, ok, err
	}
	if s.cache != nil {
		s.cache.SetReport(ctx, report)
	}
	return report, true, nil
}
