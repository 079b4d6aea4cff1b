package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"commission-service/internal/commission"
	"commission-service/internal/importer"
	"commission-service/internal/models"
	"commission-service/internal/repositories"
)

// CommissionService recomputes commission details and applies manual
// adjustments. Summary rebuilds it triggers are fire-and-forget.
type CommissionService struct {
	logger      *logrus.Logger
	details     repositories.CommissionRepository
	lineItems   repositories.LineItemRepository
	spiffs      repositories.SpiffRepository
	orders      repositories.OrderRepository
	summaries   repositories.SummaryRepository
	defaultRate decimal.Decimal
}

func NewCommissionService(
	logger *logrus.Logger,
	details repositories.CommissionRepository,
	lineItems repositories.LineItemRepository,
	spiffs repositories.SpiffRepository,
	orders repositories.OrderRepository,
	summaries repositories.SummaryRepository,
	defaultRate decimal.Decimal,
) *CommissionService {
	return &CommissionService{
		logger:      logger,
		details:     details,
		lineItems:   lineItems,
		spiffs:      spiffs,
		orders:      orders,
		summaries:   summaries,
		defaultRate: defaultRate,
	}
}

// RecalcSummary reports what one month's recomputation touched.
type RecalcSummary struct {
	Month        string `json:"month"`
	Details      int    `json:"details"`
	Seeded       int    `json:"seeded"`
	Recalculated int    `json:"recalculated"`
	Frozen       int    `json:"frozen"`
	Unchanged    int    `json:"unchanged"`
}

// RecalculateMonth recomputes every commission detail of a month against
// the spiffs active for that period. Orders of the month without a
// detail row get one seeded first, at the standard rate, so imported
// orders flow into commissions without a separate step. Overridden
// details keep their frozen amount; only their auxiliary flags are
// refreshed.
func (s *CommissionService) RecalculateMonth(ctx context.Context, month string) (*RecalcSummary, error) {
	periodStart, periodEnd, err := importer.FormatPeriod(month)
	if err != nil {
		return nil, err
	}

	activeSpiffs, err := s.spiffs.ListActiveSpiffs(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load spiffs: %w", err)
	}
	lookup := commission.NewSpiffLookup(activeSpiffs, periodStart, periodEnd)

	details, err := s.details.ListDetailsByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load commission details: %w", err)
	}

	seeded, err := s.seedMissingDetails(ctx, month, details)
	if err != nil {
		return nil, err
	}
	if seeded > 0 {
		details, err = s.details.ListDetailsByMonth(ctx, month)
		if err != nil {
			return nil, fmt.Errorf("failed to reload commission details: %w", err)
		}
	}

	summary := &RecalcSummary{Month: month, Details: len(details), Seeded: seeded}
	touchedReps := make(map[string]bool)

	for _, detail := range details {
		lines, err := s.lineItems.GetLineItemsBySONumber(ctx, detail.SONumber)
		if err != nil {
			return nil, fmt.Errorf("failed to load line items for %s: %w", detail.SONumber, err)
		}

		result := commission.RecalculateDetail(detail, lines, lookup)
		switch {
		case detail.IsOverride:
			summary.Frozen++
			if result.Changed {
				if err := s.details.UpdateDetailFlags(ctx, detail); err != nil {
					return nil, fmt.Errorf("failed to update flags for detail %d: %w", detail.ID, err)
				}
			}
		case result.Changed:
			summary.Recalculated++
			touchedReps[detail.RepID] = true
			if err := s.details.UpdateDetailAmounts(ctx, detail); err != nil {
				return nil, fmt.Errorf("failed to update detail %d: %w", detail.ID, err)
			}
		default:
			summary.Unchanged++
		}
	}

	if year, monthNum, err := splitMonth(month); err == nil {
		for repID := range touchedReps {
			s.triggerRepSummary(repID, year, monthNum)
		}
	}

	return summary, nil
}

// seedMissingDetails creates a commission detail for every order of the
// month that lacks one, rep taken from the order's sales person and rate
// from the standard default. Amounts stay zero here; the recalculation
// pass that follows computes them.
func (s *CommissionService) seedMissingDetails(ctx context.Context, month string, existing []*models.CommissionDetail) (int, error) {
	orders, err := s.orders.ListOrdersByMonth(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("failed to load orders for %s: %w", month, err)
	}

	have := make(map[string]bool, len(existing))
	for _, d := range existing {
		have[d.SONumber+"|"+d.RepID] = true
	}

	seeded := 0
	for _, order := range orders {
		rep := order.SalesPerson
		if rep == "" {
			s.logger.WithField("so_number", order.SONumber).
				Warn("order has no sales person, commission detail not seeded")
			continue
		}
		if have[order.SONumber+"|"+rep] {
			continue
		}
		detail := &models.CommissionDetail{
			SONumber:        order.SONumber,
			RepID:           rep,
			CommissionMonth: month,
			CommissionRate:  s.defaultRate,
		}
		if err := s.details.UpsertDetail(ctx, detail); err != nil {
			return seeded, fmt.Errorf("failed to seed detail for %s: %w", order.SONumber, err)
		}
		have[order.SONumber+"|"+rep] = true
		seeded++
	}
	return seeded, nil
}

// ApplyAdjustment stores a manual adjustment on a commission detail and
// returns the new total. The parent rep-month summary is recomputed
// asynchronously; its failure never propagates.
func (s *CommissionService) ApplyAdjustment(ctx context.Context, detailID int64, amount decimal.Decimal, note string) (decimal.Decimal, error) {
	detail, err := s.details.GetDetailByID(ctx, detailID)
	if err != nil {
		return decimal.Zero, err
	}

	newTotal := commission.ApplyAdjustment(detail, amount, note)
	if err := s.details.UpdateDetailAdjustment(ctx, detail); err != nil {
		return decimal.Zero, fmt.Errorf("failed to store adjustment: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"detail_id": detailID,
		"so_number": detail.SONumber,
		"rep_id":    detail.RepID,
		"amount":    amount.String(),
	}).Info("manual adjustment applied")

	year, monthNum, err := splitMonth(detail.CommissionMonth)
	if err != nil {
		s.logger.WithError(err).WithField("detail_id", detailID).
			Warn("skipping summary recompute, commission month malformed")
		return newTotal, nil
	}
	s.triggerRepSummary(detail.RepID, year, monthNum)

	return newTotal, nil
}

// ClearOverride releases a manual override so routine recomputation can
// own the amount again.
func (s *CommissionService) ClearOverride(ctx context.Context, detailID int64) (*models.CommissionDetail, error) {
	detail, err := s.details.GetDetailByID(ctx, detailID)
	if err != nil {
		return nil, err
	}
	commission.ClearOverride(detail)
	if err := s.details.UpdateDetailAdjustment(ctx, detail); err != nil {
		return nil, fmt.Errorf("failed to clear override: %w", err)
	}
	return detail, nil
}

func (s *CommissionService) triggerRepSummary(repID string, year, month int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.summaries.RebuildRepMonthSummary(ctx, repID, year, month); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"rep_id": repID,
				"year":   year,
				"month":  month,
			}).Warn("rep month summary rebuild failed")
		}
	}()
}

// splitMonth parses a YYYY-MM commission month into its parts.
func splitMonth(month string) (int, int, error) {
	parts := strings.SplitN(month, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed commission month %q", month)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed commission month %q", month)
	}
	monthNum, err := strconv.Atoi(parts[1])
	if err != nil || monthNum < 1 || monthNum > 12 {
		return 0, 0, fmt.Errorf("malformed commission month %q", month)
	}
	return year, monthNum, nil
}
