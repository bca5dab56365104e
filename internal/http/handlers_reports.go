package http

import (
	"fmt"
	"net/http"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/services"
)

type monthlyReport struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	services.Report
}

type yearlyReport struct {
	Year int `json:"year"`
	services.Report
}

type rangeReport struct {
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
	services.Report
}

func (s *Server) buildReport(r *http.Request, from, to core.Date) (services.Report, error) {
	userID := userIDFrom(r)
	key := fmt.Sprintf("%d:%s:%s", userID, from, to)

	if cached, ok := s.reportCache.Get(key); ok {
		return cached.(services.Report), nil
	}

	totals, err := s.repo.CategoryTotalsBetween(r.Context(), userID, from, to)
	if err != nil {
		return services.Report{}, err
	}
	report := services.BuildReport(totals)
	s.reportCache.SetDefault(key, report)
	return report, nil
}

// invalidateReports drops the user's cached reports after a write.
func (s *Server) invalidateReports(userID int64) {
	prefix := fmt.Sprintf("%d:", userID)
	for key := range s.reportCache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.reportCache.Delete(key)
		}
	}
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, okY := queryInt(r, "year")
	month, okM := queryInt(r, "month")
	if !okY || !okM || year < 1900 || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "year and month (1-12) are required")
		return
	}

	from := core.NewDate(year, month, 1)
	to := from.AddMonths(1).AddDays(-1)

	report, err := s.buildReport(r, from, to)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, monthlyReport{Year: year, Month: month, Report: report})
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	year, ok := queryInt(r, "year")
	if !ok || year < 1900 {
		writeError(w, http.StatusBadRequest, "year is required")
		return
	}

	report, err := s.buildReport(r, core.NewDate(year, 1, 1), core.NewDate(year, 12, 31))
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, yearlyReport{Year: year, Report: report})
}

func (s *Server) handleCustomReport(w http.ResponseWriter, r *http.Request) {
	from, okF, err := queryDate(r, "start_date")
	if err != nil || !okF {
		writeError(w, http.StatusBadRequest, "start_date (YYYY-MM-DD) is required")
		return
	}
	to, okT, err := queryDate(r, "end_date")
	if err != nil || !okT {
		writeError(w, http.StatusBadRequest, "end_date (YYYY-MM-DD) is required")
		return
	}
	if from.After(to) {
		writeError(w, http.StatusBadRequest, "start date cannot be after end date")
		return
	}

	report, err := s.buildReport(r, from, to)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rangeReport{StartDate: from, EndDate: to, Report: report})
}
