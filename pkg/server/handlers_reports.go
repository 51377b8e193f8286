package server

import (
	"net/http"
	"os"
	"path"
)

const reportNotFound = "Report not found"

func (s *server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	rep, err := s.store.GetReport(r.Context(), testID)
	if err != nil {
		s.writeStoreError(w, err, reportNotFound)

		return
	}

	writeJSON(w, http.StatusOK, toReport(rep))
}

func (s *server) handleGetReportText(w http.ResponseWriter, r *http.Request) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	rep, err := s.store.GetReport(r.Context(), testID)
	if err != nil {
		s.writeStoreError(w, err, reportNotFound)

		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rep.ReportText))
}

func (s *server) handleGetReportPDF(w http.ResponseWriter, r *http.Request) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	rep, err := s.store.GetReport(r.Context(), testID)
	if err != nil && !isNotFound(err) {
		s.writeStoreError(w, err, reportNotFound)

		return
	}

	if err != nil || rep.PDFPath == nil {
		writeError(w, http.StatusNotFound, "Report PDF not found")

		return
	}

	full, err := s.blobs.Abs(*rep.PDFPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "PDF file not found on disk")

		return
	}

	if _, err := os.Stat(full); err != nil {
		writeError(w, http.StatusNotFound, "PDF file not found on disk")

		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+path.Base(*rep.PDFPath))
	http.ServeFile(w, r, full)
}
