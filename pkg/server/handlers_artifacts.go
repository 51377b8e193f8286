package server

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/ethpandaops/ntview/pkg/server/db"
)

const maxUploadMemory = 32 << 20

var kindExtensions = map[api.ArtifactKind]string{
	api.ArtifactCustomJavaLog:    ".log",
	api.ArtifactCustomGC:         ".log",
	api.ArtifactCustomThreadDump: ".txt",
	api.ArtifactCustomHeapDump:   ".hprof",
	api.ArtifactCustomJVMOpts:    ".txt",
	api.ArtifactCustomJFR:        ".jfr",
	api.ArtifactCustomOther:      ".bin",
}

// storedName returns the file name for an upload, adding the extension of
// its kind when the name has none.
func storedName(kind api.ArtifactKind, name string) string {
	if path.Ext(name) != "" {
		return name
	}

	ext, ok := kindExtensions[kind]
	if !ok {
		ext = ".bin"
	}

	return name + ext
}

// requireTest writes a 404 and returns false when the test does not exist.
func (s *server) requireTest(w http.ResponseWriter, r *http.Request, testID int64) (*db.Test, bool) {
	t, err := s.store.GetTest(r.Context(), testID)
	if err != nil {
		s.writeStoreError(w, err, testNotFound)

		return nil, false
	}

	return t, true
}

func (s *server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	if _, ok := s.requireTest(w, r, testID); !ok {
		return
	}

	arts, err := s.store.ListArtifacts(r.Context(), testID)
	if err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	writeJSON(w, http.StatusOK, convertAll(arts, toArtifact))
}

func (s *server) handleUploadArtifact(w http.ResponseWriter, r *http.Request) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	if _, ok := s.requireTest(w, r, testID); !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeValidation(w, "body", "file", "invalid multipart form")

		return
	}

	kind := api.ArtifactKind(r.FormValue("kind"))
	if kind == "" {
		writeValidation(w, "body", "kind", "field required")

		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, "body", "file", "field required")

		return
	}

	defer func() { _ = file.Close() }()

	displayName := r.FormValue("display_name")
	if displayName == "" {
		displayName = header.Filename
	}

	stored, err := s.blobs.Save(testID, storedName(kind, displayName), file)
	if err != nil {
		s.log.WithError(err).Error("Failed to store upload")
		writeError(w, http.StatusInternalServerError, "Failed to store file")

		return
	}

	art := &db.Artifact{
		TestID:      testID,
		Kind:        string(kind),
		DisplayName: &displayName,
		FilePath:    &stored.Path,
		Metadata: map[string]any{
			"original_filename": header.Filename,
			"original_name":     displayName,
			"kind":              string(kind),
			"size":              stored.Size,
		},
	}

	if err := s.store.CreateArtifacts(r.Context(), art); err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	writeJSON(w, http.StatusOK, toArtifact(art))
}

// handleDownloadArtifacts streams a zip of every stored artifact file of a
// test. Files that can no longer be read are skipped.
func (s *server) handleDownloadArtifacts(w http.ResponseWriter, r *http.Request) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	if _, ok := s.requireTest(w, r, testID); !ok {
		return
	}

	arts, err := s.store.ListArtifacts(r.Context(), testID)
	if err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=test_%d_artifacts.zip", testID))
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	seen := make(map[string]struct{}, len(arts))

	for i := range arts {
		a := &arts[i]
		if a.FilePath == nil {
			continue
		}

		name := path.Base(*a.FilePath)
		if _, dup := seen[name]; dup {
			name = strconv.FormatInt(a.ID, 10) + "_" + name
		}

		seen[name] = struct{}{}

		if err := s.addToZip(zw, name, *a.FilePath); err != nil {
			s.log.WithError(err).
				WithField("artifact_id", a.ID).
				Warn("Skipping artifact in archive")
		}
	}

	if err := zw.Close(); err != nil {
		s.log.WithError(err).Warn("Failed to finish archive")
	}
}

func (s *server) addToZip(zw *zip.Writer, name, relPath string) error {
	f, err := s.blobs.Open(relPath)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	dst, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}

	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}

func (s *server) handleDeleteArtifacts(w http.ResponseWriter, r *http.Request) {
	testID, ok := pathID(w, r, "testID")
	if !ok {
		return
	}

	if _, ok := s.requireTest(w, r, testID); !ok {
		return
	}

	if err := s.store.DeleteArtifacts(r.Context(), testID); err != nil {
		s.writeStoreError(w, err, testNotFound)

		return
	}

	s.removeTestFiles(testID)

	w.WriteHeader(http.StatusNoContent)
}
