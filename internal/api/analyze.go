package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cipher241/Smart-Cities-Banorte/internal/analysis"
)

// analyze handles POST /api/analyze: a multipart PDF under "file".
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Archivo demasiado grande")
			return
		}
		writeError(w, http.StatusBadRequest, "No se recibió archivo")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No se recibió archivo")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == "/" {
		writeError(w, http.StatusBadRequest, "Archivo vacío")
		return
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		writeError(w, http.StatusBadRequest, "Solo se aceptan archivos PDF")
		return
	}

	path, err := s.saveUpload(file, name)
	if err != nil {
		s.logger.Error("failed to save upload", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Error interno al guardar el archivo")
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to remove upload", "path", path, "error", err)
		}
	}()

	s.logger.Info("file received", "file", name, "bytes", header.Size)

	result, err := s.analyzer.AnalyzeFile(r.Context(), path)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientText) {
			writeError(w, http.StatusBadRequest, "No se pudo extraer texto del PDF")
			return
		}
		s.logger.Error("analysis failed", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// saveUpload writes the upload under a unique name in the upload dir.
func (s *Server) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.opts.UploadDir, uuid.NewString()+"_"+name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	return path, f.Close()
}
