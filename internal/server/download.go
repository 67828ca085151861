package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/storage"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// handleFiles serves GET and HEAD for /<id>/<name> plus a short banner on /.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path == "/" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "expiredrop\n")
		return
	}
	rawID, name, ok := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if !ok || name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	id, err := uploadid.Parse(rawID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	now := s.now()
	// checked before storage so an expired upload is never served, even when
	// the sweeper has not reached it yet
	if id.Expired(uploadid.Unix(now)) {
		http.NotFound(w, r)
		return
	}
	s.serveUpload(w, r, id, name, now)
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request, id uploadid.ID, name string, now time.Time) {
	obj, err := s.store.Open(r.Context(), id, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.log.Error("open upload failed", zap.Stringer("id", id), zap.Error(err))
		http.Error(w, "file unavailable", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	ctype, err := contentType(name, obj)
	if err != nil {
		s.log.Error("detect content type failed", zap.Stringer("id", id), zap.Error(err))
		http.Error(w, "file unavailable", http.StatusInternalServerError)
		return
	}

	expires := id.ExpiresAt()
	left := int64(expires.Sub(now) / time.Second)
	h := w.Header()
	h.Set("Cache-Control", "public, must-revalidate, max-age="+strconv.FormatInt(left, 10))
	h.Set("Expires", expires.UTC().Format(http.TimeFormat))
	h.Set("Content-Type", ctype)
	h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q; filename*=UTF-8''%s", name, url.PathEscape(name)))
	h.Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, name, obj.ModTime, obj)
}

// contentType picks a type from the extension, falling back to sniffing the
// content. HTML is always served as plain text.
func contentType(name string, rs io.ReadSeeker) (string, error) {
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		m, err := mimetype.DetectReader(rs)
		if err != nil {
			return "", fmt.Errorf("sniff content: %w", err)
		}
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("rewind content: %w", err)
		}
		ctype = m.String()
	}
	// catches text/html and text/html; charset=utf-8
	const prefix = "text/html"
	if strings.HasPrefix(ctype, prefix) {
		ctype = "text/plain" + ctype[len(prefix):]
	}
	return ctype, nil
}
