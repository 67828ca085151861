package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/expiredrop/internal/model"
	"github.com/dharsanguruparan/expiredrop/internal/storage"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// multipartSlack is allowed on top of MaxFileSize for multipart framing and
// small form fields.
const multipartSlack = 64 << 10

var (
	errTooLarge     = errors.New("file too large")
	errBadExpire    = errors.New("expire must be a positive number of seconds")
	errMissingName  = errors.New("missing file name")
	errMissingFile  = errors.New("missing file part")
	errNotMultipart = errors.New("expecting multipart form")
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		s.handleRawUpload(w, r)
	case http.MethodPost:
		s.handleMultipartUpload(w, r)
	default:
		w.Header().Set("Allow", "PUT, POST, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRawUpload stores the request body as is. The file name and lifetime
// come from the query string.
func (s *Server) handleRawUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.cfg.MaxFileSize {
		http.Error(w, errTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1)
	query := r.URL.Query()
	lifetime, err := s.lifetime(query.Get("expire"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := query.Get("name")
	if name == "" {
		http.Error(w, errMissingName.Error(), http.StatusBadRequest)
		return
	}
	s.save(w, r, name, lifetime, r.Body)
}

// handleMultipartUpload stores the first part named "file". An "expire" form
// field is honoured when it precedes the file part; the query string works
// too.
func (s *Server) handleMultipartUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.cfg.MaxFileSize+multipartSlack {
		http.Error(w, errTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+multipartSlack)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, errNotMultipart.Error(), http.StatusBadRequest)
		return
	}
	expire := r.URL.Query().Get("expire")
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			http.Error(w, errMissingFile.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		switch part.FormName() {
		case "expire":
			v, err := readField(part)
			if err != nil {
				http.Error(w, errBadExpire.Error(), http.StatusBadRequest)
				return
			}
			expire = v
			continue
		case "file":
		default:
			part.Close()
			continue
		}

		lifetime, err := s.lifetime(expire)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := r.URL.Query().Get("name")
		if name == "" {
			name = part.FileName()
		}
		if name == "" {
			http.Error(w, errMissingName.Error(), http.StatusBadRequest)
			return
		}
		s.save(w, r, name, lifetime, part)
		part.Close()
		return
	}
}

func readField(part *multipart.Part) (string, error) {
	defer part.Close()
	b, err := io.ReadAll(io.LimitReader(part, 32))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// lifetime parses an expire value in seconds. Empty means the default
// lifetime; anything longer than the maximum is capped.
func (s *Server) lifetime(v string) (time.Duration, error) {
	if v == "" {
		return s.cfg.DefaultLifetime, nil
	}
	secs, err := strconv.ParseUint(v, 10, 64)
	if err != nil || secs == 0 {
		return 0, errBadExpire
	}
	if limit := uint64(s.cfg.MaxLifetime / time.Second); secs > limit {
		secs = limit
	}
	return time.Duration(secs) * time.Second, nil
}

// save writes content under a new ID, queues the ID for expiry and answers
// with the upload description.
func (s *Server) save(w http.ResponseWriter, r *http.Request, name string, lifetime time.Duration, content io.Reader) {
	if err := storage.ValidName(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	id := uploadid.New(uploadid.Unix(s.now().Add(lifetime)))
	body := &limitedReader{r: content, n: s.cfg.MaxFileSize}
	n, err := s.store.Create(ctx, id, name, body)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case body.exceeded, errors.As(err, &maxErr):
			http.Error(w, errTooLarge.Error(), http.StatusBadRequest)
		case errors.Is(err, storage.ErrInvalidName):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			s.log.Error("store upload failed", zap.Stringer("id", id), zap.String("name", name), zap.Error(err))
			http.Error(w, "failed to store upload", http.StatusInternalServerError)
		}
		return
	}
	s.queue.Push(id)

	upload := model.NewUpload(id, name, n)
	upload.URL = absoluteURL(r, upload.Path())
	if s.ledger != nil {
		if err := s.ledger.Create(ctx, upload); err != nil {
			s.log.Warn("record upload failed", zap.Stringer("id", id), zap.Error(err))
		}
	}
	s.log.Info("upload stored",
		zap.Stringer("id", id),
		zap.String("name", name),
		zap.String("size", humanize.IBytes(uint64(n))),
		zap.Time("expires", upload.ExpiresAt),
	)
	s.respondJSON(w, http.StatusCreated, upload)
}

func absoluteURL(r *http.Request, p string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: p}
	return u.String()
}

// limitedReader fails once more than n bytes have been read and remembers
// that it did, whatever the consumer does with the error.
type limitedReader struct {
	r        io.Reader
	n        int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, errTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.n {
		l.exceeded = true
		n = int(l.n)
		l.n = 0
		return n, errTooLarge
	}
	l.n -= int64(n)
	return n, err
}
