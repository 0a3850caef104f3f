// Package sandbox is an offline stand-in for the provider data service. It
// serves the same REST contract over gorilla/mux and keeps records in
// SQLite, so the dashboard core can be exercised without a backend.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gorilla/mux"

	"github.com/nimburion/providerdesk/pkg/health"
	"github.com/nimburion/providerdesk/pkg/observability/logger"
)

const (
	defaultMaxUploadBytes = 32 << 20
	defaultCompressMin    = 256
)

// Config configures a Server.
type Config struct {
	// Token, when set, is required as a bearer token on every API call.
	Token string
	// MaxUploadBytes bounds request bodies.
	MaxUploadBytes int64
	// CompressMinSize is the smallest response body worth compressing.
	CompressMinSize int
	Version         string
}

// Server serves the data service contract for a fixed set of resources.
type Server struct {
	store     *Store
	cfg       Config
	log       logger.Logger
	resources map[string]Resource
	openapi   []byte
	health    *health.Registry
}

// NewServer builds a Server over store for resources.
func NewServer(store *Store, resources []Resource, cfg Config, log logger.Logger) (*Server, error) {
	if store == nil {
		return nil, errors.New("sandbox store is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.CompressMinSize <= 0 {
		cfg.CompressMinSize = defaultCompressMin
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{store: store, cfg: cfg, log: log, resources: make(map[string]Resource, len(resources)), health: health.NewRegistry()}
	s.health.Register(health.NewAdapterChecker("sqlite", store, 2*time.Second))
	s.health.Register(health.NewCustomChecker("schema", s.checkSchema))
	for _, res := range resources {
		s.resources[res.Name] = res
	}
	doc, err := BuildOpenAPI("{scope}", cfg.Version, resources)
	if err != nil {
		return nil, err
	}
	if s.openapi, err = doc.MarshalJSON(); err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return s, nil
}

// OpenAPI returns the served OpenAPI document.
func (s *Server) OpenAPI() (*openapi3.T, error) {
	return openapi3.NewLoader().LoadFromData(s.openapi)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(recoverer(s.log), requestID, accessLog(s.log), compress(s.cfg.CompressMinSize))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", handleLive).Methods(http.MethodGet)
	r.Handle("/readyz", s.health.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/media/{id}", s.handleMedia).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/{scope}").Subrouter()
	api.Use(bearer(s.cfg.Token))
	api.HandleFunc("/{resource}", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/{resource}", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/{resource}/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{resource}/{id}", s.handleUpdate).Methods(http.MethodPost)
	api.HandleFunc("/{resource}/{id}", s.handleDelete).Methods(http.MethodDelete)
	return r
}

func handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": string(health.StatusHealthy)})
}

// checkSchema reports degraded while migrations are pending.
func (s *Server) checkSchema(ctx context.Context) (health.Status, string, error) {
	st, err := s.store.SchemaStatus(ctx)
	if err != nil {
		return health.StatusUnhealthy, "", err
	}
	if len(st.Pending) > 0 {
		return health.StatusDegraded, fmt.Sprintf("%d migrations pending", len(st.Pending)), nil
	}
	return health.StatusHealthy, fmt.Sprintf("schema version %d", st.Current()), nil
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.openapi)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Media(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", m.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": m.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(m.Data)
}

func (s *Server) resource(w http.ResponseWriter, r *http.Request) (Resource, bool) {
	res, ok := s.resources[mux.Vars(r)["resource"]]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown resource %q", mux.Vars(r)["resource"]))
	}
	return res, ok
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	filters := map[string]string{}
	for _, name := range res.Filters {
		if v := r.URL.Query().Get(name); v != "" {
			filters[name] = v
		}
	}
	records, err := s.store.List(r.Context(), res.Name, filters)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.Name == "categories" {
		if records, err = s.embedSubcategories(r, records); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records})
}

// embedSubcategories attaches each category's children the way the real
// service nests them.
func (s *Server) embedSubcategories(r *http.Request, categories []Record) ([]Record, error) {
	children, err := s.store.List(r.Context(), "subcategories", nil)
	if err != nil {
		return nil, err
	}
	byParent := map[string][]Record{}
	for _, child := range children {
		parent := fmt.Sprint(child["category_id"])
		byParent[parent] = append(byParent[parent], child)
	}
	for _, c := range categories {
		subs := byParent[fmt.Sprint(c["id"])]
		if subs == nil {
			subs = []Record{}
		}
		c["subcategories"] = subs
	}
	return categories, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Get(r.Context(), res.Name, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	fields, err := s.readFields(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.store.Create(r.Context(), res.Name, fields)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": rec})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	fields, err := s.readFields(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.store.Update(r.Context(), res.Name, mux.Vars(r)["id"], fields)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rec})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	res, ok := s.resource(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), res.Name, mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

// readFields decodes a JSON object or a multipart form. Uploaded files are
// stored as media and replaced by their URL.
func (s *Server) readFields(r *http.Request) (Record, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.cfg.MaxUploadBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
			return nil, &badRequestError{msg: "malformed multipart body: " + err.Error()}
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		fields := Record{}
		for name, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				fields[name] = values[len(values)-1]
			}
		}
		for name, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			h := headers[0]
			f, err := h.Open()
			if err != nil {
				return nil, &badRequestError{msg: "unreadable upload " + name}
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, &badRequestError{msg: "unreadable upload " + name}
			}
			id, err := s.store.SaveMedia(r.Context(), h.Filename, h.Header.Get("Content-Type"), data)
			if err != nil {
				return nil, err
			}
			fields[name] = "/media/" + url.PathEscape(id)
		}
		return fields, nil
	case "application/json", "":
		fields := Record{}
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			if errors.Is(err, io.EOF) {
				return fields, nil
			}
			return nil, &badRequestError{msg: "malformed json body: " + err.Error()}
		}
		return normalizeNumbers(fields), nil
	default:
		return nil, &badRequestError{msg: fmt.Sprintf("unsupported content type %q", mediaType)}
	}
}

// normalizeNumbers turns json.Number values into int64 or float64.
func normalizeNumbers(fields Record) Record {
	for k, v := range fields {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			fields[k] = i
		} else if f, err := n.Float64(); err == nil {
			fields[k] = f
		}
	}
	return fields
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var badReq *badRequestError
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", strings.TrimPrefix(r.URL.Path, "/")))
	case errors.As(err, &badReq):
		writeError(w, http.StatusBadRequest, badReq.msg)
	default:
		s.log.WithContext(r.Context()).Error("sandbox request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
