package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/wallet-storage/was"
)

// Service is the space/resource surface the handlers call.
type Service interface {
	UpsertSpace(ctx context.Context, signed was.SignedRequest, key, publicID, controller string) error
	GetSpace(ctx context.Context, signed was.SignedRequest, key string) (was.Space, error)
	CreateSpace(ctx context.Context, signed was.SignedRequest) (was.Space, error)
	ListSpaces(ctx context.Context, signed was.SignedRequest) ([]was.Space, error)
	DeleteSpace(ctx context.Context, signed was.SignedRequest, key string) error
	GetResource(ctx context.Context, spaceKey, path string) (was.Resource, error)
	PutResource(ctx context.Context, signed was.SignedRequest, spaceKey, path string, content []byte, contentType string) error
	DeleteResource(ctx context.Context, signed was.SignedRequest, spaceKey, path string) error
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	Verifier      RequestVerifier
	CORS          CORSConfig
	MaxUploadSize int64
}

// Handler provides the Wallet Attached Storage REST routes.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router returns the configured route tree. Resource reads are public; every
// other route requires a verified HTTP Signature.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/space/{spaceKey}/*", h.handleGetResource)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.config.Verifier))

		r.Post("/spaces/", h.handleCreateSpace)
		r.Get("/spaces/", h.handleListSpaces)

		r.Put("/space/{spaceKey}", h.handlePutSpace)
		r.Get("/space/{spaceKey}", h.handleGetSpace)
		r.Delete("/space/{spaceKey}", h.handleDeleteSpace)

		r.Put("/space/{spaceKey}/*", h.handlePutResource)
		r.Post("/space/{spaceKey}/*", h.handlePostResource)
		r.Delete("/space/{spaceKey}/*", h.handleDeleteResource)
	})

	return r
}

func signedRequest(w http.ResponseWriter, r *http.Request) (was.SignedRequest, bool) {
	signed, ok := SignedRequestFromContext(r.Context())
	if !ok {
		// Route wiring bug: an authenticated handler outside the group.
		WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", "/authorization")
		return was.SignedRequest{}, false
	}
	return signed, true
}

// resourcePath returns the wildcard remainder with the protocol's leading
// slash restored.
func resourcePath(r *http.Request) string {
	return "/" + chi.URLParam(r, "*")
}

type spaceBody struct {
	ID         string `json:"id"`
	Controller string `json:"controller"`
}

func (h *Handler) handlePutSpace(w http.ResponseWriter, r *http.Request) {
	signed, ok := signedRequest(w, r)
	if !ok {
		return
	}

	var body spaceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteProblem(w, http.StatusBadRequest, "Bad Request", "Body must be a JSON object", "/body")
		return
	}
	if body.ID == "" || body.Controller == "" {
		WriteProblem(w, http.StatusBadRequest, "Bad Request", "Body must include 'id' and 'controller'", "/body")
		return
	}

	spaceKey := chi.URLParam(r, "spaceKey")
	if err := h.service.UpsertSpace(r.Context(), signed, spaceKey, body.ID, body.Controller); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetSpace(w http.ResponseWriter, r *http.Request) {
	signed, ok := signedRequest(w, r)
	if !ok {
		return
	}

	space, err := h.service.GetSpace(r.Context(), signed, chi.URLParam(r, "spaceKey"))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, space)
}

func (h *Handler) handleDeleteSpace(w http.ResponseWriter, r *http.Request) {
	signed, ok := signedRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteSpace(r.Context(), signed, chi.URLParam(r, "spaceKey")); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	signed, ok := signedRequest(w, r)
	if !ok {
		return
	}

	space, err := h.service.CreateSpace(r.Context(), signed)
	if err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Location", "/space/"+space.Key)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	signed, ok := signedRequest(w, r)
	if !ok {
		return
	}

	spaces, err := h.service.ListSpaces(r.Context(), signed)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, spaces)
}

func (h *Handler) handleGetResource(w http.ResponseWriter, r *http.Request) {
	resource, err := h.service.GetResource(r.Context(), chi.URLParam(r, "spaceKey"), resourcePath(r))
	if err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", resource.ContentType)
	_, _ = w.Write(resource.Content)
}

func (h *Handler) writeResource(w http.ResponseWriter, r *http.Request, successStatus int) {
	signed, ok := signedRequest(w, r)
	if !ok {
		return
	}

	body := r.Body
	if h.config.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, body, h.config.MaxUploadSize)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "Request body exceeds the upload limit", "/body")
			return
		}
		HandleError(w, err)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	spaceKey := chi.URLParam(r, "spaceKey")
	if err := h.service.PutResource(r.Context(), signed, spaceKey, resourcePath(r), content, contentType); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(successStatus)
}

func (h *Handler) handlePutResource(w http.ResponseWriter, r *http.Request) {
	h.writeResource(w, r, http.StatusNoContent)
}

func (h *Handler) handlePostResource(w http.ResponseWriter, r *http.Request) {
	h.writeResource(w, r, http.StatusCreated)
}

func (h *Handler) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	signed, ok := signedRequest(w, r)
	if !ok {
		return
	}

	spaceKey := chi.URLParam(r, "spaceKey")
	if err := h.service.DeleteResource(r.Context(), signed, spaceKey, resourcePath(r)); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
