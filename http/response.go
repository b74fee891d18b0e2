package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wallet-storage/was"
)

const problemTypeBase = "https://wallet.storage/spec#"

// Problem is an application/problem+json document.
type Problem struct {
	Type   string          `json:"type"`
	Title  string          `json:"title"`
	Errors []ProblemDetail `json:"errors"`
}

// ProblemDetail is a single error entry within a Problem.
type ProblemDetail struct {
	Detail  string `json:"detail"`
	Pointer string `json:"pointer"`
}

// WriteProblem writes a problem+json error response. The type URI is derived
// from the title.
func WriteProblem(w http.ResponseWriter, status int, title, detail, pointer string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	p := Problem{
		Type:   problemTypeBase + strings.ReplaceAll(strings.ToLower(title), " ", "-"),
		Title:  title,
		Errors: []ProblemDetail{{Detail: detail, Pointer: pointer}},
	}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// HandleError maps a service or verifier error to the appropriate
// problem+json response. Authentication failures become 401, authorization
// failures 403, absence 404, validation 400, and everything else a generic
// 500 with no internal detail exposed.
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, was.ErrAuthScheme),
		errors.Is(err, was.ErrMissingParameter),
		errors.Is(err, was.ErrMalformedIdentifier),
		errors.Is(err, was.ErrExpiredSignature),
		errors.Is(err, was.ErrSignatureMismatch),
		errors.Is(err, was.ErrUnsupportedHeader):
		WriteProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), "/authorization")

	case errors.Is(err, was.ErrForbidden):
		WriteProblem(w, http.StatusForbidden, "Forbidden", "Signer does not match space controller", "/authorization")

	case errors.Is(err, was.ErrSpaceNotFound):
		WriteProblem(w, http.StatusNotFound, "Not Found", err.Error(), "/space")

	case errors.Is(err, was.ErrResourceNotFound):
		WriteProblem(w, http.StatusNotFound, "Not Found", err.Error(), "/resource")

	case errors.Is(err, was.ErrValidation):
		WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), "/body")

	default:
		slog.Error("request error", "error", err)
		WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "Internal server error", "/")
	}
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
