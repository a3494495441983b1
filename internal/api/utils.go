package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware" // For RequestID
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

const (
	maxJSONBytes = 1_048_576
	// DefaultMaxPhotoBytes bounds a multipart request carrying a profile photo.
	DefaultMaxPhotoBytes = 5 << 20
	PhotoFormField       = "photo"
)

var allowedPhotoTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// ErrorResponse writes a standard JSON error response including request ID.
func ErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	reqID := middleware.GetReqID(r.Context())
	WriteJSONResponse(w, r, status, types.ErrorBody{
		Success:   false,
		Message:   message,
		RequestID: reqID,
	})
}

// ServiceErrorResponse maps a workflow error onto a status code and a client
// safe message. Anything it does not recognise is logged and reported as 500.
func ServiceErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, message := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	}
	ErrorResponse(w, r, status, message)
}

// StatusFor returns the status code and message a service error is reported with.
func StatusFor(err error) (int, string) {
	var verr *types.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, types.ErrConflict):
		return http.StatusBadRequest, "User already exists"
	case errors.Is(err, types.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid email or password"
	case errors.Is(err, types.ErrNotVerified):
		return http.StatusBadRequest, "Please verify your email before logging in"
	case errors.Is(err, types.ErrTokenExpired):
		return http.StatusBadRequest, "Token has expired"
	case errors.Is(err, types.ErrTokenInvalid):
		return http.StatusBadRequest, "Invalid token"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, types.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, types.ErrUpstream):
		return http.StatusInternalServerError, "Upstream service unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// WriteJSONResponse encodes the data to JSON and writes the response header and body.
func WriteJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}

	js, err := json.Marshal(data)
	if err != nil {
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to marshal JSON response",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// Set headers *before* writing status or body
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	if err != nil {
		// client already received status code
		reqID := middleware.GetReqID(r.Context())
		slog.ErrorContext(r.Context(), "Failed to write response body",
			slog.Any("error", err),
			slog.String("request_id", reqID),
		)
	}
}

// DecodeJSONBody reads and decodes a JSON request body safely. Decoding
// failures come back as validation errors.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxJSONBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return types.NewValidationError(describeDecodeError(err))
	}

	// Check for trailing data after the first JSON object
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return types.NewValidationError(errors.New("body must only contain a single JSON value"))
	}
	return nil
}

func describeDecodeError(err error) error {
	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var invalidUnmarshalError *json.InvalidUnmarshalError
	var maxBytesError *http.MaxBytesError

	switch {
	case errors.As(err, &syntaxError):
		return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)

	case errors.Is(err, io.ErrUnexpectedEOF):
		return errors.New("body contains badly-formed JSON")

	case errors.As(err, &unmarshalTypeError):
		if unmarshalTypeError.Field != "" {
			return fmt.Errorf("body contains incorrect JSON type for field %q (wanted %s)", unmarshalTypeError.Field, unmarshalTypeError.Type)
		}
		return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)

	case errors.Is(err, io.EOF):
		return errors.New("body must not be empty")

	case strings.HasPrefix(err.Error(), "json: unknown field "):
		fieldName := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return fmt.Errorf("body contains unknown key %q", fieldName)

	case errors.As(err, &maxBytesError):
		return fmt.Errorf("body must not be larger than %d bytes", maxBytesError.Limit)

	case errors.As(err, &invalidUnmarshalError):
		panic(fmt.Errorf("developer error: invalid argument passed to json.Unmarshal: %w", err))

	default:
		return fmt.Errorf("error decoding JSON body: %w", err)
	}
}

// IsMultipart reports whether the request body is multipart/form-data.
func IsMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// ParseMultipart parses a multipart form no larger than maxBytes.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPhotoBytes
	}
	// room for the text fields next to the photo
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+maxJSONBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return types.NewValidationError(fmt.Errorf("photo must not be larger than %d bytes", maxBytes))
		}
		return types.NewValidationError(fmt.Errorf("invalid multipart form: %w", err))
	}
	return nil
}

// FormString returns a pointer to a multipart text field, or nil when the
// field was not sent.
func FormString(r *http.Request, field string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// ReadPhoto loads the optional photo part of a parsed multipart form.
func ReadPhoto(r *http.Request, maxBytes int64) (*types.Photo, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[PhotoFormField]) == 0 {
		return nil, nil
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPhotoBytes
	}
	header := r.MultipartForm.File[PhotoFormField][0]
	if header.Size > maxBytes {
		return nil, types.NewValidationError(fmt.Errorf("photo must not be larger than %d bytes", maxBytes))
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded photo: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded photo: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, types.NewValidationError(fmt.Errorf("photo must not be larger than %d bytes", maxBytes))
	}

	contentType := http.DetectContentType(data)
	if _, ok := allowedPhotoTypes[contentType]; !ok {
		return nil, types.NewValidationError(fmt.Errorf("photo must be a jpeg, png, gif or webp image, got %s", contentType))
	}

	return &types.Photo{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// ParseUUIDParam reads a chi URL parameter that must hold a UUID.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return uuid.Nil, types.NewValidationError(fmt.Errorf("%s is required", name))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, types.NewValidationError(fmt.Errorf("%s must be a valid UUID", name))
	}
	return id, nil
}
