package peer

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	msgNotFound             = "Endpoint not found."
	msgMethodNotAllowed     = "HTTP method not allowed."
	msgResourceNotAllowed   = "HTTP method not allowed for this endpoint."
	msgNameRequired         = `The "name" field is required.`
	msgResourceCreated      = "Resource created."
	msgDefaultDescription   = "No description"
	msgUploadFailed         = "Failed to upload the file."
	msgStoreFailed          = "Failed to store the uploaded file."
	msgInternalError        = "Internal server error."
	msgTooManyRequests      = "Too many requests."
	defaultMaxUploadMemory  = 32 << 20
	maxResourceRequestBytes = 1 << 20
)

// Contact is one entry of GET /api/data.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

var contacts = []Contact{
	{Name: "Jean Dupont", Email: "jean.dupont@example.com"},
	{Name: "Marie Curie", Email: "marie.curie@example.com"},
}

// UploadEcho is the body of a POST /api/data response. File and FileError
// are exclusive; Name and Email appear only when the form carried them.
type UploadEcho struct {
	File      string  `json:"file,omitempty"`
	FileError string  `json:"file_error,omitempty"`
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

type dataHandler struct {
	uploads   *Uploads
	maxMemory int64
	metrics   *Metrics
	logger    zerolog.Logger
}

func (h *dataHandler) list(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, contacts)
}

// upload stores the "file" part, if any, and echoes the name and email
// fields. Bodies that are not multipart are read as plain forms.
func (h *dataHandler) upload(w http.ResponseWriter, r *http.Request) {
	var echo UploadEcho

	err := r.ParseMultipartForm(h.maxMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Warn().Err(err).Msg("failed to parse upload form")
		h.metrics.recordUpload(r, "error")
		echo.FileError = msgUploadFailed
		WriteJSON(w, http.StatusOK, echo)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if r.MultipartForm != nil && len(r.MultipartForm.File["file"]) > 0 {
		h.saveFile(r, r.MultipartForm.File["file"][0], &echo)
	}

	echo.Name = formValue(r, "name")
	echo.Email = formValue(r, "email")

	WriteJSON(w, http.StatusOK, echo)
}

func (h *dataHandler) saveFile(r *http.Request, header *multipart.FileHeader, echo *UploadEcho) {
	file, err := header.Open()
	if err != nil {
		h.metrics.recordUpload(r, "error")
		echo.FileError = msgUploadFailed
		return
	}
	defer file.Close()

	path, err := h.uploads.Save(header.Filename, file)
	if err != nil {
		h.logger.Error().Err(err).Str("file_name", header.Filename).Msg("failed to store upload")
		h.metrics.recordUpload(r, "error")
		echo.FileError = msgStoreFailed
		return
	}
	h.metrics.recordUpload(r, "stored")
	echo.File = path
}

func formValue(r *http.Request, key string) *string {
	if vs, ok := r.PostForm[key]; ok && len(vs) > 0 {
		return &vs[0]
	}
	return nil
}

// CreateResourceRequest is the JSON body of POST /resource. Both fields
// take any JSON value: strings are stored as is, other values as their
// JSON text, so {"name":123} creates a resource named "123".
type CreateResourceRequest struct {
	Name        json.RawMessage `json:"name"`
	Description json.RawMessage `json:"description"`
}

// newResource is a CreateResourceRequest reduced to the stored text.
type newResource struct {
	Name        string `validate:"required,ne=0"`
	Description string
}

// resource returns the text to store. ok is false when the name is
// missing: absent, null, false, zero, "", "0", [] or {}.
func (req CreateResourceRequest) resource() (newResource, bool) {
	if emptyValue(req.Name) {
		return newResource{}, false
	}

	res := newResource{Name: jsonText(req.Name), Description: msgDefaultDescription}
	if len(req.Description) > 0 && string(req.Description) != "null" {
		res.Description = jsonText(req.Description)
	}
	return res, true
}

// jsonText renders a JSON value as text: a string without its quotes,
// anything else as written.
func jsonText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// emptyValue covers the non-string values that count as a missing name.
// Empty strings are left to the validator.
func emptyValue(raw json.RawMessage) bool {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return true
	}

	switch v := v.(type) {
	case nil:
		return true
	case bool:
		return !v
	case float64:
		return v == 0
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}

type resourceHandler struct {
	store    Store
	validate *validator.Validate
	logger   zerolog.Logger
}

func (h *resourceHandler) list(w http.ResponseWriter, r *http.Request) {
	resources, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list resources")
		WriteError(w, http.StatusInternalServerError, msgInternalError)
		return
	}
	WriteJSON(w, http.StatusOK, resources)
}

// create treats a body that is not a JSON object the same as one without a
// name.
func (h *resourceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateResourceRequest

	body, err := io.ReadAll(io.LimitReader(r.Body, maxResourceRequestBytes))
	if err != nil {
		WriteError(w, http.StatusBadRequest, msgNameRequired)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, http.StatusBadRequest, msgNameRequired)
		return
	}
	input, ok := req.resource()
	if !ok {
		WriteError(w, http.StatusBadRequest, msgNameRequired)
		return
	}
	if err := h.validate.StructCtx(r.Context(), input); err != nil {
		WriteError(w, http.StatusBadRequest, msgNameRequired)
		return
	}

	res, err := h.store.Create(r.Context(), input.Name, input.Description)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create resource")
		WriteError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	WriteMessage(w, http.StatusCreated, msgResourceCreated, res)
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, msgNotFound)
}

func methodNotAllowed(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, message)
	}
}
