// handlers.go — HTTP handlers around the stego codec and token sealer.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/xob0t/GoStego/internal/config"
	"github.com/xob0t/GoStego/pkg/stego"
	"github.com/xob0t/GoStego/pkg/token"
)

// ── Helpers ──

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps codec error kinds to HTTP status codes.
func statusFor(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	switch stego.KindOf(err) {
	case stego.KindCapacityExceeded, stego.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case stego.KindUnsupportedCarrierFormat:
		return http.StatusUnsupportedMediaType
	case stego.KindTruncatedHeader, stego.KindTruncatedPayload, stego.KindCorruptHeader:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// carrierFamily picks "image" or "audio" from the declared MIME type,
// sniffing the content when the declaration is missing or generic.
func carrierFamily(declared string, data []byte) string {
	mt, _, _ := mime.ParseMediaType(declared)
	if mt == "" || mt == "application/octet-stream" {
		mt = http.DetectContentType(data)
	}
	family, _, _ := strings.Cut(mt, "/")
	switch family {
	case "image", "audio":
		return family
	default:
		return ""
	}
}

func embedCarrier(family string, carrier, payload []byte) ([]byte, string, error) {
	if family == "audio" {
		return stego.EmbedAudio(carrier, payload)
	}
	return stego.EmbedImage(carrier, payload)
}

func extractCarrier(family string, carrier []byte) ([]byte, error) {
	if family == "audio" {
		return stego.ExtractAudio(carrier)
	}
	return stego.ExtractImage(carrier)
}

func extensionForMime(m string) string {
	switch m {
	case stego.MIMEImagePNG:
		return ".png"
	case stego.MIMEAudioWAV:
		return ".wav"
	default:
		return ""
	}
}

type upload struct {
	name   string
	family string
	data   []byte
}

// readUpload parses a multipart form and returns its "file" part.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, int, error) {
	limit := s.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d MB", s.cfg.MaxUploadMB)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("parse form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("no file provided")
	}
	defer file.Close()
	if header.Filename == "" {
		return nil, http.StatusBadRequest, errors.New("no selected file")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("read file: %w", err)
	}
	family := carrierFamily(header.Header.Get("Content-Type"), data)
	if family == "" {
		return nil, http.StatusUnsupportedMediaType, errors.New("unsupported file type (expect image/* or audio/*)")
	}
	return &upload{name: header.Filename, family: family, data: data}, 0, nil
}

func requireFields(r *http.Request, names ...string) error {
	var missing []string
	for _, n := range names {
		if strings.TrimSpace(r.FormValue(n)) == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required", strings.Join(missing, ", "))
	}
	return nil
}

// openToken turns an extracted token into response data. A token that
// fails authentication is reported in-band rather than as an HTTP error.
func (s *Server) openToken(tok []byte) any {
	rec, err := s.sealer.Open(tok)
	if err != nil {
		return map[string]string{"error": "DECRYPTION FAILED"}
	}
	return rec
}

// sealAndEmbed seals rec and hides the token in the uploaded carrier,
// storing the result.
func (s *Server) sealAndEmbed(up *upload, rec token.Record, owner string) (*storedFile, int, error) {
	tok, err := s.sealer.Seal(rec)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	out, mimeType, err := embedCarrier(up.family, up.data, tok)
	if err != nil {
		return nil, statusFor(err), err
	}
	name := "stego_" + randomID() + extensionForMime(mimeType)
	return s.files.add(name, out, mimeType, owner, s.now()), 0, nil
}

func fileURL(id string) string {
	return "/api/files/" + id
}

// ── Health ──

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ── Auth ──

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.Role == "" {
		req.Role = config.RoleUser
	}
	if !config.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "unknown role "+req.Role)
		return
	}
	if req.Role == config.RoleAdmin {
		writeError(w, http.StatusForbidden, "admin accounts are provisioned in configuration")
		return
	}

	if err := s.users.register(req.Username, req.Password, req.Role); err != nil {
		if errors.Is(err, errUserExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.record(auditEntry{Username: req.Username, Action: actionRegister, Details: "role=" + req.Role})
	writeJSON(w, http.StatusCreated, map[string]string{"username": req.Username, "role": req.Role})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u, err := s.users.authenticate(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	tok, exp, err := s.auth.issue(u.Username, u.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.record(auditEntry{Username: u.Username, Action: actionLogin})
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"role":       u.Role,
		"expires_at": exp,
	})
}

// ── Codec ──

func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	up, status, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	if err := requireFields(r, "patient_id", "patient_name", "data"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := token.Record{
		PatientID:   r.FormValue("patient_id"),
		PatientName: r.FormValue("patient_name"),
		Message:     r.FormValue("data"),
		Sender:      p.Username,
		CreatedAt:   s.now().UTC(),
	}
	f, status, err := s.sealAndEmbed(up, rec, p.Username)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	s.record(auditEntry{Username: p.Username, Action: actionHide, PatientID: rec.PatientID, FileURL: fileURL(f.ID)})
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "hidden",
		"file_id":  f.ID,
		"file_url": fileURL(f.ID),
		"mime":     f.Mime,
	})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	up, status, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	tok, err := extractCarrier(up.family, up.data)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	s.record(auditEntry{Username: p.Username, Action: actionRetrieve, Details: "from uploaded file"})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "retrieved",
		"data":    s.openToken(tok),
	})
}

// ── Messaging ──

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	up, status, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	if err := requireFields(r, "recipient", "patient_id", "patient_name", "data"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recipient := strings.TrimSpace(r.FormValue("recipient"))
	if !s.users.exists(recipient) {
		writeError(w, http.StatusNotFound, "recipient not found")
		return
	}

	now := s.now().UTC()
	rec := token.Record{
		PatientID:   r.FormValue("patient_id"),
		PatientName: r.FormValue("patient_name"),
		Message:     r.FormValue("data"),
		Sender:      p.Username,
		Recipient:   recipient,
		CreatedAt:   now,
	}
	f, status, err := s.sealAndEmbed(up, rec, p.Username)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	m := &message{
		ID:        randomID(),
		Sender:    p.Username,
		Recipient: recipient,
		PatientID: rec.PatientID,
		FileID:    f.ID,
		FileURL:   fileURL(f.ID),
		FileType:  up.family,
		CreatedAt: now,
	}
	s.messages.add(m)
	s.record(auditEntry{Username: p.Username, Action: actionSend, PatientID: rec.PatientID, FileURL: m.FileURL, Details: "to " + recipient})

	delivered := s.hub.notify(recipient, "new_message", map[string]any{
		"id":         m.ID,
		"sender":     m.Sender,
		"file_url":   m.FileURL,
		"file_type":  m.FileType,
		"created_at": m.CreatedAt,
	})
	s.log.Debug().Str("recipient", recipient).Int("connections", delivered).Msg("message notification queued")

	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"messages": s.messages.inbox(p.Username)})
}

func (s *Server) handleSent(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"messages": s.messages.sent(p.Username)})
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	m, ok := s.messages.get(r.PathValue("id"))
	if !ok || m.Recipient != p.Username {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	f, ok := s.files.get(m.FileID)
	if !ok {
		writeError(w, http.StatusNotFound, "message file not found")
		return
	}

	tok, err := extractCarrier(m.FileType, f.Data)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	data := s.openToken(tok)

	now := s.now().UTC()
	s.messages.markDecrypted(m.ID, now)
	s.record(auditEntry{Username: p.Username, Action: actionDecrypt, PatientID: m.PatientID, Details: m.ID})
	s.hub.notify(m.Sender, "message_decrypted", map[string]any{"id": m.ID, "by": p.Username, "at": now})

	writeJSON(w, http.StatusOK, map[string]any{"data": data, "file_url": m.FileURL})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	f, ok := s.files.get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if f.Owner != p.Username && p.Role != config.RoleAdmin && !s.messages.delivered(f.ID, p.Username) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.Mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.Name))
	w.Write(f.Data)
}

// ── Audit ──

// record appends to the audit trail and mirrors the entry to the log.
func (s *Server) record(e auditEntry) {
	if e.Time.IsZero() {
		e.Time = s.now().UTC()
	}
	s.audit.add(e)
	s.log.Info().
		Str("audit", e.Action).
		Str("user", e.Username).
		Str("patient_id", e.PatientID).
		Str("file_url", e.FileURL).
		Msg("audit")
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	scope := p.Username
	if p.Role == config.RoleAdmin {
		scope = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": s.audit.list(scope, logLimit)})
}
