package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/anpetrov/filegate/internal/common"
	"github.com/anpetrov/filegate/internal/server/models"
	"github.com/anpetrov/filegate/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

// userUpdateRequest keeps is_admin as a pointer so an omitted flag is not
// mistaken for an explicit demotion.
type userUpdateRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	IsAdmin  *bool  `json:"is_admin"`
	Rev      string `json:"_rev"`
}

type createFileRequest struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type createFileResponse struct {
	File      *models.File `json:"file"`
	UploadURL string       `json:"upload_url"`
}

type downloadResponse struct {
	URL string `json:"url"`
}

var errBadRequest = errors.New("bad request")

// parseID extracts the numeric path id. Non-numeric ids cannot name any row,
// so they map to not found.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, common.ErrorNotFound
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest
	}
	return nil
}

// Password digests participate in the revision hash but never leave the
// server. The omitempty tag drops the blanked field from responses.

func scrubServer(s *models.Server) *models.Server {
	s.Password = ""
	return s
}

func scrubServers(list []*models.Server) []*models.Server {
	for _, s := range list {
		s.Password = ""
	}
	return list
}

func scrubUser(u *models.User) *models.User {
	u.Password = ""
	return u
}

func scrubUsers(list []*models.User) []*models.User {
	for _, u := range list {
		u.Password = ""
	}
	return list
}

// --- servers ---

func (s *Server) handleServerRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid JSON body"})
		return
	}

	server, err := s.servers.Register(r.Context(), req.Name, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scrubServer(server))
}

func (s *Server) handleServerLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid JSON body"})
		return
	}

	signed, err := s.servers.Authenticate(r.Context(), req.Name, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func (s *Server) handleServerToken(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	signed, err := s.servers.RetrieveToken(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func (s *Server) handleServerList(w http.ResponseWriter, r *http.Request) {
	list, err := s.servers.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scrubServers(list))
}

func (s *Server) handleServerGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	server, err := s.servers.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scrubServer(server))
}

func (s *Server) handleServerUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var update models.Server
	if err := decode(r, &update); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid JSON body"})
		return
	}

	server, err := s.servers.Update(r.Context(), id, &update, update.Rev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scrubServer(server))
}

func (s *Server) handleServerDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.servers.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- users ---

func (s *Server) handleUserRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid JSON body"})
		return
	}

	user, err := s.users.Register(r.Context(), req.Name, req.Password, req.IsAdmin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, scrubUser(user))
}

func (s *Server) handleUserLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid JSON body"})
		return
	}

	signed, err := s.users.Authenticate(r.Context(), req.Name, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	list, err := s.users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scrubUsers(list))
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scrubUser(user))
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req userUpdateRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid JSON body"})
		return
	}

	update := services.UserUpdate{Name: req.Name, Password: req.Password, IsAdmin: req.IsAdmin}
	user, err := s.users.Update(r.Context(), id, update, req.Rev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scrubUser(user))
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- files ---

// fileForOwner fetches id and hides rows that belong to another server.
func (s *Server) fileForOwner(r *http.Request, id int64) (*models.File, error) {
	serverID, ok := ownerIDFromContext(r.Context())
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	file, err := s.files.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if file.ServerID != serverID {
		return nil, common.ErrorNotFound
	}
	return file, nil
}

func (s *Server) handleFileCreate(w http.ResponseWriter, r *http.Request) {
	serverID, ok := ownerIDFromContext(r.Context())
	if !ok {
		s.writeError(w, r, common.ErrorUnauthorized)
		return
	}

	var req createFileRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid JSON body"})
		return
	}

	file, uploadURL, err := s.files.Create(r.Context(), serverID, req.Name, req.Size, req.ContentType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createFileResponse{File: file, UploadURL: uploadURL})
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	serverID, ok := ownerIDFromContext(r.Context())
	if !ok {
		s.writeError(w, r, common.ErrorUnauthorized)
		return
	}

	list, err := s.files.ListByServer(r.Context(), serverID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleFileGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	file, err := s.fileForOwner(r, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.fileForOwner(r, id); err != nil {
		s.writeError(w, r, err)
		return
	}

	url, err := s.files.DownloadURL(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadResponse{URL: url})
}

func (s *Server) handleFileUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.fileForOwner(r, id); err != nil {
		s.writeError(w, r, err)
		return
	}

	var update models.File
	if err := decode(r, &update); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: "invalid JSON body"})
		return
	}

	file, err := s.files.Update(r.Context(), id, &update, update.Rev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.fileForOwner(r, id); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.files.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
