package handlers

import (
	"net/http"
)

func (s *Server) AdminListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, users)
}

func (s *Server) AdminDeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	target, err := pathID(r, "id", MsgInvalidUserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.admin.DeleteUser(r.Context(), identity(r), target); err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Success: true})
}

func (s *Server) AdminToggleAdminHandler(w http.ResponseWriter, r *http.Request) {
	target, err := pathID(r, "id", MsgInvalidUserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	isAdmin, err := s.admin.ToggleAdmin(r.Context(), identity(r), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]any{"success": true, "is_admin": isAdmin})
}

func (s *Server) AdminUserActivitiesHandler(w http.ResponseWriter, r *http.Request) {
	target, err := pathID(r, "id", MsgInvalidUserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activities, err := s.admin.UserActivities(r.Context(), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, activities)
}

func (s *Server) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.admin.SystemStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, st)
}
