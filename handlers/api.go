package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
	"github.com/sirupsen/logrus"

	"neurallog/apperr"
	"neurallog/i18n"
	"neurallog/logging"
	"neurallog/models"
	"neurallog/services"
)

// Message keys raised by the HTTP layer itself.
const (
	MsgInvalidRequestBody  = "InvalidRequestBody"
	MsgInvalidActivityID   = "InvalidActivityID"
	MsgInvalidUserID       = "InvalidUserID"
	MsgInvalidCaptcha      = "InvalidCaptcha"
	MsgTooManyAttempts     = "TooManyAttempts"
	MsgAdminAccessRequired = "AdminAccessRequired"
	MsgNotFound            = "NotFound"
	MsgMethodNotAllowed    = "MethodNotAllowed"
)

const maxBodyBytes = 1 << 20

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logging.HTTP().WithError(err).Warn("encode response")
	}
}

// writeMessage sends a failure body with key translated for the caller.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, key string) {
	sendJSONResponse(w, status, APIResponse{Success: false, Message: i18n.T(i18n.DetectLanguage(r), key)})
}

// writeError maps err to its status and translated message. Internal
// errors are logged and their details withheld.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logging.HTTP().WithFields(logrus.Fields{
			"request_id": requestID(r),
			"method":     r.Method,
			"path":       r.URL.Path,
			"user_id":    identity(r).UserID,
		}).WithError(err).Error("internal error")
	}
	writeMessage(w, r, apperr.HTTPStatus(err), apperr.MessageOf(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.KindValidation, MsgInvalidRequestBody, err)
	}
	return nil
}

func pathID(r *http.Request, name, msg string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindValidation, msg, err)
	}
	return id, nil
}

func (s *Server) CurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, identity(r))
}

func (s *Server) ListActivitiesHandler(w http.ResponseWriter, r *http.Request) {
	activities, err := s.activities.List(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, activities)
}

func (s *Server) CreateActivityHandler(w http.ResponseWriter, r *http.Request) {
	var input models.NewActivity
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.activities.Create(r.Context(), identity(r), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

func (s *Server) DeleteActivityHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", MsgInvalidActivityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.activities.Delete(r.Context(), identity(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Success: true})
}

func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.reports.Stats(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, st)
}

func (s *Server) MilestoneHandler(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindValidation, services.MsgInvalidMilestoneDay, err))
		return
	}
	insights, err := s.reports.Milestone(r.Context(), identity(r), day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, insights)
}

func (s *Server) MilestoneHistoryHandler(w http.ResponseWriter, r *http.Request) {
	milestones, err := s.reports.Milestones(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, milestones)
}

func (s *Server) ExportHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.exporter.Export(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", services.ExportContentType)
	w.Header().Set("Content-Disposition", "attachment; filename=\""+filepath.Base(out.Name)+"\"")
	http.ServeFile(w, r, out.Path)
}

func (s *Server) CSRFTokenHandler(w http.ResponseWriter, r *http.Request) {
	sendJSONResponse(w, http.StatusOK, map[string]string{"csrf_token": csrf.Token(r)})
}

func (s *Server) NewCaptchaHandler(w http.ResponseWriter, r *http.Request) {
	id := captcha.New()
	sendJSONResponse(w, http.StatusOK, map[string]string{
		"captcha_id": id,
		"image_url":  "/captcha/" + id + ".png",
	})
}
