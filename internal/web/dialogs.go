package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"evdialog/internal/capture"
	"evdialog/internal/dialog"
	"evdialog/internal/form"
	"evdialog/internal/ics"
	appLog "evdialog/internal/log"
	"evdialog/internal/model"
)

const maxImportBody = 1 << 20

type openRequest struct {
	EventID   string `json:"event_id"`
	MessageID string `json:"message_id"`
}

type actionRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type deleteRequest struct {
	Confirm bool `json:"confirm"`
	Cancel  bool `json:"cancel"`
}

type submitResponse struct {
	Outcome dialog.Outcome `json:"outcome"`
	View    dialog.View    `json:"view"`
}

type dialogHandler func(w http.ResponseWriter, r *http.Request, d *dialog.Dialog)

// withDialog resolves {id} to an open dialog.
func (s *Server) withDialog(h dialogHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.deps.Dialogs.Get(r.PathValue("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "dialog not found")
			return
		}
		h(w, r, d)
	}
}

// statusFor maps dialog errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dialog.ErrClosed):
		return http.StatusGone
	case errors.Is(err, dialog.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, dialog.ErrNoEvent),
		errors.Is(err, dialog.ErrDeleteNotConfirmed),
		errors.Is(err, dialog.ErrAttachmentIndex),
		errors.Is(err, form.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, dialog.ErrSubmitFailed),
		errors.Is(err, dialog.ErrDeleteFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxImportBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleOpenDialog(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p := dialog.Params{
		EventID:   req.EventID,
		MessageID: req.MessageID,
		Locale: form.Locale{
			DateLayout: s.cfg.DateLayout,
			Location:   s.cfg.Location(),
		},
		DefaultReminderMinutes: s.cfg.DefaultReminderMinutes,
		Now:                    s.deps.Now,
		Metrics:                s.deps.Metrics,
	}
	if s.deps.Agenda != nil {
		p.Callbacks.RefreshEvents = s.deps.Agenda.RefreshAsync
	}

	d, err := s.deps.Dialogs.Open(r.Context(), p)
	if err != nil {
		appLog.Error("open dialog failed", err, "event_id", req.EventID, "message_id", req.MessageID)
		writeError(w, http.StatusBadGateway, "failed to load event")
		return
	}
	writeJSON(w, http.StatusCreated, d.View())
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request, d *dialog.Dialog) {
	writeJSON(w, http.StatusOK, d.View())
}

func (s *Server) handleClose(w http.ResponseWriter, _ *http.Request, d *dialog.Dialog) {
	d.Close()
	w.WriteHeader(http.StatusNoContent)
}

// handleAction dispatches one edit in its textual form:
//
//	{"field": "startTime", "value": "09:30"}
//	{"field": "notification:0:periodType", "value": "Day"}
//	{"field": "reset"}
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) {
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a, err := form.ParseAction(req.Field, req.Value)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if _, err := d.Dispatch(a); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (s *Server) handleAllDay(w http.ResponseWriter, _ *http.Request, d *dialog.Dialog) {
	if _, _, err := d.ToggleAllDay(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (s *Server) handleSetAttachments(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) {
	var files []model.File
	if err := decodeBody(r, &files); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := d.SetAttachments(files); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (s *Server) handleRemoveAttachment(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment index")
		return
	}
	if err := d.RemoveAttachment(i); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// handleSubmit saves the draft. A conflict is a normal 200 answer with
// outcome "conflict"; the dialog stays open.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) {
	outcome, err := d.Submit(r.Context())
	if err != nil && !errors.Is(err, dialog.ErrSubmitFailed) {
		writeError(w, statusFor(err), err.Error())
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, submitResponse{Outcome: outcome, View: d.View()})
}

// handleDelete drives the two-step delete: {"confirm": false} asks for
// confirmation, {"confirm": true} deletes and {"cancel": true} backs out.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) {
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var err error
	switch {
	case req.Cancel:
		d.CancelDelete()
	case req.Confirm:
		err = d.ConfirmDelete(r.Context())
	default:
		err = d.RequestDelete()
	}

	if err != nil && !errors.Is(err, dialog.ErrDeleteFailed) {
		writeError(w, statusFor(err), err.Error())
		return
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	writeJSON(w, status, d.View())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) {
	if err := d.Reload(r.Context()); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

// handleExport downloads the current draft as an .ics file.
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request, d *dialog.Dialog) {
	payload, allDay := d.Payload()
	body, err := ics.ExportDraft(d.ID(), payload, allDay, s.deps.Now())
	if err != nil {
		if errors.Is(err, ics.ErrIncompleteDraft) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		appLog.Error("ics export failed", err, "dialog_id", d.ID())
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="event-%s.ics"`, d.ID()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// handleImport loads a calendar file into the draft. The file is either
// the request body or, with ?attachment=<file id>, one of the dialog's
// attachments.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) {
	var body []byte
	if fileID := r.URL.Query().Get("attachment"); fileID != "" {
		if s.deps.Fetcher == nil {
			writeError(w, http.StatusServiceUnavailable, "attachment import disabled")
			return
		}
		file, ok := d.Attachment(fileID)
		if !ok {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		res, err := s.deps.Fetcher.Fetch(r.Context(), file)
		if err != nil {
			appLog.Error("attachment fetch failed", err, "dialog_id", d.ID(), "file_id", fileID)
			writeError(w, http.StatusBadGateway, "failed to fetch attachment")
			return
		}
		body = res.Body
	} else {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxImportBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read body")
			return
		}
		body = b
	}

	ev, err := ics.FirstEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no importable event: "+err.Error())
		return
	}
	if _, _, err := d.Import(ev); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.View())
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, d *dialog.Dialog) {
	if s.deps.Previews == nil {
		writeError(w, http.StatusServiceUnavailable, "previews disabled")
		return
	}
	file, ok := d.Attachment(r.PathValue("fileID"))
	if !ok {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	path, err := s.deps.Previews.Path(r.Context(), file)
	if err != nil {
		if errors.Is(err, capture.ErrNoURL) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "preview failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}
