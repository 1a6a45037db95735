// Package api - HTTP-доступ к тем же сервисам, которыми пользуется бот.
// Слой тонкий: разбор запроса, вызов сервиса, перевод классов ошибок в
// коды ответа. Никакой логики расписания здесь нет.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aybykovskii/schedule-bot/errs"
	"github.com/aybykovskii/schedule-bot/export"
	"github.com/aybykovskii/schedule-bot/models"
	"github.com/aybykovskii/schedule-bot/service"
)

// Server - HTTP-сервер приложения
type Server struct {
	router   *mux.Router
	events   *service.Events
	drafts   *service.Drafts
	exporter *export.Exporter
	log      *zap.Logger
}

// New создает сервер и регистрирует маршруты
func New(events *service.Events, drafts *service.Drafts, exporter *export.Exporter, log *zap.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		events:   events,
		drafts:   drafts,
		exporter: exporter,
		log:      log.Named("api"),
	}
	s.routes()
	return s
}

// Handler возвращает корневой обработчик
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/export.ics", s.handleExport).Methods(http.MethodGet)

	s.router.HandleFunc("/events", s.handleCreateEvent).Methods(http.MethodPost)
	s.router.HandleFunc("/events", s.handleListEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/events/sweep", s.handleSweep).Methods(http.MethodPost)
	s.router.HandleFunc("/events/{id:[0-9]+}", s.handleGetEvent).Methods(http.MethodGet)
	s.router.HandleFunc("/events/{id:[0-9]+}", s.handleUpdateEvent).Methods(http.MethodPatch)
	s.router.HandleFunc("/events/{id:[0-9]+}", s.handleDeleteEvent).Methods(http.MethodDelete)
	s.router.HandleFunc("/events/{id:[0-9]+}/exceptions", s.handleAddException).Methods(http.MethodPost)

	s.router.HandleFunc("/availability/busy", s.handleBusyHours).Methods(http.MethodGet)
	s.router.HandleFunc("/availability/free", s.handleFreeHours).Methods(http.MethodGet)
	s.router.HandleFunc("/availability/periods", s.handlePeriods).Methods(http.MethodGet)

	s.router.HandleFunc("/drafts", s.handleStartDraft).Methods(http.MethodPost)
	s.router.HandleFunc("/drafts/{userID:[0-9]+}", s.handleGetDraft).Methods(http.MethodGet)
	s.router.HandleFunc("/drafts/{userID:[0-9]+}", s.handleUpdateDraft).Methods(http.MethodPatch)
	s.router.HandleFunc("/drafts/{userID:[0-9]+}", s.handleDeleteDraft).Methods(http.MethodDelete)
	s.router.HandleFunc("/drafts/{userID:[0-9]+}/commit", s.handleCommitDraft).Methods(http.MethodPost)
}

// eventJSON - проводное представление записи
type eventJSON struct {
	ID             int64    `json:"id"`
	UserID         int64    `json:"userId"`
	Name           string   `json:"name"`
	TG             string   `json:"tg"`
	Date           string   `json:"date"`
	Hour           *int     `json:"hour"`
	WeekDay        int      `json:"weekDay"`
	Period         string   `json:"period"`
	GoogleEventID  string   `json:"googleEventId,omitempty"`
	ExceptionDates []string `json:"exceptionDates"`
}

func toEventJSON(e *models.Event) eventJSON {
	exceptions := e.ExceptionDates
	if exceptions == nil {
		exceptions = []string{}
	}

	return eventJSON{
		ID:             e.ID,
		UserID:         e.UserID,
		Name:           e.Name,
		TG:             e.TG,
		Date:           e.Date,
		Hour:           e.Hour,
		WeekDay:        e.WeekDay,
		Period:         string(e.Period),
		GoogleEventID:  e.GoogleEventID,
		ExceptionDates: exceptions,
	}
}

// draftJSON - проводное представление черновика
type draftJSON struct {
	ID            string  `json:"id"`
	UserID        int64   `json:"userId"`
	Date          *string `json:"date"`
	Hour          *int    `json:"hour"`
	WeekDay       *int    `json:"weekDay"`
	Period        *string `json:"period"`
	UpdateEventID int64   `json:"updateEventId,omitempty"`
}

func toDraftJSON(d *models.EventDraft) draftJSON {
	out := draftJSON{
		ID:            d.ID,
		UserID:        d.UserID,
		Date:          d.Date,
		Hour:          d.Hour,
		WeekDay:       d.WeekDay,
		UpdateEventID: d.UpdateEventID,
	}
	if d.Period != nil {
		p := string(*d.Period)
		out.Period = &p
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	// лента собирается по всем пользователям: подписчик календаря -
	// преподаватель, ему нужно всё расписание
	events, err := s.events.GetAll(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}

	body, err := s.exporter.Export(events)
	if err != nil {
		s.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64  `json:"userId"`
		Name   string `json:"name"`
		TG     string `json:"tg"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	id, err := s.events.Create(r.Context(), req.UserID, req.Name, req.TG)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		s.respondError(w, errs.Client("параметр userId обязателен"))
		return
	}

	events, err := s.events.GetByUserID(r.Context(), userID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	out := make([]eventJSON, 0, len(events))
	for i := range events {
		out = append(out, toEventJSON(&events[i]))
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}

	event, err := s.events.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, toEventJSON(event))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name   *string `json:"name"`
		TG     *string `json:"tg"`
		Date   *string `json:"date"`
		Hour   *int    `json:"hour"`
		Period *string `json:"period"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	upd := models.EventUpdate{Name: req.Name, TG: req.TG, Date: req.Date, Hour: req.Hour}
	if req.Period != nil {
		period, err := models.ParsePeriod(*req.Period)
		if err != nil {
			s.respondError(w, err)
			return
		}
		upd.Period = &period
	}

	event, err := s.events.Update(r.Context(), id, upd)
	s.respondEvent(w, event, err)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}

	err := s.events.Delete(r.Context(), id)
	if err != nil && !errors.Is(err, errs.ErrSync) {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]bool{
		"deleted":     true,
		"syncPending": err != nil,
	})
}

func (s *Server) handleAddException(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	event, err := s.events.AddExceptionDate(r.Context(), id, req.Date)
	s.respondEvent(w, event, err)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	s.events.DeleteOutdated(r.Context())
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBusyHours(w http.ResponseWriter, r *http.Request) {
	date, period, ok := s.availabilityParams(w, r)
	if !ok {
		return
	}

	hours, err := s.events.GetDateBusyHours(r.Context(), date, period)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, hours)
}

func (s *Server) handleFreeHours(w http.ResponseWriter, r *http.Request) {
	date, period, ok := s.availabilityParams(w, r)
	if !ok {
		return
	}

	hours, err := s.events.GetFreeHours(r.Context(), date, period)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, hours)
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	hour, err := strconv.Atoi(r.URL.Query().Get("hour"))
	if err != nil {
		s.respondError(w, errs.Client("параметр hour обязателен"))
		return
	}

	periods, err := s.events.GetAvailablePeriods(r.Context(), date, hour)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, periods)
}

func (s *Server) handleStartDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        int64   `json:"userId"`
		Period        *string `json:"period"`
		UpdateEventID int64   `json:"updateEventId"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	seed := service.Seed{UpdateEventID: req.UpdateEventID}
	if req.Period != nil {
		period, err := models.ParsePeriod(*req.Period)
		if err != nil {
			s.respondError(w, err)
			return
		}
		seed.Period = &period
	}

	draft, err := s.drafts.Start(r.Context(), req.UserID, seed)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, toDraftJSON(draft))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "userID")
	if !ok {
		return
	}

	draft, err := s.drafts.GetByUserID(r.Context(), userID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, toDraftJSON(draft))
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "userID")
	if !ok {
		return
	}

	var req struct {
		Date *string `json:"date"`
		Hour *int    `json:"hour"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	draft, err := s.drafts.Update(r.Context(), userID, models.DraftUpdate{Date: req.Date, Hour: req.Hour})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, toDraftJSON(draft))
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := s.drafts.DeleteByUserID(r.Context(), userID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleCommitDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "userID")
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
		TG   string `json:"tg"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	event, err := s.drafts.Commit(r.Context(), userID, req.Name, req.TG)
	s.respondEvent(w, event, err)
}

func (s *Server) availabilityParams(w http.ResponseWriter, r *http.Request) (string, models.Period, bool) {
	date := r.URL.Query().Get("date")

	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.respondError(w, err)
		return "", "", false
	}

	return date, period, true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		s.respondError(w, errs.Client("некорректный идентификатор в пути"))
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, errs.Client("некорректное тело запроса: %v", err))
		return false
	}
	return true
}

// respondEvent отвечает зафиксированным событием. Ошибка синхронизации
// не отменяет фиксацию, поэтому отдаётся как предупреждение в успешном
// ответе.
func (s *Server) respondEvent(w http.ResponseWriter, event *models.Event, err error) {
	if err != nil && !errors.Is(err, errs.ErrSync) {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, map[string]any{
		"event":       toEventJSON(event),
		"syncPending": err != nil,
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("не удалось записать ответ", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrClient), errors.Is(err, errs.ErrDecoding):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.log.Error("внутренняя ошибка", zap.Error(err))
	}

	s.respond(w, status, map[string]string{"error": err.Error()})
}
