package http

import (
	"encoding/json"
	"net/http"

	"assessment-session-service/internal/app"
	"assessment-session-service/internal/domain"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	headerViewerID = "X-Viewer-Id"
	headerRole     = "X-Role"
)

// API serves the read-only views and authority actions over plain HTTP.
type API struct {
	service *app.AttemptService
	log     logrus.FieldLogger
}

func NewAPI(service *app.AttemptService, log logrus.FieldLogger) *API {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{service: service, log: log}
}

func (a *API) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/assessments", a.ListAssessmentsFunc).Methods(http.MethodGet)
	r.HandleFunc("/assessments/{id}/result", a.ResultFunc).Methods(http.MethodGet)
	r.HandleFunc("/assessments/{id}/attempts", a.AttemptsFunc).Methods(http.MethodGet)
	r.HandleFunc("/assessments/{id}/archive", a.ArchiveFunc).Methods(http.MethodPost)
}

// viewerFrom reads the identity established upstream. Both headers are required.
func viewerFrom(r *http.Request) (domain.Viewer, error) {
	id := r.Header.Get(headerViewerID)
	role, err := domain.ParseRole(r.Header.Get(headerRole))
	if err != nil {
		return domain.Viewer{}, err
	}
	if id == "" {
		return domain.Viewer{}, domain.ErrForbidden
	}
	return domain.Viewer{ID: id, Role: role}, nil
}

func (a *API) ListAssessmentsFunc(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	dashboard, err := a.service.Dashboard(viewer)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	cards, err := dashboard.Assessments(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

func (a *API) ResultFunc(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	result, err := a.service.ParticipantResult(r.Context(), viewer, mux.Vars(r)["id"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) AttemptsFunc(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	overview, err := a.service.AuthorityOverview(r.Context(), viewer, mux.Vars(r)["id"])
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (a *API) ArchiveFunc(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.service.Archive(r.Context(), viewer, mux.Vars(r)["id"]); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	f := describe(err)
	entry := a.log.WithError(err).WithField("path", r.URL.Path)
	if f.status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeJSON(w, f.status, errorPayload{Message: f.message, Redirect: f.redirect})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
