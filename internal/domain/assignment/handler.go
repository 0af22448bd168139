package assignment

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/domain/questionnaire"
	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/internal/platform/httpx"
	"github.com/medq/medq/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Participants – doctor, patient
	participant := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	participant.GET("/assignments", h.ListAssignments)
	participant.GET("/assignments/:id", h.GetAssignment)
	participant.POST("/assignments/:id/start", h.StartAssignment)
	participant.POST("/assignments/:id/finish", h.FinishAssignment)
	participant.GET("/assignments/:id/answers", h.ListAnswers)
	participant.GET("/answers/:assignment_id/:module_id/:question_id", h.GetAnswer)

	// Patient
	patient := api.Group("", auth.RequireRole(auth.RolePatient))
	patient.POST("/answers", h.SaveAnswer)

	// Doctor
	doctor := api.Group("", auth.RequireRole(auth.RoleDoctor))
	doctor.POST("/assignments", h.CreateAssignment)
	doctor.POST("/assignments/:id/archive", h.ArchiveAssignment)
	doctor.GET("/assignments/:id/modules/:module_id/score", h.ModuleScore)
	doctor.GET("/doctors/:id/patients", h.ListDoctorPatients)

	// Admin
	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.PUT("/assignments/:id/status", h.UpdateStatus)
}

type createAssignmentRequest struct {
	DoctorID        string `json:"id_doctor" validate:"omitempty,email"`
	PatientID       string `json:"id_patient" validate:"required,email"`
	QuestionnaireID int64  `json:"id_questionnaire" validate:"required,gt=0"`
}

type updateStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=draft in-progress finished archived"`
}

type saveAnswerRequest struct {
	AssignmentID int64   `json:"assignment_id" validate:"required,gt=0"`
	ModuleID     int64   `json:"module_id" validate:"required,gt=0"`
	QuestionID   int64   `json:"question_id" validate:"required,gt=0"`
	OptionID     *int64  `json:"option_id" validate:"omitempty,gt=0"`
	OpenAnswer   *string `json:"open_answer"`
}

var errForbidden = echo.NewHTTPError(http.StatusForbidden, "not a participant of this assignment")

// load fetches an assignment the caller takes part in. Admins see all.
func (h *Handler) load(c echo.Context, param string) (*Assignment, error) {
	id, err := httpx.ParamID(c, param)
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetAssignment(ctx, id)
	if err != nil {
		return nil, httpx.Error(err)
	}
	if !auth.CanActAs(ctx, a.DoctorID) && !auth.CanActAs(ctx, a.PatientID) {
		return nil, errForbidden
	}
	return a, nil
}

// lifecycleError renders an incomplete finish with the list of unanswered
// questions so clients can point the patient at them.
func lifecycleError(err error) error {
	var incomplete *IncompleteAssignmentError
	if errors.As(err, &incomplete) {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]any{
			"message": ErrIncompleteAssignment.Error(),
			"missing": incomplete.Missing,
		})
	}
	return httpx.Error(err)
}

// -- Assignment Handlers --

func (h *Handler) CreateAssignment(c echo.Context) error {
	var req createAssignmentRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	ctx := c.Request().Context()
	if req.DoctorID == "" {
		req.DoctorID = auth.UserIDFromContext(ctx)
	}
	if !auth.CanActAs(ctx, req.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "doctors may only assign as themselves")
	}
	a, err := h.svc.CreateAssignment(ctx, AssignmentInput{
		DoctorID:        req.DoctorID,
		PatientID:       req.PatientID,
		QuestionnaireID: req.QuestionnaireID,
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAssignment(c echo.Context) error {
	a, err := h.load(c, "id")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAssignments(c echo.Context) error {
	ctx := c.Request().Context()
	f := ListFilter{
		DoctorID:  c.QueryParam("doctor_id"),
		PatientID: c.QueryParam("patient_id"),
	}
	if v, ok := c.QueryParams()["status"]; ok {
		s := Status(v[0])
		f.Status = &s
	}

	if !auth.IsAdmin(ctx) {
		self := auth.UserIDFromContext(ctx)
		switch {
		case auth.HasRole(ctx, auth.RoleDoctor):
			if f.DoctorID != "" && f.DoctorID != self {
				return echo.NewHTTPError(http.StatusForbidden, "doctors may only list their own assignments")
			}
			f.DoctorID = self
		default:
			if f.PatientID != "" && f.PatientID != self {
				return echo.NewHTTPError(http.StatusForbidden, "patients may only list their own assignments")
			}
			f.PatientID = self
		}
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAssignments(ctx, f, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	if items == nil {
		items = []*Assignment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) StartAssignment(c echo.Context) error {
	a, err := h.load(c, "id")
	if err != nil {
		return err
	}
	a, err = h.svc.StartAssignment(c.Request().Context(), a.ID)
	if err != nil {
		return lifecycleError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) FinishAssignment(c echo.Context) error {
	a, err := h.load(c, "id")
	if err != nil {
		return err
	}
	a, err = h.svc.FinishAssignment(c.Request().Context(), a.ID)
	if err != nil {
		return lifecycleError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ArchiveAssignment(c echo.Context) error {
	a, err := h.load(c, "id")
	if err != nil {
		return err
	}
	a, err = h.svc.ArchiveAssignment(c.Request().Context(), a.ID)
	if err != nil {
		return lifecycleError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListDoctorPatients(c echo.Context) error {
	ctx := c.Request().Context()
	doctorID := c.Param("id")
	if !auth.CanActAs(ctx, doctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "doctors may only list their own patients")
	}
	patients, err := h.svc.ListDoctorPatients(ctx, doctorID)
	if err != nil {
		return httpx.Error(err)
	}
	if patients == nil {
		patients = []string{}
	}
	return c.JSON(http.StatusOK, patients)
}

// -- Answer Handlers --

func (h *Handler) SaveAnswer(c echo.Context) error {
	var req saveAnswerRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetAssignment(ctx, req.AssignmentID)
	if err != nil {
		return httpx.Error(err)
	}
	if !auth.CanActAs(ctx, a.PatientID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the assigned patient may answer")
	}
	ans, err := h.svc.SaveAnswer(ctx, AnswerInput{
		AssignmentID: req.AssignmentID,
		ModuleID:     req.ModuleID,
		QuestionID:   req.QuestionID,
		OptionID:     req.OptionID,
		OpenAnswer:   req.OpenAnswer,
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, ans)
}

func (h *Handler) GetAnswer(c echo.Context) error {
	a, err := h.load(c, "assignment_id")
	if err != nil {
		return err
	}
	moduleID, err := httpx.ParamID(c, "module_id")
	if err != nil {
		return err
	}
	questionID, err := httpx.ParamID(c, "question_id")
	if err != nil {
		return err
	}
	ans, err := h.svc.GetAnswer(c.Request().Context(), a.ID,
		questionnaire.QuestionKey{ModuleID: moduleID, QuestionID: questionID})
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, ans)
}

func (h *Handler) ListAnswers(c echo.Context) error {
	a, err := h.load(c, "id")
	if err != nil {
		return err
	}
	answers, err := h.svc.ListAnswers(c.Request().Context(), a.ID)
	if err != nil {
		return httpx.Error(err)
	}
	if answers == nil {
		answers = []*Answer{}
	}
	return c.JSON(http.StatusOK, answers)
}

func (h *Handler) ModuleScore(c echo.Context) error {
	a, err := h.load(c, "id")
	if err != nil {
		return err
	}
	moduleID, err := httpx.ParamID(c, "module_id")
	if err != nil {
		return err
	}
	score, err := h.svc.ModuleScore(c.Request().Context(), a.ID, moduleID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"assignment_id": a.ID,
		"module_id":     moduleID,
		"score":         score,
	})
}
