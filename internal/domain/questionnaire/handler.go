package questionnaire

import (
	"net/http"

	"github.com/labstack/echo/v4"

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
	// Read endpoints – doctor, patient
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	readGroup.GET("/questionnaires/:id", h.GetQuestionnaire)
	readGroup.GET("/questionnaires/:id/modules", h.ListQuestionnaireModules)
	readGroup.GET("/modules/:id", h.GetModule)
	readGroup.GET("/modules/:id/questions", h.GetModuleQuestions)
	readGroup.GET("/modules/:id/questions/:question_id", h.GetQuestion)

	// Authoring endpoints – doctor
	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	writeGroup.GET("/questionnaires", h.ListQuestionnaires)
	writeGroup.POST("/questionnaires", h.CreateQuestionnaire)
	writeGroup.GET("/modules", h.ListModules)
	writeGroup.POST("/modules", h.CreateModule)
	writeGroup.POST("/modules/:id/questions", h.AddQuestion)
	writeGroup.POST("/modules/:id/questions/:question_id/options", h.AddOption)
	writeGroup.POST("/outputs", h.CreateOutput)
	writeGroup.GET("/outputs/:id", h.GetOutput)
	writeGroup.POST("/modules/:id/outputs", h.AttachModuleOutput)
	writeGroup.POST("/modules/:id/questions/:question_id/outputs", h.AttachQuestionOutput)
}

type createQuestionnaireRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
	Modules     []int64 `json:"modules"`
}

type createModuleRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
}

type addQuestionRequest struct {
	Content  string `json:"content" validate:"required"`
	Position int    `json:"position" validate:"gte=0"`
}

type addOptionRequest struct {
	Content string `json:"content" validate:"required"`
	Score   int    `json:"score"`
}

type createOutputRequest struct {
	Text           string        `json:"text" validate:"required"`
	ConditionType  ConditionType `json:"condition_type" validate:"required,oneof=GREATER GREATER_EQUAL LESS LESS_EQUAL EQUAL NOT_EQUAL"`
	ConditionValue int           `json:"condition_value"`
}

type attachOutputRequest struct {
	OutputID int64 `json:"output_id" validate:"required,gt=0"`
}

func createdBy(c echo.Context) *string {
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return &uid
	}
	return nil
}

func questionKey(c echo.Context) (QuestionKey, error) {
	moduleID, err := httpx.ParamID(c, "id")
	if err != nil {
		return QuestionKey{}, err
	}
	questionID, err := httpx.ParamID(c, "question_id")
	if err != nil {
		return QuestionKey{}, err
	}
	return QuestionKey{ModuleID: moduleID, QuestionID: questionID}, nil
}

// -- Questionnaire Handlers --

func (h *Handler) CreateQuestionnaire(c echo.Context) error {
	var req createQuestionnaireRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	q := &Questionnaire{Title: req.Title, Description: req.Description, CreatedBy: createdBy(c)}
	if err := h.svc.CreateQuestionnaire(c.Request().Context(), q, req.Modules); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) GetQuestionnaire(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	q, err := h.svc.GetQuestionnaire(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) ListQuestionnaires(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListQuestionnaires(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

func (h *Handler) ListQuestionnaireModules(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	modules, err := h.svc.ListQuestionnaireModules(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	if modules == nil {
		modules = []*Module{}
	}
	return c.JSON(http.StatusOK, modules)
}

// -- Module Handlers --

func (h *Handler) CreateModule(c echo.Context) error {
	var req createModuleRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	m := &Module{Title: req.Title, Description: req.Description, CreatedBy: createdBy(c)}
	if err := h.svc.CreateModule(c.Request().Context(), m); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetModule(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	m, err := h.svc.GetModule(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListModules(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListModules(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Request().URL))
}

// -- Question Handlers --

func (h *Handler) GetModuleQuestions(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	questions, err := h.svc.GetModuleQuestions(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	if questions == nil {
		questions = []*Question{}
	}
	return c.JSON(http.StatusOK, questions)
}

func (h *Handler) GetQuestion(c echo.Context) error {
	key, err := questionKey(c)
	if err != nil {
		return err
	}
	q, err := h.svc.GetQuestion(c.Request().Context(), key)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) AddQuestion(c echo.Context) error {
	moduleID, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req addQuestionRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	q := &Question{ModuleID: moduleID, Content: req.Content, Position: req.Position}
	if err := h.svc.AddQuestion(c.Request().Context(), q); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) AddOption(c echo.Context) error {
	key, err := questionKey(c)
	if err != nil {
		return err
	}
	var req addOptionRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	o := &OptionAnswer{QuestionID: key.QuestionID, ModuleID: key.ModuleID, Content: req.Content, Score: req.Score}
	if err := h.svc.AddOption(c.Request().Context(), o); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, o)
}

// -- Output Handlers --

func (h *Handler) CreateOutput(c echo.Context) error {
	var req createOutputRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	o := &Output{Text: req.Text, ConditionType: req.ConditionType, ConditionValue: req.ConditionValue}
	if err := h.svc.CreateOutput(c.Request().Context(), o); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOutput(c echo.Context) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	o, err := h.svc.GetOutput(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) AttachModuleOutput(c echo.Context) error {
	moduleID, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}
	var req attachOutputRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	if err := h.svc.AttachModuleOutput(c.Request().Context(), moduleID, req.OutputID); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AttachQuestionOutput(c echo.Context) error {
	key, err := questionKey(c)
	if err != nil {
		return err
	}
	var req attachOutputRequest
	if err := httpx.Bind(c, &req); err != nil {
		return httpx.Error(err)
	}
	if err := h.svc.AttachQuestionOutput(c.Request().Context(), key, req.OutputID); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}
