package assignment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medq/medq/internal/domain/questionnaire"
	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/internal/platform/httpx"
)

const (
	doctorEmail  = "house@example.com"
	patientEmail = "pat@example.com"
)

func newTestHandler() (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv()
	e := echo.New()
	e.Validator = httpx.NewValidator()
	e.JSONSerializer = httpx.JSONSerializer{}
	return NewHandler(env.svc), env, e
}

func request(method, body, user string, roles ...string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req.WithContext(auth.WithUser(req.Context(), user, roles))
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func expectStatus(t *testing.T, err error, want int) {
	t.Helper()
	if got := statusOf(t, err); got != want {
		t.Errorf("expected %d, got %d", want, got)
	}
}

func expectBody(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("expected body to contain %s, got %s", want, rec.Body.String())
	}
}

func idParam(c echo.Context, id int64) {
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(id, 10))
}

func TestHandler_CreateAssignment_DefaultsDoctorToCaller(t *testing.T) {
	h, _, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodPost, `{"id_patient":"pat@example.com","id_questionnaire":1}`, doctorEmail, auth.RoleDoctor), rec)

	if err := h.CreateAssignment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	expectBody(t, rec, `"id_doctor":"house@example.com"`)
}

func TestHandler_CreateAssignment_OtherDoctorForbidden(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"id_doctor":"wilson@example.com","id_patient":"pat@example.com","id_questionnaire":1}`
	c := e.NewContext(request(http.MethodPost, body, doctorEmail, auth.RoleDoctor), httptest.NewRecorder())

	expectStatus(t, h.CreateAssignment(c), http.StatusForbidden)
}

func TestHandler_CreateAssignment_BadRequest(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(request(http.MethodPost, `{"id_patient":"not-an-email"}`, doctorEmail, auth.RoleDoctor), httptest.NewRecorder())

	expectStatus(t, h.CreateAssignment(c), http.StatusBadRequest)
}

func TestHandler_GetAssignment(t *testing.T) {
	h, env, e := newTestHandler()
	a := env.assign(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "", patientEmail, auth.RolePatient), rec)
	idParam(c, a.ID)
	if err := h.GetAssignment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(request(http.MethodGet, "", "stranger@example.com", auth.RolePatient), httptest.NewRecorder())
	idParam(c, a.ID)
	expectStatus(t, h.GetAssignment(c), http.StatusForbidden)

	c = e.NewContext(request(http.MethodGet, "", patientEmail, auth.RolePatient), httptest.NewRecorder())
	idParam(c, 999)
	expectStatus(t, h.GetAssignment(c), http.StatusNotFound)

	c = e.NewContext(request(http.MethodGet, "", patientEmail, auth.RolePatient), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("abc")
	expectStatus(t, h.GetAssignment(c), http.StatusBadRequest)
}

func TestHandler_ListAssignments_ScopedToCaller(t *testing.T) {
	h, env, e := newTestHandler()
	env.assign(t)
	if _, err := env.svc.CreateAssignment(context.Background(), AssignmentInput{
		DoctorID: "wilson@example.com", PatientID: "other@example.com", QuestionnaireID: 1,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "", patientEmail, auth.RolePatient), rec)
	if err := h.ListAssignments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectBody(t, rec, `"total":1`)
	if strings.Contains(rec.Body.String(), "other@example.com") {
		t.Error("expected other patient's assignment to be hidden")
	}

	req := request(http.MethodGet, "", doctorEmail, auth.RoleDoctor)
	req.URL.RawQuery = "doctor_id=wilson@example.com"
	c = e.NewContext(req, httptest.NewRecorder())
	expectStatus(t, h.ListAssignments(c), http.StatusForbidden)
}

func TestHandler_ListAssignments_AdminSeesAll(t *testing.T) {
	h, env, e := newTestHandler()
	env.assign(t)
	env.assign(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "", "root@example.com", auth.RoleAdmin), rec)
	if err := h.ListAssignments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectBody(t, rec, `"total":2`)
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, env, e := newTestHandler()
	a := env.assign(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodPut, `{"status":"in-progress"}`, "root@example.com", auth.RoleAdmin), rec)
	idParam(c, a.ID)
	if err := h.UpdateStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectBody(t, rec, `"status":"in-progress"`)

	c = e.NewContext(request(http.MethodPut, `{"status":"completed"}`, "root@example.com", auth.RoleAdmin), httptest.NewRecorder())
	idParam(c, a.ID)
	expectStatus(t, h.UpdateStatus(c), http.StatusBadRequest)
}

func TestHandler_SaveAnswer(t *testing.T) {
	h, env, e := newTestHandler()
	a := env.assign(t)
	body := `{"assignment_id":` + strconv.FormatInt(a.ID, 10) + `,"module_id":10,"question_id":1,"option_id":100}`

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodPost, body, patientEmail, auth.RolePatient), rec)
	if err := h.SaveAnswer(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	expectBody(t, rec, `"option_score":3`)

	c = e.NewContext(request(http.MethodPost, body, "stranger@example.com", auth.RolePatient), httptest.NewRecorder())
	expectStatus(t, h.SaveAnswer(c), http.StatusForbidden)
}

func TestHandler_SaveAnswer_Errors(t *testing.T) {
	h, env, e := newTestHandler()
	a := env.assign(t)
	id := strconv.FormatInt(a.ID, 10)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty answer", `{"assignment_id":` + id + `,"module_id":10,"question_id":1}`, http.StatusBadRequest},
		{"missing ids", `{"option_id":100}`, http.StatusBadRequest},
		{"unknown assignment", `{"assignment_id":999,"module_id":10,"question_id":1,"option_id":100}`, http.StatusNotFound},
		{"unknown question", `{"assignment_id":` + id + `,"module_id":10,"question_id":9,"option_id":100}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(request(http.MethodPost, tt.body, patientEmail, auth.RolePatient), httptest.NewRecorder())
			expectStatus(t, h.SaveAnswer(c), tt.want)
		})
	}
}

func TestHandler_FinishAssignment(t *testing.T) {
	h, env, e := newTestHandler()
	ctx := context.Background()
	a := env.assign(t)
	if _, err := env.svc.SaveAnswer(ctx, answerQ1(a.ID, 100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := e.NewContext(request(http.MethodPost, "", patientEmail, auth.RolePatient), httptest.NewRecorder())
	idParam(c, a.ID)
	err := h.FinishAssignment(c)
	if got := statusOf(t, err); got != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", got)
	}
	msg, ok := err.(*echo.HTTPError).Message.(map[string]any)
	if !ok {
		t.Fatalf("expected map message, got %T", err.(*echo.HTTPError).Message)
	}
	missing, ok := msg["missing"].([]questionnaire.QuestionKey)
	if !ok || len(missing) != 1 {
		t.Errorf("expected one missing question, got %#v", msg["missing"])
	}

	if _, err := env.svc.SaveAnswer(ctx, answerQ2(a.ID, "fine")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(request(http.MethodPost, "", patientEmail, auth.RolePatient), rec)
	idParam(c, a.ID)
	if err := h.FinishAssignment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectBody(t, rec, `"status":"finished"`)

	c = e.NewContext(request(http.MethodPost, "", patientEmail, auth.RolePatient), httptest.NewRecorder())
	idParam(c, a.ID)
	expectStatus(t, h.FinishAssignment(c), http.StatusBadRequest)
}

func TestHandler_ModuleScore(t *testing.T) {
	h, env, e := newTestHandler()
	a := env.assign(t)
	if _, err := env.svc.SaveAnswer(context.Background(), answerQ1(a.ID, 100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "", doctorEmail, auth.RoleDoctor), rec)
	c.SetParamNames("id", "module_id")
	c.SetParamValues(strconv.FormatInt(a.ID, 10), "10")
	if err := h.ModuleScore(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectBody(t, rec, `"score":3`)
}

func TestHandler_GetAnswer(t *testing.T) {
	h, env, e := newTestHandler()
	a := env.assign(t)
	if _, err := env.svc.SaveAnswer(context.Background(), answerQ2(a.ID, "tired")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "", doctorEmail, auth.RoleDoctor), rec)
	c.SetParamNames("assignment_id", "module_id", "question_id")
	c.SetParamValues(strconv.FormatInt(a.ID, 10), "10", "2")
	if err := h.GetAnswer(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectBody(t, rec, `"open_answer":"tired"`)

	c = e.NewContext(request(http.MethodGet, "", doctorEmail, auth.RoleDoctor), httptest.NewRecorder())
	c.SetParamNames("assignment_id", "module_id", "question_id")
	c.SetParamValues(strconv.FormatInt(a.ID, 10), "10", "1")
	expectStatus(t, h.GetAnswer(c), http.StatusNotFound)
}

func TestHandler_ListDoctorPatients(t *testing.T) {
	h, env, e := newTestHandler()
	env.assign(t)

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "", doctorEmail, auth.RoleDoctor), rec)
	c.SetParamNames("id")
	c.SetParamValues(doctorEmail)
	if err := h.ListDoctorPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `["pat@example.com"]` {
		t.Errorf("expected [\"pat@example.com\"], got %s", got)
	}

	c = e.NewContext(request(http.MethodGet, "", doctorEmail, auth.RoleDoctor), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("wilson@example.com")
	expectStatus(t, h.ListDoctorPatients(c), http.StatusForbidden)
}
