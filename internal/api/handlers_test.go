package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yyds352/hospital-appointment/internal/appointment"
	"github.com/yyds352/hospital-appointment/internal/directory"
)

var testNow = time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	slots   *appointment.MemoryRegistry
	dept    uuid.UUID
	doctor  uuid.UUID
	patient uuid.UUID
}

func newTestServer(t *testing.T, checks ...Check) *testServer {
	t.Helper()
	dir := directory.NewMemory()
	ts := &testServer{
		slots:   appointment.NewMemoryRegistry(),
		dept:    uuid.New(),
		doctor:  uuid.New(),
		patient: uuid.New(),
	}
	dir.AddDepartment(appointment.Department{ID: ts.dept, Name: "Cardiology"})
	dir.AddDoctor(appointment.Doctor{ID: ts.doctor, Name: "Dr. Li", Title: "Attending", DepartmentID: ts.dept})
	dir.AddPatient(appointment.Patient{ID: ts.patient, Name: "Wang"})

	rules := appointment.DefaultRules()
	rules.Location = time.UTC
	clock := func() time.Time { return testNow }
	svc := appointment.NewService(appointment.Dependencies{
		Repo:        appointment.NewMemoryRepository(),
		Slots:       ts.slots,
		Departments: dir,
		Doctors:     dir,
		Patients:    dir,
	}, rules, zerolog.Nop(), appointment.WithClock(clock))

	ts.handler = NewRouter(RouterConfig{
		Service: svc,
		Checks:  checks,
		Logger:  zerolog.Nop(),
		Env:     "test",
		Now:     clock,
	})
	return ts
}

func (ts *testServer) slot(t *testing.T, day int, period appointment.Period, capacity int) {
	t.Helper()
	date := time.Date(2024, 6, day, 0, 0, 0, 0, time.UTC)
	if _, err := ts.slots.CreateSlot(context.Background(), ts.doctor, date, period, capacity); err != nil {
		t.Fatalf("create slot: %v", err)
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func (ts *testServer) book(t *testing.T, when time.Time) CreateAppointmentResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_id":       ts.patient.String(),
		"doctor_id":        ts.doctor.String(),
		"department_id":    ts.dept.String(),
		"appointment_time": when.Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /appointments = %d: %s", rec.Code, rec.Body.String())
	}
	return decode[CreateAppointmentResponse](t, rec)
}

func TestCreateAndFetchAppointment(t *testing.T) {
	ts := newTestServer(t)
	ts.slot(t, 3, appointment.PeriodMorning, 5)

	created := ts.book(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	if created.ConflictLevel != "NONE" || created.DoctorID != ts.doctor {
		t.Errorf("created = %+v", created)
	}
	if len(created.AppointmentNumber) != 13 || created.AppointmentNumber[:9] != "A20240601" {
		t.Errorf("appointment number = %q", created.AppointmentNumber)
	}

	rec := ts.do(t, http.MethodGet, "/appointments/"+created.AppointmentID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET = %d", rec.Code)
	}
	got := decode[AppointmentResponse](t, rec)
	if got.Status != "PENDING" || got.Period != "MORNING" || got.Number != created.AppointmentNumber {
		t.Errorf("fetched = %+v", got)
	}

	rec = ts.do(t, http.MethodGet, "/appointments?patient_id="+ts.patient.String(), nil)
	list := decode[[]AppointmentResponse](t, rec)
	if len(list) != 1 || list[0].ID != created.AppointmentID {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateAppointmentConflictCarriesSuggestions(t *testing.T) {
	ts := newTestServer(t)
	ts.slot(t, 3, appointment.PeriodMorning, 5)

	ts.book(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	second := ts.book(t, time.Date(2024, 6, 3, 9, 10, 0, 0, time.UTC))

	if second.ConflictLevel == "NONE" {
		t.Fatalf("second booking should be in conflict: %+v", second)
	}
	if len(second.Analysis.PatientConflicts) != 1 || second.Analysis.PatientConflicts[0].GapMinutes != 10 {
		t.Errorf("patient conflicts = %+v", second.Analysis.PatientConflicts)
	}
	if second.Suggestions == nil {
		t.Error("conflicting booking should carry suggestions")
	}
}

func TestCreateAppointmentErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.slot(t, 3, appointment.PeriodMorning, 1)
	ts.book(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))

	other := uuid.New().String()
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing patient", map[string]any{"department_id": ts.dept.String(), "appointment_time": "2024-06-03T10:00:00Z"}, http.StatusBadRequest},
		{"bad uuid", map[string]any{"patient_id": "nope"}, http.StatusBadRequest},
		{"past time", map[string]any{"patient_id": ts.patient.String(), "department_id": ts.dept.String(), "appointment_time": "2024-05-30T09:00:00Z"}, http.StatusBadRequest},
		{"lunch break", map[string]any{"patient_id": ts.patient.String(), "department_id": ts.dept.String(), "appointment_time": "2024-06-03T12:30:00Z"}, http.StatusBadRequest},
		{"unknown patient", map[string]any{"patient_id": other, "department_id": ts.dept.String(), "appointment_time": "2024-06-03T10:00:00Z"}, http.StatusNotFound},
		{"slot full", map[string]any{"patient_id": ts.patient.String(), "doctor_id": ts.doctor.String(), "department_id": ts.dept.String(), "appointment_time": "2024-06-03T11:00:00Z"}, http.StatusConflict},
		{"no slot", map[string]any{"patient_id": ts.patient.String(), "doctor_id": ts.doctor.String(), "department_id": ts.dept.String(), "appointment_time": "2024-06-04T09:00:00Z"}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/appointments", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if resp := decode[ErrorResponse](t, rec); resp.Error == "" {
				t.Error("error body has no code")
			}
		})
	}

	rec := ts.do(t, http.MethodPost, "/appointments", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d", rec.Code)
	}
}

func TestStatusTransitions(t *testing.T) {
	ts := newTestServer(t)
	ts.slot(t, 3, appointment.PeriodMorning, 2)
	id := ts.book(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)).AppointmentID.String()

	rec := ts.do(t, http.MethodPost, "/appointments/"+id+"/confirm", nil)
	if rec.Code != http.StatusOK || decode[AppointmentResponse](t, rec).Status != "CONFIRMED" {
		t.Fatalf("confirm = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPut, "/appointments/"+id+"/status", map[string]string{"status": "CANCELLED"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel via PUT = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/availability?doctor_id="+ts.doctor.String()+"&date=2024-06-03&period=MORNING", nil)
	if avail := decode[AvailabilityResponse](t, rec); avail.AvailableCount != 2 {
		t.Errorf("capacity after cancel = %d, want 2", avail.AvailableCount)
	}

	rec = ts.do(t, http.MethodPost, "/appointments/"+id+"/complete", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("complete after cancel = %d, want 409", rec.Code)
	}

	rec = ts.do(t, http.MethodPut, "/appointments/"+id+"/status", map[string]string{"status": "LOST"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/appointments/"+uuid.NewString()+"/cancel", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cancel unknown = %d, want 404", rec.Code)
	}
}

func TestAvailabilityAndSlotAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/slots", map[string]any{
		"doctor_id": ts.doctor.String(), "date": "2024-06-03", "period": "AFTERNOON", "max_capacity": 4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /slots = %d: %s", rec.Code, rec.Body.String())
	}
	if slot := decode[SlotResponse](t, rec); slot.AvailableCapacity != 4 || slot.Congestion != "LOW" {
		t.Errorf("slot = %+v", slot)
	}

	rec = ts.do(t, http.MethodPost, "/slots", map[string]any{
		"doctor_id": ts.doctor.String(), "date": "2024-06-03", "period": "AFTERNOON", "max_capacity": 4,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate slot = %d, want 409", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/availability?department_id="+ts.dept.String()+"&date=2024-06-03&period=AFTERNOON", nil)
	avail := decode[AvailabilityResponse](t, rec)
	if !avail.Available || avail.MaxCapacity != 4 || avail.DepartmentID == nil || *avail.DepartmentID != ts.dept {
		t.Errorf("availability = %+v", avail)
	}

	rec = ts.do(t, http.MethodPut, "/slots/status", map[string]any{
		"doctor_id": ts.doctor.String(), "date": "2024-06-03", "period": "AFTERNOON", "status": "SUSPENDED",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("suspend = %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/availability?doctor_id="+ts.doctor.String()+"&date=2024-06-03&period=AFTERNOON", nil)
	if avail := decode[AvailabilityResponse](t, rec); avail.Available || avail.Congestion != "FULL" {
		t.Errorf("suspended availability = %+v", avail)
	}

	rec = ts.do(t, http.MethodGet, "/availability?doctor_id="+ts.doctor.String()+"&date=2024-06-03&period=NIGHT", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad period = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/doctors/"+ts.doctor.String()+"/slots", nil)
	slots := decode[[]SlotResponse](t, rec)
	if len(slots) != 1 || slots[0].Status != "SUSPENDED" {
		t.Errorf("slots = %+v", slots)
	}
}

func TestConflictQueriesAndSuggestions(t *testing.T) {
	ts := newTestServer(t)
	ts.slot(t, 3, appointment.PeriodMorning, 5)
	created := ts.book(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/conflicts?patient_id=%s&doctor_id=%s&time=2024-06-03T09:20:00Z", ts.patient, ts.doctor), nil)
	analysis := decode[AnalysisResponse](t, rec)
	if analysis.Risk == "NONE" || len(analysis.PatientConflicts) != 1 || analysis.Suggestions == nil {
		t.Errorf("analysis = %+v", analysis)
	}

	rec = ts.do(t, http.MethodGet, "/conflicts?patient_id="+ts.patient.String(), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing doctor = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/appointments/"+created.AppointmentID.String()+"/conflicts", nil)
	if own := decode[AnalysisResponse](t, rec); own.Risk != "NONE" || !own.SlotAvailable {
		t.Errorf("self check = %+v", own)
	}

	rec = ts.do(t, http.MethodGet, "/patients/"+ts.patient.String()+"/conflicts", nil)
	if report := decode[[]AppointmentConflictsResponse](t, rec); len(report) != 1 {
		t.Errorf("report = %+v", report)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/suggestions?patient_id=%s&preferred_time=2024-06-03T09:00:00Z&doctor_id=%s", ts.patient, ts.doctor), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions = %d: %s", rec.Code, rec.Body.String())
	}
	sugg := decode[SmartSuggestionsResponse](t, rec)
	if sugg.DoctorID != ts.doctor || sugg.RecommendedTimes == nil || sugg.AlternativeDoctors == nil {
		t.Errorf("suggestions = %+v", sugg)
	}

	rec = ts.do(t, http.MethodGet, "/patients/"+ts.patient.String()+"/reminders", nil)
	if rem := decode[RemindersResponse](t, rec); rem.Reminders == nil {
		t.Errorf("reminders should be an empty list, got %+v", rem)
	}
}

func TestSymptomRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.slot(t, 3, appointment.PeriodMorning, 2)

	rec := ts.do(t, http.MethodPost, "/symptoms/analyze", map[string]any{"symptoms": "Chest pain, palpitations at night"})
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze = %d: %s", rec.Code, rec.Body.String())
	}
	analysis := decode[SymptomAnalysisResponse](t, rec)
	if len(analysis.Recommendations) != 1 {
		t.Fatalf("recommendations = %+v", analysis.Recommendations)
	}
	if top := analysis.Recommendations[0]; top.DepartmentID != ts.dept || top.MatchScore != 20 || len(top.MatchedKeywords) != 2 {
		t.Errorf("top recommendation = %+v", top)
	}

	rec = ts.do(t, http.MethodPost, "/symptoms/analyze", map[string]any{"symptoms": "itchy elbow"})
	if got := decode[SymptomAnalysisResponse](t, rec); rec.Code != http.StatusOK || got.Recommendations == nil || len(got.Recommendations) != 0 {
		t.Errorf("unmatched analyze = %d %+v", rec.Code, got)
	}

	rec = ts.do(t, http.MethodPost, "/symptoms/analyze", map[string]any{"symptoms": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank symptoms = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/symptoms/match-score", map[string]any{"symptoms": "palpitations", "department_id": ts.dept.String()})
	if score := decode[DepartmentRecommendationResponse](t, rec); score.MatchScore != 10 || score.DepartmentName != "Cardiology" {
		t.Errorf("match score = %+v", score)
	}
	rec = ts.do(t, http.MethodPost, "/symptoms/match-score", map[string]any{"symptoms": "palpitations"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("match score without department = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_id":       ts.patient.String(),
		"appointment_time": "2024-06-03T09:00:00Z",
		"symptoms":         "chest pain",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("book by symptoms = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[CreateAppointmentResponse](t, rec)
	if created.DepartmentID != ts.dept || created.DoctorID != ts.doctor || created.Recommendation == nil || created.Recommendation.DepartmentID != ts.dept {
		t.Errorf("created = %+v", created)
	}

	rec = ts.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_id":       ts.patient.String(),
		"appointment_time": "2024-06-03T10:00:00Z",
		"symptoms":         "itchy elbow",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unmatched symptoms booking = %d, want 422", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/suggestions?patient_id=%s&preferred_time=2024-06-03T09:00:00Z&symptoms=palpitations", ts.patient), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions by symptoms = %d: %s", rec.Code, rec.Body.String())
	}
	if sugg := decode[SmartSuggestionsResponse](t, rec); sugg.Recommendation == nil || sugg.Recommendation.DepartmentID != ts.dept {
		t.Errorf("suggestions = %+v", sugg)
	}
}

func TestDoctorAppointmentsAndDepartmentSchedules(t *testing.T) {
	ts := newTestServer(t)
	ts.slot(t, 3, appointment.PeriodMorning, 3)
	ts.slot(t, 3, appointment.PeriodAfternoon, 3)
	ts.slot(t, 4, appointment.PeriodMorning, 3)
	first := ts.book(t, time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	ts.book(t, time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC))
	ts.do(t, http.MethodPost, "/appointments/"+first.AppointmentID.String()+"/cancel", nil)

	base := "/doctors/" + ts.doctor.String() + "/appointments"
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all", "", 2},
		{"one day", "?date=2024-06-03", 1},
		{"cancelled", "?status=CANCELLED", 1},
		{"pending on the cancelled day", "?date=2024-06-03&status=PENDING", 0},
		{"second page", "?limit=1&offset=1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, base+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if got := decode[[]AppointmentResponse](t, rec); len(got) != tt.want {
				t.Errorf("got %d appointments, want %d", len(got), tt.want)
			}
		})
	}

	if rec := ts.do(t, http.MethodGet, base+"?status=LOST", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/doctors/"+uuid.NewString()+"/appointments", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown doctor = %d, want 404", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/departments/"+ts.dept.String()+"/schedules?date=2024-06-03", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedules = %d: %s", rec.Code, rec.Body.String())
	}
	schedules := decode[[]DoctorScheduleResponse](t, rec)
	if len(schedules) != 1 || schedules[0].DoctorID != ts.doctor || len(schedules[0].Slots) != 2 {
		t.Fatalf("schedules = %+v", schedules)
	}
	if morning := schedules[0].Slots[0]; morning.Period != "MORNING" || morning.AvailableCapacity != 3 {
		t.Errorf("morning slot after cancel = %+v", morning)
	}

	if rec := ts.do(t, http.MethodGet, "/departments/"+ts.dept.String()+"/schedules", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing date = %d, want 400", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/departments/"+ts.dept.String()+"/schedules?date=2024-06-09", nil)
	if got := decode[[]DoctorScheduleResponse](t, rec); len(got) != 0 {
		t.Errorf("empty day schedules = %+v", got)
	}
}

func TestReadiness(t *testing.T) {
	down := func(context.Context) error { return errors.New("down") }
	up := func(context.Context) error { return nil }

	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
	}{
		{"no dependencies", nil, http.StatusOK, "ok"},
		{"all up", []Check{{Name: "postgres", Critical: true, Ping: up}, {Name: "redis", Ping: up}}, http.StatusOK, "ok"},
		{"redis down", []Check{{Name: "postgres", Critical: true, Ping: up}, {Name: "redis", Ping: down}}, http.StatusOK, "degraded"},
		{"postgres down", []Check{{Name: "postgres", Critical: true, Ping: down}, {Name: "redis", Ping: up}}, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.checks...)
			rec := ts.do(t, http.MethodGet, "/health/ready", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decode[ReadinessResponse](t, rec); got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestHandleServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{appointment.ErrPastTime, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", appointment.ErrDoctorNotFound), http.StatusNotFound},
		{appointment.ErrSlotFull, http.StatusConflict},
		{appointment.ErrInvalidStatusTransition, http.StatusConflict},
		{appointment.ErrNoAvailableDoctor, http.StatusConflict},
		{appointment.ErrNoDepartmentMatch, http.StatusUnprocessableEntity},
		{appointment.ErrMissingSymptoms, http.StatusBadRequest},
		{appointment.ErrNumberGeneration, http.StatusServiceUnavailable},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handleServiceError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("%v -> %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}
