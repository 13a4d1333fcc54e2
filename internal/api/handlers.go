package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patientID, ok := parseUUID(w, req.PatientID, "patient_id", false)
		if !ok {
			return
		}
		doctorID, ok := parseUUID(w, req.DoctorID, "doctor_id", false)
		if !ok {
			return
		}
		departmentID, ok := parseUUID(w, req.DepartmentID, "department_id", false)
		if !ok {
			return
		}

		res, err := svc.CreateAppointment(r.Context(), appointment.CreateRequest{
			PatientID:    patientID,
			DoctorID:     doctorID,
			DepartmentID: departmentID,
			Time:         req.Time,
			Symptoms:     req.Symptoms,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		analysis := toAnalysis(res.Analysis)
		writeJSON(w, http.StatusCreated, CreateAppointmentResponse{
			AppointmentID:     res.Appointment.ID,
			AppointmentNumber: res.Appointment.Number,
			DoctorID:          res.Appointment.DoctorID,
			DepartmentID:      res.Appointment.DepartmentID,
			ConflictLevel:     string(res.Appointment.ConflictLevel),
			Analysis:          analysis,
			Suggestions:       analysis.Suggestions,
			Recommendation:    toRecommendation(res.Recommendation),
		})
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id", true)
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		patientID, ok := parseUUID(w, q.Get("patient_id"), "patient_id", true)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		appts, err := svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		out := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			out = append(out, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// transitionHandler moves an appointment to a fixed status.
func transitionHandler(svc *appointment.Service, to appointment.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id", true)
		if !ok {
			return
		}
		appt, err := svc.TransitionAppointment(r.Context(), id, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func updateStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id", true)
		if !ok {
			return
		}
		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		to, err := appointment.ParseStatus(req.Status)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		appt, err := svc.TransitionAppointment(r.Context(), id, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func analyzeConflictsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		patientID, ok := parseUUID(w, q.Get("patient_id"), "patient_id", true)
		if !ok {
			return
		}
		doctorID, ok := parseUUID(w, q.Get("doctor_id"), "doctor_id", true)
		if !ok {
			return
		}
		t, ok := parseTime(w, q, "time")
		if !ok {
			return
		}

		analysis, err := svc.AnalyzeConflicts(r.Context(), patientID, doctorID, t)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnalysis(*analysis))
	}
}

func checkAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, chi.URLParam(r, "id"), "appointment_id", true)
		if !ok {
			return
		}
		analysis, err := svc.CheckAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAnalysis(*analysis))
	}
}

func patientConflictsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseUUID(w, chi.URLParam(r, "id"), "patient_id", true)
		if !ok {
			return
		}
		report, err := svc.PatientConflictReport(r.Context(), patientID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		out := make([]AppointmentConflictsResponse, 0, len(report))
		for _, item := range report {
			out = append(out, AppointmentConflictsResponse{
				Appointment: toAppointmentResponse(item.Appointment),
				Analysis:    toAnalysis(item.Analysis),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func availabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		doctorID, ok := parseUUID(w, q.Get("doctor_id"), "doctor_id", false)
		if !ok {
			return
		}
		departmentID, ok := parseUUID(w, q.Get("department_id"), "department_id", false)
		if !ok {
			return
		}
		date, ok := parseDate(w, q.Get("date"), "date")
		if !ok {
			return
		}

		avail, err := svc.GetTimeSlotAvailability(r.Context(), appointment.AvailabilityQuery{
			DoctorID:     doctorID,
			DepartmentID: departmentID,
			Date:         date,
			Period:       appointment.Period(q.Get("period")),
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAvailabilityResponse(*avail))
	}
}

func suggestionsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		patientID, ok := parseUUID(w, q.Get("patient_id"), "patient_id", true)
		if !ok {
			return
		}
		preferred, ok := parseTime(w, q, "preferred_time")
		if !ok {
			return
		}
		doctorID, ok := parseUUID(w, q.Get("doctor_id"), "doctor_id", false)
		if !ok {
			return
		}
		departmentID, ok := parseUUID(w, q.Get("department_id"), "department_id", false)
		if !ok {
			return
		}

		sugg, err := svc.GetSmartSuggestions(r.Context(), appointment.SmartSuggestionQuery{
			PatientID:     patientID,
			PreferredTime: preferred,
			DoctorID:      doctorID,
			DepartmentID:  departmentID,
			Symptoms:      q.Get("symptoms"),
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SmartSuggestionsResponse{
			DoctorID:            sugg.DoctorID,
			SuggestionsResponse: *toSuggestions(&sugg.Suggestions),
			HasUpcoming:         sugg.HasUpcoming,
			Recommendation:      toRecommendation(sugg.Recommendation),
		})
	}
}

func remindersHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseUUID(w, chi.URLParam(r, "id"), "patient_id", true)
		if !ok {
			return
		}
		msgs, err := svc.UpcomingReminders(r.Context(), patientID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if msgs == nil {
			msgs = []string{}
		}
		writeJSON(w, http.StatusOK, RemindersResponse{PatientID: patientID, Reminders: msgs})
	}
}

func createSlotHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		doctorID, ok := parseUUID(w, req.DoctorID, "doctor_id", true)
		if !ok {
			return
		}
		date, ok := parseDate(w, req.Date, "date")
		if !ok {
			return
		}

		slot, err := svc.CreateSlot(r.Context(), doctorID, date, appointment.Period(req.Period), req.MaxCapacity)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSlotResponse(*slot, svc.Rules()))
	}
}

func slotStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SlotStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		doctorID, ok := parseUUID(w, req.DoctorID, "doctor_id", true)
		if !ok {
			return
		}
		date, ok := parseDate(w, req.Date, "date")
		if !ok {
			return
		}
		period, err := appointment.ParsePeriod(req.Period)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		status, err := appointment.ParseSlotStatus(req.Status)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		slot, err := svc.SetSlotStatus(r.Context(), appointment.NewSlotKey(doctorID, date, period), status)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(*slot, svc.Rules()))
	}
}

// listSlotsHandler returns a doctor's slots between from and to (inclusive).
// Defaults to the next seven days.
func listSlotsHandler(svc *appointment.Service, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUID(w, chi.URLParam(r, "id"), "doctor_id", true)
		if !ok {
			return
		}
		q := r.URL.Query()
		from := svc.Rules().DateOf(now())
		if raw := q.Get("from"); raw != "" {
			if from, ok = parseDate(w, raw, "from"); !ok {
				return
			}
		}
		to := from.AddDate(0, 0, 7)
		if raw := q.Get("to"); raw != "" {
			if to, ok = parseDate(w, raw, "to"); !ok {
				return
			}
		}

		slots, err := svc.ListSlots(r.Context(), doctorID, from, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		rules := svc.Rules()
		out := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			out = append(out, toSlotResponse(s, rules))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func analyzeSymptomsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SymptomsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		analysis, err := svc.AnalyzeSymptoms(r.Context(), req.Symptoms)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSymptomAnalysis(req.Symptoms, analysis))
	}
}

func symptomMatchScoreHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SymptomsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		departmentID, ok := parseUUID(w, req.DepartmentID, "department_id", true)
		if !ok {
			return
		}
		rec, err := svc.SymptomMatchScore(r.Context(), req.Symptoms, departmentID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRecommendation(rec))
	}
}

// doctorAppointmentsHandler pages through a doctor's appointments, optionally
// restricted to one date and one status.
func doctorAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseUUID(w, chi.URLParam(r, "id"), "doctor_id", true)
		if !ok {
			return
		}
		q := r.URL.Query()
		var date time.Time
		if raw := q.Get("date"); raw != "" {
			if date, ok = parseDate(w, raw, "date"); !ok {
				return
			}
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		appts, err := svc.ListDoctorAppointments(r.Context(), appointment.DoctorAppointmentsQuery{
			DoctorID: doctorID,
			Date:     date,
			Status:   appointment.Status(q.Get("status")),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}
		out := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			out = append(out, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func departmentSchedulesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departmentID, ok := parseUUID(w, chi.URLParam(r, "id"), "department_id", true)
		if !ok {
			return
		}
		date, ok := parseDate(w, r.URL.Query().Get("date"), "date")
		if !ok {
			return
		}

		schedules, err := svc.DepartmentSchedules(r.Context(), departmentID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		rules := svc.Rules()
		out := make([]DoctorScheduleResponse, 0, len(schedules))
		for _, ds := range schedules {
			resp := DoctorScheduleResponse{
				DoctorID: ds.Doctor.ID,
				Name:     ds.Doctor.Name,
				Title:    ds.Doctor.Title,
				Slots:    make([]SlotResponse, 0, len(ds.Slots)),
			}
			for _, sl := range ds.Slots {
				resp.Slots = append(resp.Slots, toSlotResponse(sl, rules))
			}
			out = append(out, resp)
		}
		writeJSON(w, http.StatusOK, out)
	}
}
