package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

const dateLayout = time.DateOnly

type CreateAppointmentRequest struct {
	PatientID    string    `json:"patient_id"`
	DoctorID     string    `json:"doctor_id,omitempty"`
	DepartmentID string    `json:"department_id,omitempty"`
	Time         time.Time `json:"appointment_time"`
	Symptoms     string    `json:"symptoms,omitempty"`
}

type SymptomsRequest struct {
	Symptoms     string `json:"symptoms"`
	DepartmentID string `json:"department_id,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CreateSlotRequest struct {
	DoctorID    string `json:"doctor_id"`
	Date        string `json:"date"`
	Period      string `json:"period"`
	MaxCapacity int    `json:"max_capacity"`
}

type SlotStatusRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Period   string `json:"period"`
	Status   string `json:"status"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	Number        string    `json:"appointment_number"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	DepartmentID  uuid.UUID `json:"department_id"`
	Time          time.Time `json:"appointment_time"`
	Period        string    `json:"period"`
	Status        string    `json:"status"`
	ConflictLevel string    `json:"conflict_level"`
	Reminded      bool      `json:"reminded"`
	Symptoms      string    `json:"symptoms,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CreateAppointmentResponse struct {
	AppointmentID     uuid.UUID                         `json:"appointment_id"`
	AppointmentNumber string                            `json:"appointment_number"`
	DoctorID          uuid.UUID                         `json:"doctor_id"`
	DepartmentID      uuid.UUID                         `json:"department_id"`
	ConflictLevel     string                            `json:"conflict_level"`
	Analysis          AnalysisResponse                  `json:"conflicts"`
	Suggestions       *SuggestionsResponse              `json:"suggestions,omitempty"`
	Recommendation    *DepartmentRecommendationResponse `json:"department_recommendation,omitempty"`
}

type DepartmentRecommendationResponse struct {
	DepartmentID    uuid.UUID `json:"department_id"`
	DepartmentName  string    `json:"department_name"`
	Location        string    `json:"location,omitempty"`
	MatchScore      int       `json:"match_score"`
	MatchedKeywords []string  `json:"matched_keywords"`
	Reason          string    `json:"reason"`
}

type SymptomAnalysisResponse struct {
	Symptoms        string                             `json:"symptoms"`
	Keywords        []string                           `json:"keywords"`
	Recommendations []DepartmentRecommendationResponse `json:"recommendations"`
}

type DoctorScheduleResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Name     string         `json:"name"`
	Title    string         `json:"title"`
	Slots    []SlotResponse `json:"slots"`
}

type ConflictResponse struct {
	Type              string    `json:"type"`
	AppointmentID     uuid.UUID `json:"appointment_id"`
	AppointmentNumber string    `json:"appointment_number"`
	Time              time.Time `json:"appointment_time"`
	GapMinutes        int       `json:"gap_minutes"`
	Severity          string    `json:"severity"`
	Message           string    `json:"message"`
}

type AnalysisResponse struct {
	PatientConflicts   []ConflictResponse   `json:"patient_conflicts"`
	DoctorConflicts    []ConflictResponse   `json:"doctor_conflicts"`
	WithinWorkingHours bool                 `json:"within_working_hours"`
	SlotAvailable      bool                 `json:"slot_available"`
	Score              int                  `json:"score"`
	Risk               string               `json:"risk_level"`
	Suggestions        *SuggestionsResponse `json:"suggestions,omitempty"`
}

type DoctorSuggestionResponse struct {
	DoctorID       uuid.UUID `json:"doctor_id"`
	Name           string    `json:"name"`
	Title          string    `json:"title"`
	Specialty      string    `json:"specialty"`
	AvailableCount int       `json:"available_count"`
	Congestion     string    `json:"congestion_level"`
	DayLoad        int       `json:"day_load"`
}

type SuggestionsResponse struct {
	RecommendedTimes   []time.Time                `json:"recommended_times"`
	AlternativeDoctors []DoctorSuggestionResponse `json:"alternative_doctors"`
}

type SmartSuggestionsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	SuggestionsResponse
	HasUpcoming    bool                              `json:"has_upcoming"`
	Recommendation *DepartmentRecommendationResponse `json:"department_recommendation,omitempty"`
}

type AvailabilityResponse struct {
	DoctorID       *uuid.UUID `json:"doctor_id,omitempty"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	Date           string     `json:"date"`
	Period         string     `json:"period"`
	Available      bool       `json:"available"`
	Congestion     string     `json:"congestion_level"`
	AvailableCount int        `json:"available_count"`
	MaxCapacity    int        `json:"max_capacity"`
}

type SlotResponse struct {
	ID                uuid.UUID `json:"id"`
	DoctorID          uuid.UUID `json:"doctor_id"`
	Date              string    `json:"date"`
	Period            string    `json:"period"`
	MaxCapacity       int       `json:"max_capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	Booked            int       `json:"booked"`
	Status            string    `json:"status"`
	Congestion        string    `json:"congestion_level"`
}

type AppointmentConflictsResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Analysis    AnalysisResponse    `json:"conflicts"`
}

type RemindersResponse struct {
	PatientID uuid.UUID `json:"patient_id"`
	Reminders []string  `json:"reminders"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		Number:        a.Number,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		DepartmentID:  a.DepartmentID,
		Time:          a.Time,
		Period:        string(a.Period),
		Status:        string(a.Status),
		ConflictLevel: string(a.ConflictLevel),
		Reminded:      a.Reminded,
		Symptoms:      a.Symptoms,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toConflicts(cs []appointment.Conflict) []ConflictResponse {
	out := make([]ConflictResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, ConflictResponse{
			Type:              string(c.Type),
			AppointmentID:     c.AppointmentID,
			AppointmentNumber: c.AppointmentNumber,
			Time:              c.Time,
			GapMinutes:        int(c.Gap / time.Minute),
			Severity:          string(c.Severity),
			Message:           c.Message,
		})
	}
	return out
}

func toSuggestions(s *appointment.Suggestions) *SuggestionsResponse {
	if s == nil {
		return nil
	}
	resp := SuggestionsResponse{
		RecommendedTimes:   append([]time.Time{}, s.RecommendedTimes...),
		AlternativeDoctors: make([]DoctorSuggestionResponse, 0, len(s.AlternativeDoctors)),
	}
	for _, d := range s.AlternativeDoctors {
		resp.AlternativeDoctors = append(resp.AlternativeDoctors, DoctorSuggestionResponse{
			DoctorID:       d.DoctorID,
			Name:           d.Name,
			Title:          d.Title,
			Specialty:      d.Specialty,
			AvailableCount: d.AvailableCount,
			Congestion:     string(d.Congestion),
			DayLoad:        d.DayLoad,
		})
	}
	return &resp
}

func toAnalysis(a appointment.ConflictAnalysis) AnalysisResponse {
	return AnalysisResponse{
		PatientConflicts:   toConflicts(a.PatientConflicts),
		DoctorConflicts:    toConflicts(a.DoctorConflicts),
		WithinWorkingHours: a.WithinWorkingHours,
		SlotAvailable:      a.SlotAvailable,
		Score:              a.Score,
		Risk:               string(a.Risk),
		Suggestions:        toSuggestions(a.Suggestions),
	}
}

func toSlotResponse(s appointment.ScheduleSlot, rules appointment.Rules) SlotResponse {
	return SlotResponse{
		ID:                s.ID,
		DoctorID:          s.DoctorID,
		Date:              s.Date.Format(dateLayout),
		Period:            string(s.Period),
		MaxCapacity:       s.MaxCapacity,
		AvailableCapacity: s.AvailableCapacity,
		Booked:            s.Booked(),
		Status:            string(s.Status),
		Congestion:        string(rules.Congestion(&s)),
	}
}

func toAvailabilityResponse(a appointment.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		Date:           a.Date.Format(dateLayout),
		Period:         string(a.Period),
		Available:      a.Available,
		Congestion:     string(a.Congestion),
		AvailableCount: a.AvailableCount,
		MaxCapacity:    a.MaxCapacity,
	}
	if a.DoctorID != uuid.Nil {
		id := a.DoctorID
		resp.DoctorID = &id
	}
	if a.DepartmentID != uuid.Nil {
		id := a.DepartmentID
		resp.DepartmentID = &id
	}
	return resp
}

func toRecommendation(r *appointment.DepartmentRecommendation) *DepartmentRecommendationResponse {
	if r == nil {
		return nil
	}
	kws := r.MatchedKeywords
	if kws == nil {
		kws = []string{}
	}
	return &DepartmentRecommendationResponse{
		DepartmentID:    r.Department.ID,
		DepartmentName:  r.Department.Name,
		Location:        r.Department.Location,
		MatchScore:      r.Score,
		MatchedKeywords: kws,
		Reason:          r.Reason,
	}
}

func toSymptomAnalysis(symptoms string, a *appointment.SymptomAnalysis) SymptomAnalysisResponse {
	out := SymptomAnalysisResponse{
		Symptoms:        symptoms,
		Keywords:        a.Keywords,
		Recommendations: make([]DepartmentRecommendationResponse, 0, len(a.Recommendations)),
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	for i := range a.Recommendations {
		out.Recommendations = append(out.Recommendations, *toRecommendation(&a.Recommendations[i]))
	}
	return out
}
