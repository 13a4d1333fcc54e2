package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/yyds352/hospital-appointment/internal/config"
	"github.com/yyds352/hospital-appointment/internal/db"
	"github.com/yyds352/hospital-appointment/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ChangeRatio  float64 // confirm or cancel
	ReadRatio    float64
	AutoSelect   float64 // share of bookings that leave the doctor to the server
	PatientLimit int
	SlotLimit    int
	PostgresDSN  string
	Location     *time.Location
}

type openSlot struct {
	DoctorID     uuid.UUID
	DepartmentID uuid.UUID
	Date         time.Time
	Period       string
}

type DataPool struct {
	Patients     []uuid.UUID
	Slots        []openSlot
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(f *gofakeit.Faker) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[f.Number(0, len(dp.appointments)-1)], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1],
		percentile(latencies, 50), percentile(latencies, 95)
}

type Metrics struct {
	Booking       OperationMetrics
	Conflicted    int64 // bookings accepted with a non-NONE conflict level
	Change        OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Availability  OperationMetrics
	Suggestions   OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	log := logging.New(baseCfg.Env, baseCfg.LogLevel).With().Str("service", "simulate").Logger()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("change", cfg.ChangeRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, baseCfg.PoolOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}

	log.Info().Int("patients", len(dataPool.Patients)).Int("slots", len(dataPool.Slots)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		ChangeRatio:  getFloat("SIM_CHANGE_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		AutoSelect:   getFloat("SIM_AUTO_SELECT_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 2400),
		PostgresDSN:  base.PostgresDSN,
		Location:     base.Timezone,
	}

	total := cfg.BookingRatio + cfg.ChangeRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ChangeRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()

	rows, err = pool.Query(ctx, `
		SELECT s.doctor_id, d.department_id, s.slot_date, s.period
		FROM schedule_slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE s.status = 'ACTIVE' AND s.available_capacity > 0 AND s.slot_date > current_date
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	for rows.Next() {
		var s openSlot
		if err := rows.Scan(&s.DoctorID, &s.DepartmentID, &s.Date, &s.Period); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, s)
	}
	rows.Close()

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no slots loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	f := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := f.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, f)
			case r < s.config.BookingRatio+s.config.ChangeRatio:
				s.doChange(ctx, f)
			default:
				switch f.Number(0, 3) {
				case 0:
					s.doReadByID(ctx, f)
				case 1:
					s.doListByPatient(ctx, f)
				case 2:
					s.doAvailability(ctx, f)
				case 3:
					s.doSuggestions(ctx, f)
				}
			}
		}
	}
}

// visitTime picks a five-minute mark strictly inside the slot's period.
func (s *Simulator) visitTime(f *gofakeit.Faker, slot openSlot) time.Time {
	startHour, hours := 8, 4
	if slot.Period == "AFTERNOON" {
		startHour, hours = 14, 3
	}
	minutes := f.Number(1, hours*12-1) * 5
	d := slot.Date
	return time.Date(d.Year(), d.Month(), d.Day(), startHour, 0, 0, 0, s.config.Location).
		Add(time.Duration(minutes) * time.Minute)
}

func (s *Simulator) send(ctx context.Context, method, path string, body any) (*http.Response, time.Duration, error) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	start := time.Now()
	resp, err := s.client.Do(req)
	return resp, time.Since(start), err
}

func (s *Simulator) doBooking(ctx context.Context, f *gofakeit.Faker) {
	slot := s.pool.Slots[f.Number(0, len(s.pool.Slots)-1)]
	patientID := s.pool.Patients[f.Number(0, len(s.pool.Patients)-1)]

	reqBody := map[string]string{
		"patient_id":       patientID.String(),
		"department_id":    slot.DepartmentID.String(),
		"appointment_time": s.visitTime(f, slot).Format(time.RFC3339),
		"symptoms":         f.Sentence(6),
	}
	if f.Float64() >= s.config.AutoSelect {
		reqBody["doctor_id"] = slot.DoctorID.String()
	}

	resp, latency, err := s.send(ctx, http.MethodPost, "/appointments", reqBody)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var created struct {
				AppointmentID uuid.UUID `json:"appointment_id"`
				ConflictLevel string    `json:"conflict_level"`
			}
			if json.NewDecoder(resp.Body).Decode(&created) == nil && created.AppointmentID != uuid.Nil {
				s.pool.AddAppointment(created.AppointmentID)
				if created.ConflictLevel != "NONE" {
					atomic.AddInt64(&s.metrics.Conflicted, 1)
				}
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doChange(ctx context.Context, f *gofakeit.Faker) {
	apptID, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	action := "confirm"
	if f.Number(0, 2) == 0 {
		action = "cancel"
	}

	resp, latency, err := s.send(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/%s", apptID, action), nil)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	s.metrics.Change.Record(latency, success, conflict)
}

func (s *Simulator) doRead(ctx context.Context, path string, om *OperationMetrics) {
	resp, latency, err := s.send(ctx, http.MethodGet, path, nil)
	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	om.Record(latency, success, false)
}

func (s *Simulator) doReadByID(ctx context.Context, f *gofakeit.Faker) {
	apptID, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	s.doRead(ctx, "/appointments/"+apptID.String(), &s.metrics.ReadByID)
}

func (s *Simulator) doListByPatient(ctx context.Context, f *gofakeit.Faker) {
	patientID := s.pool.Patients[f.Number(0, len(s.pool.Patients)-1)]
	s.doRead(ctx, fmt.Sprintf("/appointments?patient_id=%s&limit=20&offset=0", patientID), &s.metrics.ListByPatient)
}

func (s *Simulator) doAvailability(ctx context.Context, f *gofakeit.Faker) {
	slot := s.pool.Slots[f.Number(0, len(s.pool.Slots)-1)]
	s.doRead(ctx, fmt.Sprintf("/availability?department_id=%s&date=%s&period=%s",
		slot.DepartmentID, slot.Date.Format(time.DateOnly), slot.Period), &s.metrics.Availability)
}

func (s *Simulator) doSuggestions(ctx context.Context, f *gofakeit.Faker) {
	slot := s.pool.Slots[f.Number(0, len(s.pool.Slots)-1)]
	patientID := s.pool.Patients[f.Number(0, len(s.pool.Patients)-1)]
	s.doRead(ctx, fmt.Sprintf("/suggestions?patient_id=%s&department_id=%s&preferred_time=%s",
		patientID, slot.DepartmentID, s.visitTime(f, slot).UTC().Format(time.RFC3339)), &s.metrics.Suggestions)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Bookings accepted with conflicts: %d\n", atomic.LoadInt64(&s.metrics.Conflicted))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm/Cancel", &s.metrics.Change)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Suggestions", &s.metrics.Suggestions)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
