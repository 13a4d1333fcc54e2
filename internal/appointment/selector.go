package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DoctorSelector picks a doctor for one-step booking.
type DoctorSelector struct {
	repo    Repository
	doctors DoctorDirectory
	slots   SlotRegistry
	rules   Rules
}

func NewDoctorSelector(repo Repository, doctors DoctorDirectory, slots SlotRegistry, rules Rules) *DoctorSelector {
	return &DoctorSelector{repo: repo, doctors: doctors, slots: slots, rules: rules.withDefaults()}
}

type doctorLoad struct {
	id   uuid.UUID
	load int
}

// SelectBestDoctor returns the doctor of departmentID with an open slot at t
// and the fewest non-cancelled appointments that day. Ties go to the lowest id.
func (s *DoctorSelector) SelectBestDoctor(ctx context.Context, departmentID uuid.UUID, t time.Time) (uuid.UUID, error) {
	key, err := s.rules.SlotKeyFor(uuid.Nil, t)
	if err != nil {
		return uuid.Nil, err
	}

	ids, err := s.doctors.ListDoctorsInDepartment(ctx, departmentID)
	if err != nil {
		return uuid.Nil, wrapInfra("list department doctors", err)
	}

	var candidates []doctorLoad
	for _, id := range ids {
		key.DoctorID = id
		slot, err := s.slots.GetSlot(ctx, key)
		if errors.Is(err, ErrSlotNotFound) {
			continue
		}
		if err != nil {
			return uuid.Nil, wrapInfra("get slot", err)
		}
		if slot.Status != SlotActive || slot.AvailableCapacity <= 0 {
			continue
		}
		load, err := dayLoad(ctx, s.repo, s.rules, id, t)
		if err != nil {
			return uuid.Nil, err
		}
		candidates = append(candidates, doctorLoad{id: id, load: load})
	}

	if len(candidates) == 0 {
		return uuid.Nil, fmt.Errorf("%w: department %s at %s", ErrNoAvailableDoctor, departmentID, t.In(s.rules.Location).Format(time.DateTime))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].load != candidates[j].load {
			return candidates[i].load < candidates[j].load
		}
		return candidates[i].id.String() < candidates[j].id.String()
	})
	return candidates[0].id, nil
}
