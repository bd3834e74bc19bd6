package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/db/dbtest"
	"github.com/hackgods/telehealth-scheduling/internal/directory"
	"github.com/hackgods/telehealth-scheduling/internal/meetinglink"
	redisclient "github.com/hackgods/telehealth-scheduling/internal/redis"
	"github.com/hackgods/telehealth-scheduling/internal/timeslot"
)

// The fakes below stage writes made through a dbtest.Tx until it commits, so
// tests can observe that a rolled back booking leaves no trace.

type fakeSlots struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*timeslot.TimeSlot
	now   func() time.Time
}

func (f *fakeSlots) add(slot *timeslot.TimeSlot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots[slot.ID()] = slot
}

func (f *fakeSlots) Get(ctx context.Context, slotID uuid.UUID) (*timeslot.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotID]
	if !ok {
		return nil, timeslot.ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (f *fakeSlots) MarkBooked(ctx context.Context, q db.Executor, slotID uuid.UUID) error {
	f.mu.Lock()
	slot, ok := f.slots[slotID]
	free := ok && slot.Available()
	f.mu.Unlock()
	if !free {
		return timeslot.ErrSlotUnavailable
	}
	dbtest.Apply(q, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = slot.MarkBooked(f.now())
	})
	return nil
}

func (f *fakeSlots) MarkFree(ctx context.Context, q db.Executor, slotID uuid.UUID) error {
	f.mu.Lock()
	slot, ok := f.slots[slotID]
	booked := ok && !slot.Available()
	f.mu.Unlock()
	if !booked {
		return timeslot.ErrSlotNotFound
	}
	dbtest.Apply(q, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		slot.MarkFree(f.now())
	})
	return nil
}

func (f *fakeSlots) available(slotID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slots[slotID].Available()
}

type fakeLinks struct {
	mu     sync.Mutex
	status map[string]meetinglink.Status
}

func newFakeLinks(urls ...string) *fakeLinks {
	f := &fakeLinks{status: make(map[string]meetinglink.Status)}
	for _, url := range urls {
		f.status[url] = meetinglink.StatusAvailable
	}
	return f
}

func (f *fakeLinks) Allocate(ctx context.Context, q db.Executor) (*meetinglink.MeetingLink, error) {
	f.mu.Lock()
	urls := make([]string, 0, len(f.status))
	for url, status := range f.status {
		if status == meetinglink.StatusAvailable {
			urls = append(urls, url)
		}
	}
	f.mu.Unlock()
	sort.Strings(urls)

	if len(urls) == 0 {
		return nil, meetinglink.ErrPoolExhausted
	}

	url := urls[0]
	link := meetinglink.New(uuid.New(), url, time.Now())
	_ = link.Claim(time.Now())
	dbtest.Apply(q, func() { f.set(url, meetinglink.StatusInUse) })
	return link, nil
}

func (f *fakeLinks) Release(ctx context.Context, q db.Executor, url string) error {
	f.mu.Lock()
	status, ok := f.status[url]
	f.mu.Unlock()
	if !ok {
		return meetinglink.ErrLinkNotFound
	}
	if status != meetinglink.StatusInUse {
		return meetinglink.ErrLinkNotInUse
	}
	dbtest.Apply(q, func() { f.set(url, meetinglink.StatusAvailable) })
	return nil
}

func (f *fakeLinks) set(url string, status meetinglink.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[url] = status
}

func (f *fakeLinks) count(status meetinglink.Status) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.status {
		if s == status {
			n++
		}
	}
	return n
}

type fakeRepo struct {
	mu        sync.Mutex
	appts     map[uuid.UUID]*Appointment
	slots     *fakeSlots
	insertErr error
}

func (f *fakeRepo) Insert(ctx context.Context, q db.Executor, appt *Appointment) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *appt
	dbtest.Apply(q, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.appts[cp.id] = &cp
	})
	return nil
}

func (f *fakeRepo) detail(appt *Appointment) *Detail {
	slot, _ := f.slots.Get(context.Background(), appt.timeSlotID)
	cp := *appt
	return &Detail{Appointment: &cp, StartAt: slot.StartAt(), EndAt: slot.EndAt(), DoctorID: slot.DoctorID()}
}

func (f *fakeRepo) FindByID(ctx context.Context, q db.Executor, id uuid.UUID) (*Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok || appt.deletedAt != nil {
		return nil, ErrAppointmentNotFound
	}
	return f.detail(appt), nil
}

func (f *fakeRepo) FindByIDAndPatient(ctx context.Context, q db.Executor, id, patientID uuid.UUID) (*Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok || appt.deletedAt != nil || appt.patientID != patientID {
		return nil, ErrAppointmentNotFound
	}
	return f.detail(appt), nil
}

func (f *fakeRepo) SoftDelete(ctx context.Context, q db.Executor, appt *Appointment) error {
	f.mu.Lock()
	stored, ok := f.appts[appt.id]
	f.mu.Unlock()
	if !ok || stored.deletedAt != nil {
		return ErrAppointmentNotFound
	}
	cp := *appt
	dbtest.Apply(q, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.appts[cp.id] = &cp
	})
	return nil
}

func (f *fakeRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Detail
	for _, appt := range f.appts {
		if appt.patientID == patientID && appt.deletedAt == nil {
			out = append(out, *f.detail(appt))
		}
	}
	return out, nil
}

func (f *fakeRepo) stored(id uuid.UUID) *Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appts[id]
}

func (f *fakeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appts)
}

type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]redisclient.Job
	createErr error
	cancelErr error
	canceled  []string
}

func (f *fakeJobs) CreateJob(ctx context.Context, job redisclient.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.jobs[job.Key] = job
	return nil
}

func (f *fakeJobs) CancelJob(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return false, f.cancelErr
	}
	f.canceled = append(f.canceled, key)
	_, ok := f.jobs[key]
	delete(f.jobs, key)
	return ok, nil
}

func (f *fakeJobs) ClaimDue(ctx context.Context, now time.Time, limit int64) ([]redisclient.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []redisclient.Job
	for key, job := range f.jobs {
		if int64(len(due)) == limit {
			break
		}
		if !job.RunAt.After(now) {
			due = append(due, job)
			delete(f.jobs, key)
		}
	}
	return due, nil
}

func (f *fakeJobs) get(key string) (redisclient.Job, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[key]
	return job, ok
}

type fakeDirectory struct {
	patients map[uuid.UUID]*directory.Patient
	doctors  map[uuid.UUID]*directory.Doctor
}

func (f *fakeDirectory) FindPatientByUserID(ctx context.Context, userID uuid.UUID) (*directory.Patient, error) {
	for _, p := range f.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, directory.ErrPatientNotFound
}

func (f *fakeDirectory) FindDoctorByID(ctx context.Context, id uuid.UUID) (*directory.Doctor, error) {
	if d, ok := f.doctors[id]; ok {
		return d, nil
	}
	return nil, directory.ErrDoctorNotFound
}

func (f *fakeDirectory) FindDoctorByUserID(ctx context.Context, userID uuid.UUID) (*directory.Doctor, error) {
	for _, d := range f.doctors {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, directory.ErrDoctorNotFound
}

type fakeLocker struct {
	err error
}

func (l *fakeLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}
