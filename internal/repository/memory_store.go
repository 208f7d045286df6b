package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
)

// memoryData is the state shared by a MemoryStore and its transaction views
type memoryData struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	users  map[int64]domain.User
	leaves map[int64]domain.LeaveRequest
	links  []domain.ManagerLink

	nextUserID  int64
	nextLeaveID int64
	nextLinkID  int64
}

// MemoryStore implements domain.Store in process memory.
// Transactions are serialized and roll back by restoring a snapshot.
type MemoryStore struct {
	data *memoryData
	inTx bool
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			users:  make(map[int64]domain.User),
			leaves: make(map[int64]domain.LeaveRequest),
		},
		now: time.Now,
	}
}

func (s *MemoryStore) Users() domain.UserRepository                 { return &memoryUsers{s} }
func (s *MemoryStore) LeaveRequests() domain.LeaveRequestRepository { return &memoryLeaves{s} }
func (s *MemoryStore) ManagerLinks() domain.ManagerLinkRepository   { return &memoryLinks{s} }

// Ping always succeeds unless ctx is done
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// InTx runs fn with exclusive write access, restoring the previous state when fn fails
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.data.txMu.Lock()
	defer s.data.txMu.Unlock()

	snap := s.data.snapshot()
	if err := fn(&MemoryStore{data: s.data, inTx: true, now: s.now}); err != nil {
		s.data.restore(snap)
		return err
	}
	return nil
}

// write runs fn under the data lock. Outside a transaction it also waits for
// any running transaction so a rollback cannot discard the change.
func (s *MemoryStore) write(fn func(d *memoryData) error) error {
	if !s.inTx {
		s.data.txMu.Lock()
		defer s.data.txMu.Unlock()
	}
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return fn(s.data)
}

func (s *MemoryStore) read(fn func(d *memoryData) error) error {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	return fn(s.data)
}

type memorySnapshot struct {
	users  map[int64]domain.User
	leaves map[int64]domain.LeaveRequest
	links  []domain.ManagerLink

	nextUserID, nextLeaveID, nextLinkID int64
}

func (d *memoryData) snapshot() memorySnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := memorySnapshot{
		users:       make(map[int64]domain.User, len(d.users)),
		leaves:      make(map[int64]domain.LeaveRequest, len(d.leaves)),
		links:       make([]domain.ManagerLink, 0, len(d.links)),
		nextUserID:  d.nextUserID,
		nextLeaveID: d.nextLeaveID,
		nextLinkID:  d.nextLinkID,
	}
	for id, u := range d.users {
		snap.users[id] = u
	}
	for id, lr := range d.leaves {
		snap.leaves[id] = copyLeave(lr)
	}
	for _, l := range d.links {
		snap.links = append(snap.links, copyLink(l))
	}
	return snap
}

func (d *memoryData) restore(snap memorySnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = snap.users
	d.leaves = snap.leaves
	d.links = snap.links
	d.nextUserID = snap.nextUserID
	d.nextLeaveID = snap.nextLeaveID
	d.nextLinkID = snap.nextLinkID
}

func copyLeave(lr domain.LeaveRequest) domain.LeaveRequest {
	if lr.Reason != nil {
		r := *lr.Reason
		lr.Reason = &r
	}
	return lr
}

func copyLink(l domain.ManagerLink) domain.ManagerLink {
	if l.EndDate != nil {
		e := *l.EndDate
		l.EndDate = &e
	}
	return l
}

type memoryUsers struct{ s *MemoryStore }

func (r *memoryUsers) Create(_ context.Context, user *domain.User) error {
	return r.s.write(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Email == user.Email {
				return domain.NewValidationError("email already registered")
			}
		}
		d.nextUserID++
		now := r.s.now()
		user.ID = d.nextUserID
		user.CreatedAt, user.UpdatedAt = now, now
		d.users[user.ID] = *user
		return nil
	})
}

func (r *memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.s.read(func(d *memoryData) error {
		for _, u := range d.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return fmt.Errorf("user: %w", domain.ErrNotFound)
	})
	return out, err
}

func (r *memoryUsers) List(_ context.Context) ([]*domain.User, error) {
	out := []*domain.User{}
	_ = r.s.read(func(d *memoryData) error {
		for _, u := range d.users {
			u := u
			out = append(out, &u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryUsers) ListByIDs(_ context.Context, ids []int64) ([]*domain.User, error) {
	out := []*domain.User{}
	_ = r.s.read(func(d *memoryData) error {
		seen := make(map[int64]bool, len(ids))
		for _, id := range ids {
			if u, ok := d.users[id]; ok && !seen[id] {
				seen[id] = true
				out = append(out, &u)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryUsers) mutate(id int64, fn func(u *domain.User) error) error {
	return r.s.write(func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		if err := fn(&u); err != nil {
			return err
		}
		u.UpdatedAt = r.s.now()
		d.users[id] = u
		return nil
	})
}

func (r *memoryUsers) UpdateRole(_ context.Context, id int64, role domain.Role) error {
	return r.mutate(id, func(u *domain.User) error {
		u.Role = role
		return nil
	})
}

func (r *memoryUsers) UpdateDepartment(_ context.Context, id int64, department string) error {
	return r.mutate(id, func(u *domain.User) error {
		u.Department = department
		return nil
	})
}

func (r *memoryUsers) SetBalance(_ context.Context, id int64, balance int) error {
	if balance < 0 {
		return domain.NewValidationError("annual leave balance cannot be negative")
	}
	return r.mutate(id, func(u *domain.User) error {
		u.AnnualLeaveBalance = balance
		return nil
	})
}

func (r *memoryUsers) AdjustBalance(_ context.Context, id int64, delta int) (int, error) {
	var balance int
	err := r.mutate(id, func(u *domain.User) error {
		if u.AnnualLeaveBalance+delta < 0 {
			return fmt.Errorf("user %d: %w", id, domain.ErrInsufficientBalance)
		}
		u.AnnualLeaveBalance += delta
		balance = u.AnnualLeaveBalance
		return nil
	})
	return balance, err
}

// Lock only checks existence; transactions already run one at a time
func (r *memoryUsers) Lock(ctx context.Context, id int64) error {
	_, err := r.GetByID(ctx, id)
	return err
}

type memoryLeaves struct{ s *MemoryStore }

func (r *memoryLeaves) Create(_ context.Context, lr *domain.LeaveRequest) error {
	return r.s.write(func(d *memoryData) error {
		d.nextLeaveID++
		now := r.s.now()
		lr.ID = d.nextLeaveID
		lr.CreatedAt, lr.UpdatedAt = now, now
		d.leaves[lr.ID] = copyLeave(*lr)
		return nil
	})
}

func (r *memoryLeaves) GetByID(_ context.Context, id int64) (*domain.LeaveRequest, error) {
	var out *domain.LeaveRequest
	err := r.s.read(func(d *memoryData) error {
		lr, ok := d.leaves[id]
		if !ok {
			return fmt.Errorf("leave request %d: %w", id, domain.ErrNotFound)
		}
		lr = copyLeave(lr)
		out = &lr
		return nil
	})
	return out, err
}

func (r *memoryLeaves) collect(match func(lr *domain.LeaveRequest) bool) []*domain.LeaveRequest {
	out := []*domain.LeaveRequest{}
	_ = r.s.read(func(d *memoryData) error {
		for _, lr := range d.leaves {
			lr := copyLeave(lr)
			if match(&lr) {
				out = append(out, &lr)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memoryLeaves) List(_ context.Context, filter domain.LeaveFilter) ([]*domain.LeaveRequest, error) {
	if filter.RestrictRequesters && len(filter.RequesterIDs) == 0 {
		return []*domain.LeaveRequest{}, nil
	}
	requesters := make(map[int64]bool, len(filter.RequesterIDs))
	for _, id := range filter.RequesterIDs {
		requesters[id] = true
	}
	statuses := make(map[domain.LeaveStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}

	return r.collect(func(lr *domain.LeaveRequest) bool {
		if len(requesters) > 0 && !requesters[lr.RequesterID] {
			return false
		}
		if len(statuses) > 0 && !statuses[lr.Status] {
			return false
		}
		if !filter.StartFrom.IsZero() && lr.StartDate.Before(domain.Truncate(filter.StartFrom)) {
			return false
		}
		if !filter.StartTo.IsZero() && lr.StartDate.After(domain.Truncate(filter.StartTo)) {
			return false
		}
		return true
	}), nil
}

func (r *memoryLeaves) FindOverlapping(_ context.Context, requesterID int64, start, end time.Time) ([]*domain.LeaveRequest, error) {
	return r.collect(func(lr *domain.LeaveRequest) bool {
		return lr.RequesterID == requesterID && lr.Status.Active() && lr.Overlaps(start, end)
	}), nil
}

func (r *memoryLeaves) UpdateStatus(_ context.Context, id int64, from, to domain.LeaveStatus, reason *string) error {
	return r.s.write(func(d *memoryData) error {
		lr, ok := d.leaves[id]
		if !ok {
			return fmt.Errorf("leave request %d: %w", id, domain.ErrNotFound)
		}
		if lr.Status != from {
			return fmt.Errorf("leave request %d is %s: %w", id, lr.Status, domain.ErrInvalidTransition)
		}
		lr.Status = to
		if reason != nil {
			text := *reason
			lr.Reason = &text
		}
		lr.UpdatedAt = r.s.now()
		d.leaves[id] = lr
		return nil
	})
}

type memoryLinks struct{ s *MemoryStore }

func (r *memoryLinks) Assign(_ context.Context, link *domain.ManagerLink) error {
	return r.s.write(func(d *memoryData) error {
		start := domain.Truncate(link.StartDate)
		kept := d.links[:0]
		for _, l := range d.links {
			if l.EmployeeID == link.EmployeeID {
				if !l.StartDate.Before(start) {
					continue
				}
				if l.EndDate == nil || l.EndDate.After(start) {
					end := start
					l.EndDate = &end
				}
			}
			kept = append(kept, l)
		}
		d.nextLinkID++
		link.ID = d.nextLinkID
		link.StartDate = start
		link.EndDate = nil
		d.links = append(kept, *link)
		return nil
	})
}

func (r *memoryLinks) ActiveManager(_ context.Context, employeeID int64, day time.Time) (*domain.ManagerLink, error) {
	var out *domain.ManagerLink
	_ = r.s.read(func(d *memoryData) error {
		for _, l := range d.links {
			if l.EmployeeID == employeeID && l.ActiveAt(day) {
				if out == nil || l.StartDate.After(out.StartDate) {
					c := copyLink(l)
					out = &c
				}
			}
		}
		return nil
	})
	if out == nil {
		return nil, fmt.Errorf("manager of user %d: %w", employeeID, domain.ErrNotFound)
	}
	return out, nil
}

func (r *memoryLinks) Team(_ context.Context, managerID int64, day time.Time) ([]int64, error) {
	ids := []int64{}
	_ = r.s.read(func(d *memoryData) error {
		for _, l := range d.links {
			if l.ManagerID == managerID && l.ActiveAt(day) {
				ids = append(ids, l.EmployeeID)
			}
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memoryLinks) ListByEmployee(_ context.Context, employeeID int64) ([]*domain.ManagerLink, error) {
	out := []*domain.ManagerLink{}
	_ = r.s.read(func(d *memoryData) error {
		for _, l := range d.links {
			if l.EmployeeID == employeeID {
				c := copyLink(l)
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}
