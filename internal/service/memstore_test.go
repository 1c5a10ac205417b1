// memstore_test.go — in-memory реализация репозиториев для unit-тестов сервисов.
// Повторяет ограничения схемы: уникальность, RESTRICT, SET NULL и CASCADE.
package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
)

// memStore — общее хранилище всех in-memory репозиториев.
type memStore struct {
	mu            sync.Mutex
	users         map[string]*model.User
	groups        map[string]*model.Group
	researchers   map[string]*model.Researcher
	observatories map[string]*model.Observatory
	telescopes    map[string]*model.Telescope
	instruments   map[string]*model.Instrument
	runs          map[string]*model.ObservingRun
	blocks        map[string]*model.ObservingBlock
	targets       map[string]*model.Target
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[string]*model.User{},
		groups:        map[string]*model.Group{},
		researchers:   map[string]*model.Researcher{},
		observatories: map[string]*model.Observatory{},
		telescopes:    map[string]*model.Telescope{},
		instruments:   map[string]*model.Instrument{},
		runs:          map[string]*model.ObservingRun{},
		blocks:        map[string]*model.ObservingBlock{},
		targets:       map[string]*model.Target{},
	}
}

// repos возвращает набор репозиториев поверх хранилища.
func (s *memStore) repos() *repository.Repositories {
	return &repository.Repositories{
		Users:         &memUsers{s},
		Groups:        &memGroups{s},
		Researchers:   &memResearchers{s},
		Observatories: &memObservatories{s},
		Telescopes:    &memTelescopes{s},
		Instruments:   &memInstruments{s},
		Runs:          &memRuns{s},
		Blocks:        &memBlocks{s},
		Targets:       &memTargets{s},
	}
}

// memTx — Transactor без отката: fn выполняется над тем же хранилищем.
type memTx struct {
	repos *repository.Repositories
	calls int
}

func (tx *memTx) RunInTx(_ context.Context, fn func(repos *repository.Repositories) error) error {
	tx.calls++
	return fn(tx.repos)
}

// testEnv — хранилище, репозитории и транзакции одного теста.
type testEnv struct {
	store  *memStore
	repos  *repository.Repositories
	tx     *memTx
	logger *slog.Logger
}

func newTestEnv() *testEnv {
	store := newMemStore()
	repos := store.repos()
	return &testEnv{store: store, repos: repos, tx: &memTx{repos: repos}, logger: slog.Default()}
}

// sortedValues возвращает копии значений, упорядоченные по key.
func sortedValues[T any](m map[string]*T, clone func(*T) *T, key func(*T) string) []*T {
	result := make([]*T, 0, len(m))
	for _, v := range m {
		result = append(result, clone(v))
	}
	slices.SortFunc(result, func(a, b *T) int { return cmp.Compare(key(a), key(b)) })
	return result
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.GroupIDs = slices.Clone(u.GroupIDs)
	return &c
}

func cloneGroup(g *model.Group) *model.Group {
	c := *g
	return &c
}

func cloneResearcher(r *model.Researcher) *model.Researcher {
	c := *r
	c.DeniedBlockIDs = slices.Clone(r.DeniedBlockIDs)
	return &c
}

func cloneObservatory(o *model.Observatory) *model.Observatory {
	c := *o
	return &c
}

func cloneTelescope(t *model.Telescope) *model.Telescope {
	c := *t
	return &c
}

func cloneInstrument(i *model.Instrument) *model.Instrument {
	c := *i
	return &c
}

func cloneRun(r *model.ObservingRun) *model.ObservingRun {
	c := *r
	c.ResearcherIDs = slices.Clone(r.ResearcherIDs)
	return &c
}

func cloneBlock(b *model.ObservingBlock) *model.ObservingBlock {
	c := *b
	c.TargetIDs = slices.Clone(b.TargetIDs)
	c.AllowedGroupIDs = slices.Clone(b.AllowedGroupIDs)
	return &c
}

func cloneTarget(t *model.Target) *model.Target {
	c := *t
	return &c
}

func conflict(msg string) error {
	return fmt.Errorf("%w: %s", repository.ErrConflict, msg)
}

func invalidRef(entity string) error {
	return fmt.Errorf("%w: %s", repository.ErrInvalidReference, entity)
}

func inUse(entity string) error {
	return fmt.Errorf("%w: %s", repository.ErrInUse, entity)
}

// --- Учётные записи ---

type memUsers struct{ s *memStore }

func (r *memUsers) checkGroups(ids []string) error {
	for _, id := range ids {
		if _, ok := r.s.groups[id]; !ok {
			return invalidRef("группа")
		}
	}
	return nil
}

func (r *memUsers) checkUnique(u *model.User) error {
	for _, other := range r.s.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return conflict("username уже занят")
		}
		if u.AuthSubject != nil && other.AuthSubject != nil && *other.AuthSubject == *u.AuthSubject {
			return conflict("субъект уже связан")
		}
	}
	return nil
}

func (r *memUsers) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkUnique(u); err != nil {
		return err
	}
	if err := r.checkGroups(u.GroupIDs); err != nil {
		return err
	}
	r.s.users[u.ID] = cloneUser(u)
	return nil
}

func (r *memUsers) find(match func(*model.User) bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *memUsers) GetBySubject(_ context.Context, subject string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.AuthSubject != nil && *u.AuthSubject == subject })
}

func (r *memUsers) List(_ context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedValues(r.s.users, cloneUser, func(u *model.User) string { return u.Username }), nil
}

func (r *memUsers) ListByGroup(_ context.Context, groupID string) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := sortedValues(r.s.users, cloneUser, func(u *model.User) string { return u.Username })
	return slices.DeleteFunc(all, func(u *model.User) bool { return !slices.Contains(u.GroupIDs, groupID) }), nil
}

func (r *memUsers) Update(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := r.checkUnique(u); err != nil {
		return err
	}
	if err := r.checkGroups(u.GroupIDs); err != nil {
		return err
	}
	c := cloneUser(u)
	c.AuthSubject = current.AuthSubject
	r.s.users[u.ID] = c
	return nil
}

func (r *memUsers) BindSubject(_ context.Context, id, subject string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.AuthSubject = &subject
	return nil
}

func (r *memUsers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	for _, res := range r.s.researchers {
		if res.UserID != nil && *res.UserID == id {
			res.UserID = nil
		}
	}
	return nil
}

func (r *memUsers) AddToGroup(_ context.Context, userID, groupID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.groups[groupID]; !ok {
		return repository.ErrNotFound
	}
	if !slices.Contains(u.GroupIDs, groupID) {
		u.GroupIDs = append(u.GroupIDs, groupID)
	}
	return nil
}

func (r *memUsers) RemoveFromGroup(_ context.Context, userID, groupID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok || !slices.Contains(u.GroupIDs, groupID) {
		return repository.ErrNotFound
	}
	u.GroupIDs = slices.DeleteFunc(u.GroupIDs, func(id string) bool { return id == groupID })
	return nil
}

// --- Группы ---

type memGroups struct{ s *memStore }

func (r *memGroups) nameTaken(id, name string) bool {
	for _, g := range r.s.groups {
		if g.ID != id && g.Name == name {
			return true
		}
	}
	return false
}

func (r *memGroups) Create(_ context.Context, g *model.Group) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(g.ID, g.Name) {
		return conflict("группа с таким именем уже существует")
	}
	r.s.groups[g.ID] = cloneGroup(g)
	return nil
}

func (r *memGroups) GetByID(_ context.Context, id string) (*model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.groups[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneGroup(g), nil
}

func (r *memGroups) GetByName(_ context.Context, name string) (*model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, g := range r.s.groups {
		if g.Name == name {
			return cloneGroup(g), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memGroups) List(_ context.Context) ([]*model.Group, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedValues(r.s.groups, cloneGroup, func(g *model.Group) string { return g.Name }), nil
}

func (r *memGroups) Rename(_ context.Context, id, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.groups[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.nameTaken(id, name) {
		return conflict("группа с таким именем уже существует")
	}
	g.Name = name
	return nil
}

func (r *memGroups) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.groups[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.groups, id)
	drop := func(ids []string) []string {
		return slices.DeleteFunc(ids, func(v string) bool { return v == id })
	}
	for _, u := range r.s.users {
		u.GroupIDs = drop(u.GroupIDs)
	}
	for _, b := range r.s.blocks {
		b.AllowedGroupIDs = drop(b.AllowedGroupIDs)
	}
	return nil
}

func (r *memGroups) SetAllowedBlocks(_ context.Context, groupID string, blockIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range blockIDs {
		if _, ok := r.s.blocks[id]; !ok {
			return invalidRef("блок наблюдений")
		}
	}
	for id, b := range r.s.blocks {
		b.AllowedGroupIDs = slices.DeleteFunc(b.AllowedGroupIDs, func(v string) bool { return v == groupID })
		if slices.Contains(blockIDs, id) {
			b.AllowedGroupIDs = append(b.AllowedGroupIDs, groupID)
		}
	}
	return nil
}

func (r *memGroups) AllowedBlocks(_ context.Context, groupID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := []string{}
	for id, b := range r.s.blocks {
		if slices.Contains(b.AllowedGroupIDs, groupID) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// --- Исследователи ---

type memResearchers struct{ s *memStore }

func (r *memResearchers) Create(_ context.Context, res *model.Researcher) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if res.UserID != nil {
		if _, ok := r.s.users[*res.UserID]; !ok {
			return invalidRef("учётная запись")
		}
		for _, other := range r.s.researchers {
			if other.UserID != nil && *other.UserID == *res.UserID {
				return conflict("у учётной записи уже есть исследователь")
			}
		}
	}
	r.s.researchers[res.ID] = cloneResearcher(res)
	return nil
}

func (r *memResearchers) GetByID(_ context.Context, id string) (*model.Researcher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.researchers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneResearcher(res), nil
}

func (r *memResearchers) GetByUserID(_ context.Context, userID string) (*model.Researcher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range r.s.researchers {
		if res.UserID != nil && *res.UserID == userID {
			return cloneResearcher(res), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memResearchers) List(_ context.Context) ([]*model.Researcher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedValues(r.s.researchers, cloneResearcher, func(res *model.Researcher) string { return res.Name }), nil
}

func (r *memResearchers) ListByRun(_ context.Context, runID string) ([]*model.Researcher, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[runID]
	if !ok {
		return []*model.Researcher{}, nil
	}
	all := sortedValues(r.s.researchers, cloneResearcher, func(res *model.Researcher) string { return res.Name })
	return slices.DeleteFunc(all, func(res *model.Researcher) bool { return !slices.Contains(run.ResearcherIDs, res.ID) }), nil
}

func (r *memResearchers) Update(_ context.Context, res *model.Researcher) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.researchers[res.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range res.DeniedBlockIDs {
		if _, ok := r.s.blocks[id]; !ok {
			return invalidRef("блок наблюдений")
		}
	}
	current.Role = res.Role
	current.Institution = res.Institution
	current.IsPhD = res.IsPhD
	current.Comments = res.Comments
	current.DeniedBlockIDs = slices.Clone(res.DeniedBlockIDs)
	return nil
}

func (r *memResearchers) SyncFromUser(_ context.Context, userID, name, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range r.s.researchers {
		if res.UserID != nil && *res.UserID == userID {
			res.Name = name
			res.Email = email
		}
	}
	return nil
}

func (r *memResearchers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.researchers[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.researchers, id)
	for _, run := range r.s.runs {
		run.ResearcherIDs = slices.DeleteFunc(run.ResearcherIDs, func(v string) bool { return v == id })
	}
	return nil
}

// --- Каталог оборудования ---

type memObservatories struct{ s *memStore }

func (r *memObservatories) nameTaken(o *model.Observatory) bool {
	for _, other := range r.s.observatories {
		if other.ID != o.ID && other.Name == o.Name {
			return true
		}
	}
	return false
}

func (r *memObservatories) Create(_ context.Context, o *model.Observatory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(o) {
		return conflict("обсерватория с таким именем уже существует")
	}
	r.s.observatories[o.ID] = cloneObservatory(o)
	return nil
}

func (r *memObservatories) GetByID(_ context.Context, id string) (*model.Observatory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.observatories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneObservatory(o), nil
}

func (r *memObservatories) List(_ context.Context) ([]*model.Observatory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedValues(r.s.observatories, cloneObservatory, func(o *model.Observatory) string { return o.Name }), nil
}

func (r *memObservatories) Update(_ context.Context, o *model.Observatory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.observatories[o.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.nameTaken(o) {
		return conflict("обсерватория с таким именем уже существует")
	}
	r.s.observatories[o.ID] = cloneObservatory(o)
	return nil
}

func (r *memObservatories) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.observatories[id]; !ok {
		return repository.ErrNotFound
	}
	for _, t := range r.s.telescopes {
		if t.ObservatoryID == id {
			return inUse("обсерватория")
		}
	}
	delete(r.s.observatories, id)
	return nil
}

type memTelescopes struct{ s *memStore }

func (r *memTelescopes) check(t *model.Telescope) error {
	if _, ok := r.s.observatories[t.ObservatoryID]; !ok {
		return invalidRef("телескоп")
	}
	return nil
}

func (r *memTelescopes) Create(_ context.Context, t *model.Telescope) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.check(t); err != nil {
		return err
	}
	r.s.telescopes[t.ID] = cloneTelescope(t)
	return nil
}

func (r *memTelescopes) GetByID(_ context.Context, id string) (*model.Telescope, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.telescopes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTelescope(t), nil
}

func (r *memTelescopes) List(_ context.Context, observatoryID *string) ([]*model.Telescope, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := sortedValues(r.s.telescopes, cloneTelescope, func(t *model.Telescope) string { return t.Name })
	if observatoryID == nil {
		return all, nil
	}
	return slices.DeleteFunc(all, func(t *model.Telescope) bool { return t.ObservatoryID != *observatoryID }), nil
}

func (r *memTelescopes) Update(_ context.Context, t *model.Telescope) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.telescopes[t.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.check(t); err != nil {
		return err
	}
	r.s.telescopes[t.ID] = cloneTelescope(t)
	return nil
}

func (r *memTelescopes) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.telescopes[id]; !ok {
		return repository.ErrNotFound
	}
	for _, i := range r.s.instruments {
		if i.TelescopeID == id {
			return inUse("телескоп")
		}
	}
	delete(r.s.telescopes, id)
	return nil
}

type memInstruments struct{ s *memStore }

func (r *memInstruments) Create(_ context.Context, i *model.Instrument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.telescopes[i.TelescopeID]; !ok {
		return invalidRef("инструмент")
	}
	r.s.instruments[i.ID] = cloneInstrument(i)
	return nil
}

func (r *memInstruments) GetByID(_ context.Context, id string) (*model.Instrument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.instruments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneInstrument(i), nil
}

func (r *memInstruments) List(_ context.Context, telescopeID *string) ([]*model.Instrument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := sortedValues(r.s.instruments, cloneInstrument, func(i *model.Instrument) string { return i.Name })
	if telescopeID == nil {
		return all, nil
	}
	return slices.DeleteFunc(all, func(i *model.Instrument) bool { return i.TelescopeID != *telescopeID }), nil
}

func (r *memInstruments) ListByIDs(_ context.Context, ids []string) ([]*model.Instrument, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := sortedValues(r.s.instruments, cloneInstrument, func(i *model.Instrument) string { return i.Name })
	return slices.DeleteFunc(all, func(i *model.Instrument) bool { return !slices.Contains(ids, i.ID) }), nil
}

func (r *memInstruments) Update(_ context.Context, i *model.Instrument) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.instruments[i.ID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.telescopes[i.TelescopeID]; !ok {
		return invalidRef("инструмент")
	}
	r.s.instruments[i.ID] = cloneInstrument(i)
	return nil
}

func (r *memInstruments) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.instruments[id]; !ok {
		return repository.ErrNotFound
	}
	for _, run := range r.s.runs {
		if run.InstrumentID == id {
			return inUse("инструмент")
		}
	}
	delete(r.s.instruments, id)
	return nil
}

// --- Наблюдения ---

type memRuns struct{ s *memStore }

func (r *memRuns) check(run *model.ObservingRun) error {
	if _, ok := r.s.instruments[run.InstrumentID]; !ok {
		return invalidRef("наблюдательная кампания")
	}
	for _, id := range run.ResearcherIDs {
		if _, ok := r.s.researchers[id]; !ok {
			return invalidRef("исследователь")
		}
	}
	return nil
}

func (r *memRuns) Create(_ context.Context, run *model.ObservingRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.check(run); err != nil {
		return err
	}
	r.s.runs[run.ID] = cloneRun(run)
	return nil
}

func (r *memRuns) GetByID(_ context.Context, id string) (*model.ObservingRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run, ok := r.s.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRun(run), nil
}

func (r *memRuns) List(_ context.Context, instrumentID *string) ([]*model.ObservingRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := sortedValues(r.s.runs, cloneRun, func(run *model.ObservingRun) string { return run.Name })
	if instrumentID == nil {
		return all, nil
	}
	return slices.DeleteFunc(all, func(run *model.ObservingRun) bool { return run.InstrumentID != *instrumentID }), nil
}

func (r *memRuns) ListByIDs(_ context.Context, ids []string) ([]*model.ObservingRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := sortedValues(r.s.runs, cloneRun, func(run *model.ObservingRun) string { return run.Name })
	return slices.DeleteFunc(all, func(run *model.ObservingRun) bool { return !slices.Contains(ids, run.ID) }), nil
}

func (r *memRuns) Update(_ context.Context, run *model.ObservingRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.runs[run.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.check(run); err != nil {
		return err
	}
	r.s.runs[run.ID] = cloneRun(run)
	return nil
}

func (r *memRuns) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.runs[id]; !ok {
		return repository.ErrNotFound
	}
	for _, b := range r.s.blocks {
		if b.RunID == id {
			return inUse("наблюдательная кампания")
		}
	}
	delete(r.s.runs, id)
	return nil
}

type memBlocks struct{ s *memStore }

func (r *memBlocks) check(b *model.ObservingBlock) error {
	if _, ok := r.s.runs[b.RunID]; !ok {
		return invalidRef("блок наблюдений")
	}
	for _, id := range b.TargetIDs {
		if _, ok := r.s.targets[id]; !ok {
			return invalidRef("цель")
		}
	}
	for _, id := range b.AllowedGroupIDs {
		if _, ok := r.s.groups[id]; !ok {
			return invalidRef("группа")
		}
	}
	return nil
}

func (r *memBlocks) Create(_ context.Context, b *model.ObservingBlock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.check(b); err != nil {
		return err
	}
	r.s.blocks[b.ID] = cloneBlock(b)
	return nil
}

func (r *memBlocks) GetByID(_ context.Context, id string) (*model.ObservingBlock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.blocks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneBlock(b), nil
}

func (r *memBlocks) List(_ context.Context, filter repository.BlockFilter) ([]*model.ObservingBlock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := sortedValues(r.s.blocks, cloneBlock, func(b *model.ObservingBlock) string { return b.Name })
	return slices.DeleteFunc(all, func(b *model.ObservingBlock) bool {
		if filter.RunID != nil && b.RunID != *filter.RunID {
			return true
		}
		return filter.TargetID != nil && !slices.Contains(b.TargetIDs, *filter.TargetID)
	}), nil
}

func (r *memBlocks) Update(_ context.Context, b *model.ObservingBlock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.blocks[b.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.check(b); err != nil {
		return err
	}
	r.s.blocks[b.ID] = cloneBlock(b)
	return nil
}

func (r *memBlocks) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.blocks[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.blocks, id)
	for _, res := range r.s.researchers {
		res.DeniedBlockIDs = slices.DeleteFunc(res.DeniedBlockIDs, func(v string) bool { return v == id })
	}
	return nil
}

// --- Цели ---

type memTargets struct{ s *memStore }

func (r *memTargets) Create(_ context.Context, t *model.Target) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.targets {
		if other.Name == t.Name || other.FolderName == t.FolderName {
			return conflict("цель с таким именем или каталогом уже существует")
		}
	}
	r.s.targets[t.ID] = cloneTarget(t)
	return nil
}

func (r *memTargets) GetByID(_ context.Context, id string) (*model.Target, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.targets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTarget(t), nil
}

func (r *memTargets) GetByFolderName(_ context.Context, folder string) (*model.Target, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.targets {
		if t.FolderName == folder {
			return cloneTarget(t), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memTargets) List(_ context.Context) ([]*model.Target, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedValues(r.s.targets, cloneTarget, func(t *model.Target) string { return t.Name }), nil
}

func (r *memTargets) Update(_ context.Context, t *model.Target) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.targets[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	c := cloneTarget(t)
	c.Name = current.Name
	c.FolderName = current.FolderName
	c.Image = current.Image
	c.DatafilesPath = current.DatafilesPath
	r.s.targets[t.ID] = c
	return nil
}

func (r *memTargets) UpdateFiles(_ context.Context, id, image, datafilesPath string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.targets[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Image = image
	t.DatafilesPath = datafilesPath
	return nil
}

func (r *memTargets) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.targets[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.targets, id)
	for _, b := range r.s.blocks {
		b.TargetIDs = slices.DeleteFunc(b.TargetIDs, func(v string) bool { return v == id })
	}
	return nil
}

// groupNames возвращает имена всех групп по алфавиту.
func (s *memStore) groupNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.groups))
	for _, g := range s.groups {
		names = append(names, g.Name)
	}
	slices.Sort(names)
	return names
}
