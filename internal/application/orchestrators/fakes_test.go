package orchestrators_test

import (
	"context"
	"sync"

	"crewportal/internal/adapters/crewapi"
	"crewportal/internal/domain/crew"
	"crewportal/internal/domain/session"
)

// fakeAPI is an in-memory crew API. Errors are injected per endpoint.
type fakeAPI struct {
	mu sync.Mutex

	errs      map[string]error
	exists    bool
	nextStep  string
	members   map[string]*crew.Member
	calls     []string
	registers []crewapi.RegisterRequest
	saved     map[crew.Section]map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		errs:    map[string]error{},
		members: map[string]*crew.Member{},
		saved:   map[crew.Section]map[string]string{},
	}
}

func (f *fakeAPI) call(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	return f.errs[endpoint]
}

func (f *fakeAPI) RegisterStart(_ context.Context, req crewapi.RegisterRequest) error {
	if err := f.call(crewapi.EndpointRegisterStart); err != nil {
		return err
	}
	f.registers = append(f.registers, req)
	return nil
}

func (f *fakeAPI) SetPassword(_ context.Context, _, _ string) error {
	return f.call(crewapi.EndpointSetPassword)
}

func (f *fakeAPI) Login(_ context.Context, creds crewapi.Credentials) (crewapi.LoginResult, error) {
	if err := f.call(crewapi.EndpointLogin); err != nil {
		return crewapi.LoginResult{}, err
	}
	return crewapi.LoginResult{
		AccessToken:  "access-" + creds.Username,
		RefreshToken: "refresh-" + creds.Username,
		User:         session.NewUser(creds.Username),
	}, nil
}

func (f *fakeAPI) CrewExists(_ context.Context, _, _ string) (bool, error) {
	if err := f.call(crewapi.EndpointCrewExists); err != nil {
		return false, err
	}
	return f.exists, nil
}

func (f *fakeAPI) MemberStatus(_ context.Context, _, _ string) (string, error) {
	if err := f.call(crewapi.EndpointMemberStatus); err != nil {
		return "", err
	}
	return f.nextStep, nil
}

func (f *fakeAPI) FetchProfile(_ context.Context, _, psn string) (*crew.Member, error) {
	if err := f.call(crewapi.EndpointFetchProfile); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[psn], nil
}

func (f *fakeAPI) SaveProfile(_ context.Context, _, _ string, section crew.Section, record map[string]string) error {
	if err := f.call(crewapi.EndpointSaveProfile + string(section)); err != nil {
		return err
	}
	f.saved[section] = record
	return nil
}

func (f *fakeAPI) called(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}

// memStore is an in-memory device store.
type memStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemStore() *memStore { return &memStore{values: map[string]string{}} }

func (m *memStore) Get(_ context.Context, deviceID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[deviceID+"/"+key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, deviceID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[deviceID+"/"+key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, deviceID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, deviceID+"/"+key)
	return nil
}
