package whatsapp

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClock returns a fixed, manually advanced time and records sleeps
// instead of performing them.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) SleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

// fakeStore is an in-memory SessionStore.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]interface{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]map[string]map[string]interface{})}
}

func (s *fakeStore) Get(_ context.Context, collection, id string) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, errors.New("document not found")
	}
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) Set(_ context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]map[string]interface{})
	}
	doc := s.docs[collection][id]
	if doc == nil || !merge {
		doc = make(map[string]interface{})
	}
	for k, v := range fields {
		doc[k] = v
	}
	s.docs[collection][id] = doc
	return nil
}

func (s *fakeStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[collection], id)
	return nil
}

func (s *fakeStore) Query(_ context.Context, collection, field, op string, value interface{}) ([]map[string]interface{}, error) {
	if op != "==" {
		return nil, errors.New("unsupported operator: " + op)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]interface{}
	for _, doc := range s.docs[collection] {
		if doc[field] == value {
			copied := make(map[string]interface{}, len(doc))
			for k, v := range doc {
				copied[k] = v
			}
			out = append(out, copied)
		}
	}
	return out, nil
}

func (s *fakeStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.docs[SessionCollection][id]
	if doc == nil {
		return ""
	}
	status, _ := doc["status"].(string)
	return status
}

// recordingPublisher captures published events in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, _ interface{}) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *recordingPublisher) Has(event string) bool {
	for _, e := range p.Events() {
		if e == event {
			return true
		}
	}
	return false
}

// recordingNotifier captures administrative notifications.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(event string, _ Session) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

// fakeClient is a scriptable ChatClient.
type fakeClient struct {
	mu           sync.Mutex
	state        string
	stateErr     error
	initErr      error
	sendErr      error
	sendErrFor   map[string]error
	registered   map[string]bool
	lookupErr    error
	lookupErrFor map[string]error
	sent         []string
	destroyed    int
	loggedOut    int
	nextID       int
}

func newFakeClient() *fakeClient {
	return &fakeClient{state: StateConnected, registered: make(map[string]bool)}
}

func (c *fakeClient) setState(state string, err error) {
	c.mu.Lock()
	c.state = state
	c.stateErr = err
	c.mu.Unlock()
}

func (c *fakeClient) register(phones ...string) {
	c.mu.Lock()
	for _, p := range phones {
		c.registered[p] = true
	}
	c.mu.Unlock()
}

func (c *fakeClient) Initialize(context.Context) error { return c.initErr }

func (c *fakeClient) GetState(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.stateErr
}

func (c *fakeClient) SendMessage(_ context.Context, destination, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.sendErrFor[destination]; ok {
		return "", err
	}
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.nextID++
	c.sent = append(c.sent, destination)
	return "MSG-" + destination, nil
}

func (c *fakeClient) SendImage(_ context.Context, destination string, _ []byte, _, _ string) (string, error) {
	return c.SendMessage(nil, destination, "")
}

func (c *fakeClient) SendDocument(_ context.Context, destination string, _ []byte, _, _ string) (string, error) {
	return c.SendMessage(nil, destination, "")
}

func (c *fakeClient) SendReaction(_ context.Context, destination, _, _ string) error {
	_, err := c.SendMessage(nil, destination, "")
	return err
}

func (c *fakeClient) IsRegisteredUser(_ context.Context, phone string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.lookupErrFor[phone]; ok {
		return false, err
	}
	if c.lookupErr != nil {
		return false, c.lookupErr
	}
	return c.registered[phone], nil
}

func (c *fakeClient) CreateGroup(_ context.Context, name string, _ []string) (string, error) {
	return name + "@g.us", nil
}

func (c *fakeClient) GetChats(context.Context) ([]Chat, error) { return nil, nil }

func (c *fakeClient) Destroy() {
	c.mu.Lock()
	c.destroyed++
	c.mu.Unlock()
}

func (c *fakeClient) Logout(context.Context) error {
	c.mu.Lock()
	c.loggedOut++
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) sentTargets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// scriptedFactory hands out pre-built clients (or errors) in order and keeps
// handing out the last entry once the script is exhausted.
type scriptedFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
	errs    []error
	calls   int
}

func (f *scriptedFactory) factory(_ context.Context, _ string, _ EventSink) (ChatClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return nil, f.errs[call]
	}
	if call >= len(f.clients) {
		call = len(f.clients) - 1
	}
	return f.clients[call], nil
}

func (f *scriptedFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	manager   *Manager
	registry  *Registry
	store     *fakeStore
	publisher *recordingPublisher
	notifier  *recordingNotifier
	clock     *fakeClock
	factory   *scriptedFactory
}

func newTestEnv(clients ...*fakeClient) *testEnv {
	if len(clients) == 0 {
		clients = []*fakeClient{newFakeClient()}
	}
	env := &testEnv{
		registry:  NewRegistry(),
		store:     newFakeStore(),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
		clock:     newFakeClock(),
		factory:   &scriptedFactory{clients: clients},
	}
	cfg := DefaultConfig()
	cfg.BulkDelayMin = time.Millisecond
	cfg.BulkDelayMax = time.Millisecond
	env.manager = NewManager(cfg, env.registry, env.store, env.publisher, env.clock, env.factory.factory)
	env.manager.SetNotifier(env.notifier)
	return env
}
