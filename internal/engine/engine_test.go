package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shiftdesk/shiftbot/internal/backend"
	"github.com/shiftdesk/shiftbot/internal/models"
	"github.com/shiftdesk/shiftbot/internal/session"
)

const testSecret = "1517"

// mockBackend implements BackendClient for engine tests.
type mockBackend struct {
	mu          sync.Mutex
	users       map[string]models.UserRecord
	registered  []models.RegistrationRequest
	registerErr error
}

func newMockBackend() *mockBackend {
	return &mockBackend{users: make(map[string]models.UserRecord)}
}

func (m *mockBackend) FindByIdentity(ctx context.Context, identity string) (*models.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[identity]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *mockBackend) Register(ctx context.Context, reg models.RegistrationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registerErr != nil {
		return m.registerErr
	}
	m.registered = append(m.registered, reg)
	return nil
}

func (m *mockBackend) registerCalls() []models.RegistrationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RegistrationRequest, len(m.registered))
	copy(out, m.registered)
	return out
}

func newTestEngine() (*Engine, *session.Store, *mockBackend) {
	st := session.NewStore()
	mb := newMockBackend()
	eng := NewEngine(st, mb, WithSecretCode(testSecret))
	return eng, st, mb
}

func TestStartCreatesSessionForNewUser(t *testing.T) {
	eng, st, _ := newTestEngine()

	reply := eng.HandleStart(context.Background(), "111")

	if !strings.Contains(reply.Text, "first name") {
		t.Errorf("intro should ask for first name, got %q", reply.Text)
	}
	if reply.Suggestions != nil {
		t.Error("intro should not carry suggestions")
	}
	sess, ok := st.Get("111")
	if !ok {
		t.Fatal("expected a session after start")
	}
	if sess.State != models.StateAwaitingFirstName {
		t.Errorf("expected state %q, got %q", models.StateAwaitingFirstName, sess.State)
	}
	if st.Len() != 1 {
		t.Errorf("expected exactly one session, got %d", st.Len())
	}
}

func TestStartExistingUserCreatesNoSession(t *testing.T) {
	eng, st, mb := newTestEngine()
	mb.users["111"] = models.UserRecord{
		TelegramID: "111", FirstName: "Ada", LastName: "Lovelace", Position: "Manager",
	}

	reply := eng.HandleStart(context.Background(), "111")

	if st.Len() != 0 {
		t.Errorf("no session should be created for a registered user, got %d", st.Len())
	}
	for _, want := range []string{"Ada", "Lovelace", "Manager"} {
		if !strings.Contains(reply.Text, want) {
			t.Errorf("reply should echo %q, got %q", want, reply.Text)
		}
	}
}

func TestHappyPathRegistration(t *testing.T) {
	eng, st, mb := newTestEngine()
	ctx := context.Background()

	eng.HandleStart(ctx, "111")

	reply, ok := eng.HandleText(ctx, "111", "Ada")
	if !ok || !strings.Contains(reply.Text, "last name") {
		t.Fatalf("expected last name prompt, got %q", reply.Text)
	}

	reply, _ = eng.HandleText(ctx, "111", "Lovelace")
	if !strings.Contains(reply.Text, "position") {
		t.Fatalf("expected position prompt, got %q", reply.Text)
	}
	if len(reply.Suggestions) != 3 {
		t.Fatalf("position prompt should carry 3 suggestions, got %v", reply.Suggestions)
	}

	reply, _ = eng.HandleText(ctx, "111", "Manager")
	if !strings.Contains(reply.Text, "secret code") {
		t.Fatalf("expected secret prompt, got %q", reply.Text)
	}
	if reply.Suggestions != nil {
		t.Error("secret prompt should not carry suggestions")
	}

	reply, _ = eng.HandleText(ctx, "111", testSecret)
	if !strings.Contains(reply.Text, "Registration complete") {
		t.Fatalf("expected success reply, got %q", reply.Text)
	}

	calls := mb.registerCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 register call, got %d", len(calls))
	}
	want := models.RegistrationRequest{
		TelegramID: "111", FirstName: "Ada", LastName: "Lovelace",
		Position: "Manager", SecretCode: testSecret,
	}
	if calls[0] != want {
		t.Errorf("register call mismatch\nexpected: %+v\nactual:   %+v", want, calls[0])
	}

	if st.Len() != 0 {
		t.Error("session should be deleted after successful registration")
	}
}

func TestWrongSecretNeverRegisters(t *testing.T) {
	eng, st, mb := newTestEngine()
	ctx := context.Background()

	eng.HandleStart(ctx, "111")
	eng.HandleText(ctx, "111", "Ada")
	eng.HandleText(ctx, "111", "Lovelace")
	eng.HandleText(ctx, "111", "Courier")

	reply, _ := eng.HandleText(ctx, "111", "wrong-code")
	if !strings.Contains(reply.Text, "Invalid secret code") {
		t.Errorf("expected rejection, got %q", reply.Text)
	}
	if len(mb.registerCalls()) != 0 {
		t.Error("register must not be called with a wrong secret")
	}
	if st.Len() != 0 {
		t.Error("session should be deleted after a wrong secret")
	}

	// No retry within the same flow: further text is unsolicited.
	if _, ok := eng.HandleText(ctx, "111", testSecret); ok {
		t.Error("flow should be over after a wrong secret")
	}
}

func TestSecretComparisonIsExact(t *testing.T) {
	eng, _, mb := newTestEngine()
	ctx := context.Background()

	eng.HandleStart(ctx, "111")
	eng.HandleText(ctx, "111", "Ada")
	eng.HandleText(ctx, "111", "Lovelace")
	eng.HandleText(ctx, "111", "Courier")
	eng.HandleText(ctx, "111", " "+testSecret)

	if len(mb.registerCalls()) != 0 {
		t.Error("secret with leading whitespace must not match")
	}
}

func TestOtherKeepsFlowAliveForOneFreeTextInput(t *testing.T) {
	eng, st, mb := newTestEngine()
	ctx := context.Background()

	eng.HandleStart(ctx, "111")
	eng.HandleText(ctx, "111", "Ada")
	eng.HandleText(ctx, "111", "Lovelace")

	reply, _ := eng.HandleText(ctx, "111", "Other")
	if !strings.Contains(reply.Text, "type your position") {
		t.Fatalf("expected free-text prompt, got %q", reply.Text)
	}
	if reply.Suggestions != nil {
		t.Error("free-text prompt should not carry suggestions")
	}
	sess, _ := st.Get("111")
	if sess.State != models.StateAwaitingPositionFreeText {
		t.Errorf("expected free-text state, got %q", sess.State)
	}

	// The next input is accepted verbatim, even the literal "Other".
	reply, _ = eng.HandleText(ctx, "111", "Other")
	if !strings.Contains(reply.Text, "secret code") {
		t.Fatalf("free-text position should be accepted, got %q", reply.Text)
	}
	sess, _ = st.Get("111")
	if sess.Position != "Other" {
		t.Errorf("expected position %q, got %q", "Other", sess.Position)
	}

	eng.HandleText(ctx, "111", testSecret)
	calls := mb.registerCalls()
	if len(calls) != 1 || calls[0].Position != "Other" {
		t.Errorf("expected registration with position Other, got %+v", calls)
	}
}

func TestCancelFromEveryActiveState(t *testing.T) {
	steps := [][]string{
		{},                             // StateAwaitingFirstName
		{"Ada"},                        // StateAwaitingLastName
		{"Ada", "Lovelace"},            // StateAwaitingPosition
		{"Ada", "Lovelace", "Other"},   // StateAwaitingPositionFreeText
		{"Ada", "Lovelace", "Courier"}, // StateAwaitingSecret
	}

	for i, inputs := range steps {
		eng, st, mb := newTestEngine()
		ctx := context.Background()

		eng.HandleStart(ctx, "111")
		for _, input := range inputs {
			eng.HandleText(ctx, "111", input)
		}

		reply := eng.HandleCancel(ctx, "111")
		if !strings.Contains(reply.Text, "cancelled") {
			t.Errorf("step %d: expected cancellation reply, got %q", i, reply.Text)
		}
		if st.Len() != 0 {
			t.Errorf("step %d: session should be deleted on cancel", i)
		}
		if len(mb.registerCalls()) != 0 {
			t.Errorf("step %d: cancel must not produce a backend call", i)
		}
	}
}

func TestCancelWithoutActiveFlow(t *testing.T) {
	eng, _, _ := newTestEngine()
	reply := eng.HandleCancel(context.Background(), "111")
	if !strings.Contains(reply.Text, "cancelled") {
		t.Errorf("cancel without a flow should still reply, got %q", reply.Text)
	}
}

func TestStartMidFlowRestarts(t *testing.T) {
	eng, st, _ := newTestEngine()
	ctx := context.Background()

	eng.HandleStart(ctx, "111")
	eng.HandleText(ctx, "111", "Ada")
	eng.HandleText(ctx, "111", "Lovelace")

	eng.HandleStart(ctx, "111")

	sess, ok := st.Get("111")
	if !ok {
		t.Fatal("expected a fresh session after restart")
	}
	if sess.State != models.StateAwaitingFirstName {
		t.Errorf("restart should return to first name, got %q", sess.State)
	}
	if sess.FirstName != "" || sess.LastName != "" {
		t.Errorf("restart should discard collected fields, got %+v", sess)
	}
	if st.Len() != 1 {
		t.Errorf("restart should leave exactly one session, got %d", st.Len())
	}
}

func TestEmptyTextReprompts(t *testing.T) {
	eng, st, _ := newTestEngine()
	ctx := context.Background()

	eng.HandleStart(ctx, "111")

	reply, ok := eng.HandleText(ctx, "111", "   ")
	if !ok {
		t.Fatal("blank input should still produce a reply")
	}
	if !strings.Contains(reply.Text, "first name") {
		t.Errorf("expected a re-prompt for the first name, got %q", reply.Text)
	}

	sess, _ := st.Get("111")
	if sess.State != models.StateAwaitingFirstName {
		t.Errorf("blank input must not advance the state, got %q", sess.State)
	}
	if sess.FirstName != "" {
		t.Errorf("blank input must not be stored, got %q", sess.FirstName)
	}
}

func TestOverlongNameReprompts(t *testing.T) {
	eng, st, _ := newTestEngine()
	ctx := context.Background()

	eng.HandleStart(ctx, "111")
	eng.HandleText(ctx, "111", strings.Repeat("a", models.MaxNameLength+1))

	sess, _ := st.Get("111")
	if sess.State != models.StateAwaitingFirstName {
		t.Errorf("over-long input must not advance the state, got %q", sess.State)
	}
}

func TestUnsolicitedTextProducesNoReply(t *testing.T) {
	eng, _, _ := newTestEngine()
	if _, ok := eng.HandleText(context.Background(), "111", "hello"); ok {
		t.Error("text without an active session should produce no reply")
	}
}

func TestSuggestionsOnlyOnPositionPrompt(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	replies := []models.Reply{eng.HandleStart(ctx, "111")}
	for _, input := range []string{"Ada", "Lovelace", "Courier", testSecret} {
		r, _ := eng.HandleText(ctx, "111", input)
		replies = append(replies, r)
	}

	for i, r := range replies {
		isPositionPrompt := strings.Contains(r.Text, "choose your position")
		if isPositionPrompt && len(r.Suggestions) == 0 {
			t.Errorf("reply %d: position prompt should carry suggestions", i)
		}
		if !isPositionPrompt && r.Suggestions != nil {
			t.Errorf("reply %d: unexpected suggestions on %q", i, r.Text)
		}
	}
}

func TestBackendRejectionSurfacesMessage(t *testing.T) {
	eng, st, mb := newTestEngine()
	mb.registerErr = &backend.BackendError{StatusCode: 400, Message: "User already exists"}
	ctx := context.Background()

	eng.HandleStart(ctx, "111")
	eng.HandleText(ctx, "111", "Ada")
	eng.HandleText(ctx, "111", "Lovelace")
	eng.HandleText(ctx, "111", "Courier")

	reply, _ := eng.HandleText(ctx, "111", testSecret)
	if !strings.Contains(reply.Text, "User already exists") {
		t.Errorf("backend message should surface to the user, got %q", reply.Text)
	}
	if st.Len() != 0 {
		t.Error("session should be deleted after a backend rejection")
	}
}

func TestBackendTransportFailureIsGeneric(t *testing.T) {
	eng, st, mb := newTestEngine()
	mb.registerErr = fmt.Errorf("dial tcp: connection refused")
	ctx := context.Background()

	eng.HandleStart(ctx, "111")
	eng.HandleText(ctx, "111", "Ada")
	eng.HandleText(ctx, "111", "Lovelace")
	eng.HandleText(ctx, "111", "Courier")

	reply, _ := eng.HandleText(ctx, "111", testSecret)
	if strings.Contains(reply.Text, "connection refused") {
		t.Errorf("transport details must not leak to the user: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "try again later") {
		t.Errorf("expected generic failure message, got %q", reply.Text)
	}
	if st.Len() != 0 {
		t.Error("session should be deleted after a transport failure")
	}
}
