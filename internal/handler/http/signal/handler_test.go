package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"orgchat-backend/internal/domain"
	signalsvc "orgchat-backend/internal/service/signal"
	"orgchat-backend/pkg/push"
)

// MockCallStore is a mock implementation of signalsvc.CallStore
type MockCallStore struct {
	mock.Mock
}

func (m *MockCallStore) SetCallState(ctx context.Context, userID uuid.UUID, state *domain.CallState) error {
	args := m.Called(ctx, userID, state)
	return args.Error(0)
}

func (m *MockCallStore) GetCallState(ctx context.Context, userID uuid.UUID) (*domain.CallState, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallState), args.Error(1)
}

func (m *MockCallStore) DeleteCallState(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCallStore) SetPendingCall(ctx context.Context, recipientID uuid.UUID, call *domain.PendingCall) error {
	args := m.Called(ctx, recipientID, call)
	return args.Error(0)
}

func (m *MockCallStore) GetPendingCall(ctx context.Context, recipientID uuid.UUID) (*domain.PendingCall, error) {
	args := m.Called(ctx, recipientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PendingCall), args.Error(1)
}

func (m *MockCallStore) DeletePendingCall(ctx context.Context, recipientID uuid.UUID) error {
	args := m.Called(ctx, recipientID)
	return args.Error(0)
}

// MockDirectory is a mock implementation of signalsvc.Directory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) GetDisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

// MockPublisher is a mock implementation of signalsvc.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error {
	args := m.Called(ctx, userID, event, payload)
	return args.Error(0)
}

// MockPushSender is a mock implementation of signalsvc.PushSender
type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) SendIncomingCall(ctx context.Context, data *push.IncomingCallData, recipientID uuid.UUID) error {
	args := m.Called(ctx, data, recipientID)
	return args.Error(0)
}

func setupRouter(store *MockCallStore, directory *MockDirectory, publisher *MockPublisher, pushSvc *MockPushSender, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)

	service := signalsvc.NewService(store, directory, publisher, pushSvc)
	handler := NewHandler(service, store, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set("user_id", userID)
		}
	})
	r.POST("/v1/calls/signal", handler.Signal)
	r.GET("/v1/calls/pending", handler.PendingCall)
	r.GET("/v1/calls/state", handler.CallState)
	return r
}

func postSignal(r *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/v1/calls/signal", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// TestSignal_UnknownEvent tests that an unrecognized event name yields a 400
// naming the event
func TestSignal_UnknownEvent(t *testing.T) {
	r := setupRouter(new(MockCallStore), new(MockDirectory), new(MockPublisher), new(MockPushSender), uuid.New())

	w := postSignal(r, gin.H{"event": "call:mute"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Unknown event: call:mute"}`, w.Body.String())
}

// TestSignal_MissingFields tests that an invite without its required fields
// yields a 400 with the missing-fields message
func TestSignal_MissingFields(t *testing.T) {
	r := setupRouter(new(MockCallStore), new(MockDirectory), new(MockPublisher), new(MockPushSender), uuid.New())

	w := postSignal(r, gin.H{"event": "call:invite"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing fields"}`, w.Body.String())
}

// TestSignal_MalformedRecipientID tests that a non-uuid id reads as missing
func TestSignal_MalformedRecipientID(t *testing.T) {
	r := setupRouter(new(MockCallStore), new(MockDirectory), new(MockPublisher), new(MockPushSender), uuid.New())

	w := postSignal(r, gin.H{
		"event":           "call:invite",
		"recipient_id":    "not-a-uuid",
		"conversation_id": uuid.New().String(),
		"offer":           gin.H{"type": "offer"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing fields"}`, w.Body.String())
}

// TestSignal_Unauthenticated tests the 401 path
func TestSignal_Unauthenticated(t *testing.T) {
	r := setupRouter(new(MockCallStore), new(MockDirectory), new(MockPublisher), new(MockPushSender), uuid.Nil)

	w := postSignal(r, gin.H{"event": "call:invite"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestSignal_InviteSuccess tests the happy path response shape
func TestSignal_InviteSuccess(t *testing.T) {
	store := new(MockCallStore)
	directory := new(MockDirectory)
	publisher := new(MockPublisher)
	pushSvc := new(MockPushSender)
	callerID := uuid.New()
	recipientID := uuid.New()

	directory.On("GetDisplayName", mock.Anything, callerID).Return("Alice", nil)
	store.On("SetPendingCall", mock.Anything, recipientID, mock.Anything).Return(nil)
	store.On("SetCallState", mock.Anything, callerID, mock.Anything).Return(nil)
	publisher.On("PublishToUser", mock.Anything, recipientID, "call:invite", mock.Anything).Return(nil)
	pushSvc.On("SendIncomingCall", mock.Anything, mock.Anything, recipientID).Return(nil)

	r := setupRouter(store, directory, publisher, pushSvc, callerID)

	w := postSignal(r, gin.H{
		"event":           "call:invite",
		"recipient_id":    recipientID.String(),
		"conversation_id": uuid.New().String(),
		"call_type":       "video",
		"offer":           gin.H{"type": "offer", "sdp": "v=0"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	store.AssertExpectations(t)
}

// TestSignal_StoreFailure tests that a state write failure yields the opaque
// 500 signaling error
func TestSignal_StoreFailure(t *testing.T) {
	store := new(MockCallStore)
	directory := new(MockDirectory)
	callerID := uuid.New()
	recipientID := uuid.New()

	directory.On("GetDisplayName", mock.Anything, callerID).Return("Alice", nil)
	store.On("SetPendingCall", mock.Anything, recipientID, mock.Anything).Return(errors.New("redis degraded"))

	r := setupRouter(store, directory, new(MockPublisher), new(MockPushSender), callerID)

	w := postSignal(r, gin.H{
		"event":           "call:invite",
		"recipient_id":    recipientID.String(),
		"conversation_id": uuid.New().String(),
		"offer":           gin.H{"type": "offer"},
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Erreur de signalisation"}`, w.Body.String())
}

// TestSignal_EndSuccess tests relaying a hangup
func TestSignal_EndSuccess(t *testing.T) {
	store := new(MockCallStore)
	publisher := new(MockPublisher)
	senderID := uuid.New()
	targetID := uuid.New()

	store.On("DeleteCallState", mock.Anything, senderID).Return(nil)
	store.On("DeleteCallState", mock.Anything, targetID).Return(nil)
	publisher.On("PublishToUser", mock.Anything, targetID, "call:ended", mock.Anything).Return(nil)

	r := setupRouter(store, new(MockDirectory), publisher, new(MockPushSender), senderID)

	w := postSignal(r, gin.H{
		"event":          "call:end",
		"target_user_id": targetID.String(),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

// TestPendingCall_Consumes tests that reading a pending call removes it
func TestPendingCall_Consumes(t *testing.T) {
	store := new(MockCallStore)
	userID := uuid.New()
	callerID := uuid.New()

	store.On("GetPendingCall", mock.Anything, userID).Return(&domain.PendingCall{
		CallerID:       callerID,
		CallerName:     "Alice",
		ConversationID: uuid.New(),
		CallType:       domain.CallTypeAudio,
	}, nil)
	store.On("DeletePendingCall", mock.Anything, userID).Return(nil)

	r := setupRouter(store, new(MockDirectory), new(MockPublisher), new(MockPushSender), userID)

	req := httptest.NewRequest(http.MethodGet, "/v1/calls/pending", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), callerID.String())
	store.AssertExpectations(t)
}

// TestPendingCall_Empty tests the no-pending-call response
func TestPendingCall_Empty(t *testing.T) {
	store := new(MockCallStore)
	userID := uuid.New()

	store.On("GetPendingCall", mock.Anything, userID).Return(nil, nil)

	r := setupRouter(store, new(MockDirectory), new(MockPublisher), new(MockPushSender), userID)

	req := httptest.NewRequest(http.MethodGet, "/v1/calls/pending", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertNotCalled(t, "DeletePendingCall")
}

// TestCallState_InCall tests reporting an active call
func TestCallState_InCall(t *testing.T) {
	store := new(MockCallStore)
	userID := uuid.New()
	peerID := uuid.New()

	store.On("GetCallState", mock.Anything, userID).Return(&domain.CallState{
		ConversationID: uuid.New(),
		PeerID:         peerID,
	}, nil)

	r := setupRouter(store, new(MockDirectory), new(MockPublisher), new(MockPushSender), userID)

	req := httptest.NewRequest(http.MethodGet, "/v1/calls/state", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"in_call":true`)
	assert.Contains(t, w.Body.String(), peerID.String())
	store.AssertExpectations(t)
}

// TestCallState_Idle tests the not-in-a-call response
func TestCallState_Idle(t *testing.T) {
	store := new(MockCallStore)
	userID := uuid.New()

	store.On("GetCallState", mock.Anything, userID).Return(nil, nil)

	r := setupRouter(store, new(MockDirectory), new(MockPublisher), new(MockPushSender), userID)

	req := httptest.NewRequest(http.MethodGet, "/v1/calls/state", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"in_call":false`)
}
