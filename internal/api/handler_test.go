package api_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/api"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/domain"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/events"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/metrics"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/mocks"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/repository"
	"github.com/Di0golberald0/projeto13-batepapo-uol-api/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

type testServer struct {
	app          *fiber.App
	participants *mocks.MockParticipantRepository
	messages     *mocks.MockMessageRepository
}

func newTestServer(t *testing.T) *testServer {
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockParticipantRepository(ctrl)
	messages := mocks.NewMockMessageRepository(ctrl)

	reg := prometheus.NewRegistry()
	svc := service.NewChatService(participants, messages, events.Noop{}, metrics.New(reg), zap.NewNop(), 10*time.Second)
	app := api.NewServer(api.ServerDeps{
		Handler:  api.NewHandler(svc, time.Second, zap.NewNop()),
		Gatherer: reg,
		Log:      zap.NewNop(),
	})
	return &testServer{app: app, participants: participants, messages: messages}
}

func (s *testServer) do(t *testing.T, method, path, user, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("user", user)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func Test_PostParticipants(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().FindByName(gomock.Any(), "maria").Return(nil, repository.ErrNotFound)
		s.participants.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.messages.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

		resp := s.do(t, "POST", "/participants", "", `{"name":"maria"}`)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	})

	t.Run("name in use", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().FindByName(gomock.Any(), "maria").Return(&domain.Participant{Name: "maria"}, nil)

		resp := s.do(t, "POST", "/participants", "", `{"name":"maria"}`)
		require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("empty name", func(t *testing.T) {
		s := newTestServer(t)

		resp := s.do(t, "POST", "/participants", "", `{"name":""}`)
		require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		require.Equal(t, "validation failed", body["error"])
		require.Len(t, body["details"], 1)
	})

	t.Run("malformed body", func(t *testing.T) {
		s := newTestServer(t)

		resp := s.do(t, "POST", "/participants", "", `{"name":`)
		require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("store failure is a 500", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().FindByName(gomock.Any(), "maria").Return(nil, errors.New("socket closed"))

		resp := s.do(t, "POST", "/participants", "", `{"name":"maria"}`)
		require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		require.Contains(t, decode[map[string]string](t, resp)["error"], "socket closed")
	})
}

func Test_GetParticipants(t *testing.T) {
	t.Run("empty room", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().List(gomock.Any()).Return(nil, nil)

		resp := s.do(t, "GET", "/participants", "", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		require.Empty(t, decode[[]domain.Participant](t, resp))
	})

	t.Run("returns everyone in the body", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().List(gomock.Any()).Return([]domain.Participant{
			{Name: "maria", LastStatus: 1700000000000},
			{Name: "joao", LastStatus: 1700000005000},
		}, nil)

		resp := s.do(t, "GET", "/participants", "", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		got := decode[[]domain.Participant](t, resp)
		require.Len(t, got, 2)
		require.Equal(t, "maria", got[0].Name)
		require.Equal(t, int64(1700000000000), got[0].LastStatus)
		require.Equal(t, "joao", got[1].Name)
	})

	t.Run("store failure carries the cause", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().List(gomock.Any()).Return(nil, errors.New("socket closed"))

		resp := s.do(t, "GET", "/participants", "", "")
		require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		require.Contains(t, decode[map[string]string](t, resp)["error"], "socket closed")
	})
}

func Test_PostMessages(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().FindByName(gomock.Any(), "joao").Return(&domain.Participant{Name: "joao"}, nil)
		s.messages.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

		resp := s.do(t, "POST", "/messages", "joao", `{"to":"Todos","text":"oi","type":"message"}`)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	})

	t.Run("invalid type is never stored", func(t *testing.T) {
		s := newTestServer(t)
		s.messages.EXPECT().Insert(gomock.Any(), gomock.Any()).Times(0)

		resp := s.do(t, "POST", "/messages", "joao", `{"to":"Todos","text":"oi","type":"shout"}`)
		require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("unknown sender", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().FindByName(gomock.Any(), "ghost").Return(nil, repository.ErrNotFound)

		resp := s.do(t, "POST", "/messages", "ghost", `{"to":"Todos","text":"oi","type":"message"}`)
		require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})
}

func Test_GetMessages(t *testing.T) {
	stored := []domain.Message{
		{From: "a", To: "Todos", Text: "1", Type: domain.TypeMessage},
		{From: "b", To: "c", Text: "2", Type: domain.TypePrivateMessage},
		{From: "b", To: "a", Text: "3", Type: domain.TypePrivateMessage},
		{From: "c", To: "Todos", Text: "4", Type: domain.TypeStatus},
	}

	t.Run("last visible messages", func(t *testing.T) {
		s := newTestServer(t)
		s.messages.EXPECT().ListVisible(gomock.Any(), "a", 2).Return(stored, nil)

		resp := s.do(t, "GET", "/messages?limit=2", "a", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		got := decode[[]domain.Message](t, resp)
		require.Len(t, got, 2)
		require.Equal(t, "3", got[0].Text)
		require.Equal(t, "4", got[1].Text)
	})

	for _, limit := range []string{"0", "-1", "abc"} {
		t.Run("rejects limit "+limit, func(t *testing.T) {
			s := newTestServer(t)
			s.messages.EXPECT().ListVisible(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			resp := s.do(t, "GET", "/messages?limit="+limit, "a", "")
			require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		})
	}
}

func Test_PostStatus(t *testing.T) {
	t.Run("known participant", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().TouchStatus(gomock.Any(), "joao", gomock.Any()).Return(nil)

		resp := s.do(t, "POST", "/status", "joao", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("unknown participant", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().TouchStatus(gomock.Any(), "ghost", gomock.Any()).Return(repository.ErrNotFound)

		resp := s.do(t, "POST", "/status", "ghost", "")
		require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func Test_DeleteMessage(t *testing.T) {
	id := primitive.NewObjectID().Hex()

	t.Run("sender deletes", func(t *testing.T) {
		s := newTestServer(t)
		s.messages.EXPECT().FindByID(gomock.Any(), id).Return(&domain.Message{From: "joao"}, nil)
		s.messages.EXPECT().Delete(gomock.Any(), id).Return(nil)

		resp := s.do(t, "DELETE", "/messages/"+id, "joao", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("someone else", func(t *testing.T) {
		s := newTestServer(t)
		s.messages.EXPECT().FindByID(gomock.Any(), id).Return(&domain.Message{From: "joao"}, nil)
		s.messages.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)

		resp := s.do(t, "DELETE", "/messages/"+id, "maria", "")
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing", func(t *testing.T) {
		s := newTestServer(t)
		s.messages.EXPECT().FindByID(gomock.Any(), "zzz").Return(nil, repository.ErrNotFound)

		resp := s.do(t, "DELETE", "/messages/zzz", "joao", "")
		require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func Test_PutMessage(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	body := `{"to":"Todos","text":"corrigido","type":"message"}`

	t.Run("sender edits", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().FindByName(gomock.Any(), "joao").Return(&domain.Participant{Name: "joao"}, nil)
		s.messages.EXPECT().FindByID(gomock.Any(), id).Return(&domain.Message{From: "joao"}, nil)
		s.messages.EXPECT().Update(gomock.Any(), id, gomock.Any()).Return(nil)

		resp := s.do(t, "PUT", "/messages/"+id, "joao", body)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("someone else", func(t *testing.T) {
		s := newTestServer(t)
		s.participants.EXPECT().FindByName(gomock.Any(), "maria").Return(&domain.Participant{Name: "maria"}, nil)
		s.messages.EXPECT().FindByID(gomock.Any(), id).Return(&domain.Message{From: "joao"}, nil)
		s.messages.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		resp := s.do(t, "PUT", "/messages/"+id, "maria", body)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func Test_Healthz(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/healthz", "", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func Test_Metrics(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/metrics", "", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "chat_messages_posted_total")
}
