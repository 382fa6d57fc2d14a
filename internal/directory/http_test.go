package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetinghost/pkg/interfaces"
)

func newDirectoryServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/user/token", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "good":
			_, _ = w.Write([]byte(`{"userid":"42","firstname":"Ada","surname":"Lovelace","company":"Engines",
				"jobtitle":"Analyst","workemail":"ada@example.com","phonenum":"555","avatarid":7}`))
		case "numeric":
			_, _ = w.Write([]byte(`{"userid":3,"firstname":"Bo","avatarid":null}`))
		case "garbled":
			_, _ = w.Write([]byte(`{"userid":"abc"}`))
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/meeting/presenter", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("MeetingCode") {
		case "room 1":
			_, _ = w.Write([]byte(`{"presenter_id":42}`))
		case "stringy":
			_, _ = w.Write([]byte(`{"presenter_id":"9"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClient_ResolveUser(t *testing.T) {
	server := newDirectoryServer(t)
	client := NewHTTPClient(server.URL+"/", time.Second)
	ctx := context.Background()

	user, err := client.ResolveUser(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, 42, user.ID)
	assert.Equal(t, "Ada", user.FirstName)
	assert.Equal(t, "Lovelace", user.Surname)
	assert.Equal(t, "Engines", user.Company)
	assert.Equal(t, "Analyst", user.JobTitle)
	assert.Equal(t, "ada@example.com", user.WorkEmail)
	assert.Equal(t, "555", user.PhoneNumber)
	assert.Equal(t, 7, user.AvatarID)
	assert.False(t, user.Presenting)

	user, err = client.ResolveUser(ctx, "numeric")
	require.NoError(t, err)
	assert.Equal(t, 3, user.ID)
	assert.Equal(t, 0, user.AvatarID)
}

func TestHTTPClient_ResolveUserErrors(t *testing.T) {
	server := newDirectoryServer(t)
	client := NewHTTPClient(server.URL, time.Second)
	ctx := context.Background()

	tests := []struct {
		token string
		want  error
	}{
		{"unknown", interfaces.ErrInvalidToken},
		{"boom", interfaces.ErrDirectoryUnavailable},
		{"garbled", interfaces.ErrDirectoryUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := client.ResolveUser(ctx, tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHTTPClient_ResolveMeeting(t *testing.T) {
	server := newDirectoryServer(t)
	client := NewHTTPClient(server.URL, time.Second)
	ctx := context.Background()

	id, err := client.ResolveMeeting(ctx, "room 1")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	id, err = client.ResolveMeeting(ctx, "stringy")
	require.NoError(t, err)
	assert.Equal(t, 9, id)

	_, err = client.ResolveMeeting(ctx, "nope")
	assert.ErrorIs(t, err, interfaces.ErrInvalidMeetingID)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := newDirectoryServer(t)
	url := server.URL
	server.Close()

	client := NewHTTPClient(url, 200*time.Millisecond)
	ctx := context.Background()

	assert.False(t, client.IsAvailable(ctx))
	_, err := client.ResolveUser(ctx, "good")
	assert.ErrorIs(t, err, interfaces.ErrDirectoryUnavailable)
	_, err = client.ResolveMeeting(ctx, "room 1")
	assert.ErrorIs(t, err, interfaces.ErrDirectoryUnavailable)
}

func TestHTTPClient_IsAvailable(t *testing.T) {
	server := newDirectoryServer(t)
	assert.True(t, NewHTTPClient(server.URL, time.Second).IsAvailable(context.Background()))
}
