package hours

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"controller-eligibility-backend/config"
)

func newTestClient(serverURL string) *HTTPClient {
	cfg := config.HoursConfig{
		URL:            serverURL,
		Headers:        map[string]string{"Authorization": "Bearer test-token"},
		TimeoutSeconds: 5,
	}
	return NewHTTPClient(&cfg)
}

func TestHTTPClient_Fetch(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"code":0,"data":{"s3":12.5,"c1":3}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	buckets, err := client.Fetch(context.Background(), 1000)
	require.NoError(t, err)

	assert.Equal(t, "/controllers/1000/hours", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, map[string]float64{"s3": 12.5, "c1": 3}, buckets)
}

func TestHTTPClient_Fetch_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	buckets, err := client.Fetch(context.Background(), 1000)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestHTTPClient_Fetch_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		errPart string
	}{
		{"server error", http.StatusInternalServerError, "", "non-200"},
		{"application error code", http.StatusOK, `{"code":42,"data":{}}`, "non-zero application code"},
		{"invalid json", http.StatusOK, `{`, "unmarshal"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.Fetch(context.Background(), 1000)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.errPart)
		})
	}
}
