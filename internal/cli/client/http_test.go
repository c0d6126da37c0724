package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := NewAPIClientWithConfig(token, srv.URL)
	require.NoError(t, err)
	return api
}

func TestNewAPIClientWithConfig_EmptyURL(t *testing.T) {
	_, err := NewAPIClientWithConfig("token", "")
	assert.Error(t, err)
}

func TestAPIClient_SendsBearerToken(t *testing.T) {
	var gotAuth string
	api := newTestClient(t, "s3cret", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{}}`))
	})

	_, err := api.Get("/deadletters")
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", gotAuth)
}

func TestAPIClient_NoTokenNoHeader(t *testing.T) {
	var hasAuth bool
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.Write([]byte(`{"data":{}}`))
	})

	_, err := api.Get("/health")
	require.NoError(t, err)
	assert.False(t, hasAuth)
}

func TestAPIClient_EnvelopeAndBareBodies(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/documents" {
			w.Write([]byte(`{"data":{"id":"abc"}}`))
			return
		}
		w.Write([]byte(`{"kind":"direct","answer":"hi"}`))
	})

	resp, err := api.Post("/documents", AddRequest{Text: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc"}`, string(resp.Data))

	resp, err = api.Post("/query", AskRequest{Query: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"direct","answer":"hi"}`, string(resp.Data))
}

func TestAPIClient_ErrorResponses(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/plain" {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"language model unavailable"}`))
	})

	_, err := api.Post("/query", AskRequest{Query: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "language model unavailable", apiErr.Message)

	_, err = api.Get("/plain")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestRunAsk_PrintsAnswerAndSources(t *testing.T) {
	var got AskRequest
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{
			"kind":"scoped","answer":"You edited the budget.","scope":"YESTERDAY",
			"start_date":"2024-05-19","end_date":"2024-05-19",
			"sources":[{"document_id":"d1","date":"2024-05-19","time":"10:00:00","content":"budget.xlsx","score":0.8}],
			"results":["You edited the budget."]
		}`))
	})

	var out bytes.Buffer
	require.NoError(t, runAsk(api, &out, "what did I do yesterday", true, false))

	assert.Equal(t, "what did I do yesterday", got.Query)
	assert.Contains(t, out.String(), "You edited the budget.")
	assert.Contains(t, out.String(), "Scope: YESTERDAY (2024-05-19 to 2024-05-19)")
	assert.Contains(t, out.String(), "1. 2024-05-19 10:00:00 (0.80)")
}

func TestRunSummary_JSON(t *testing.T) {
	var got SummaryRequest
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/summary", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"kind":"summary","answer":"Quiet day.","sources":[]}`))
	})

	var out bytes.Buffer
	require.NoError(t, runSummary(api, &out, "2024-05-20", true))

	assert.Equal(t, "2024-05-20", got.Date)
	var answer Answer
	require.NoError(t, json.Unmarshal(out.Bytes(), &answer))
	assert.Equal(t, "summary", answer.Kind)
	assert.Equal(t, "Quiet day.", answer.Answer)
}

func TestRunAdd(t *testing.T) {
	var got AddRequest
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"id":"abc123","date":"2024-05-20","time":"09:15:00","chunks":2}}`))
	})

	var out bytes.Buffer
	require.NoError(t, runAdd(api, &out, "meeting notes", map[string]string{"source": "cli"}, false))

	assert.Equal(t, "meeting notes", got.Text)
	assert.Equal(t, map[string]string{"source": "cli"}, got.Metadata)
	assert.Equal(t, "Indexed abc123 (2024-05-20 09:15:00, 2 chunks)\n", out.String())
}

func TestReadAddText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("  from file \n"), 0600))

	text, err := readAddText(strings.NewReader(""), []string{"from arg"}, "")
	require.NoError(t, err)
	assert.Equal(t, "from arg", text)

	text, err = readAddText(strings.NewReader(""), nil, path)
	require.NoError(t, err)
	assert.Equal(t, "from file", text)

	text, err = readAddText(strings.NewReader("from stdin\n"), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	_, err = readAddText(strings.NewReader(""), []string{"x"}, path)
	assert.Error(t, err)

	_, err = readAddText(strings.NewReader("   "), nil, "")
	assert.Error(t, err)
}

func TestRunDeadLetters(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deadletters", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		w.Write([]byte(`{"data":{"items":[{"id":1,"path":"/shots/a.jpg","stage":"ocr","error":"exit status 1","attempts":3,"updated_at":"2024-05-20T10:00:00Z"}],"cursor":"next","has_more":true}}`))
	})

	var out bytes.Buffer
	require.NoError(t, runDeadLetters(api, &out, 5, "abc", false))

	assert.Contains(t, out.String(), "/shots/a.jpg [ocr, 3 attempts")
	assert.Contains(t, out.String(), "exit status 1")
	assert.Contains(t, out.String(), "Use --cursor next")
}

func TestRunDeadLetters_Empty(t *testing.T) {
	api := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"items":[],"has_more":false}}`))
	})

	var out bytes.Buffer
	require.NoError(t, runDeadLetters(api, &out, 20, "", false))
	assert.Equal(t, "No dead letters.\n", out.String())
}

func TestRunConfigSetAndShow(t *testing.T) {
	t.Setenv(envAPIURL, "")
	t.Setenv(envAPIToken, "")
	useConfigDir(t)

	var out bytes.Buffer
	require.NoError(t, runConfigSet(&out, "http://box:8005", "longtoken123"))

	out.Reset()
	require.NoError(t, runConfigShow(&out, "", "", false))
	assert.Contains(t, out.String(), "Source: global_config")
	assert.Contains(t, out.String(), "API URL: http://box:8005")
	assert.Contains(t, out.String(), "API Token: lon...123")

	assert.Error(t, runConfigSet(&out, "", "x"))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "(none)", maskToken(""))
	assert.Equal(t, "***", maskToken("short"))
	assert.Equal(t, "abc...xyz", maskToken("abcdefxyz"))
}
