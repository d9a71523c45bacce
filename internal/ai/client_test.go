package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ailedger/internal/core"
)

type fakeModel struct {
	calls    atomic.Int32
	statuses []int // status per call; 200 once exhausted
	reply    string
	lastBody atomic.Value
}

func (f *fakeModel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(f.calls.Add(1))
	body, _ := io.ReadAll(r.Body)
	f.lastBody.Store(body)

	w.Header().Set("Content-Type", "application/json")
	if n <= len(f.statuses) && f.statuses[n-1] != http.StatusOK {
		w.WriteHeader(f.statuses[n-1])
		_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
		return
	}
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   DefaultModel,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": f.reply},
		}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, model *fakeModel) *Client {
	t.Helper()
	srv := httptest.NewServer(model)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		APIKey:       "test-key",
		BaseURL:      srv.URL + "/v1",
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestNewClient_DisabledWithoutKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestClient_ParseText(t *testing.T) {
	model := &fakeModel{reply: `{"amount": 25, "category": "交通", "type": "EXPENSE", "note": "打车"}`}
	c := newTestClient(t, model)

	d, err := c.ParseText(context.Background(), "打车 25 元")
	require.NoError(t, err)

	assert.Equal(t, "25.00", d.Amount.String())
	assert.Equal(t, core.CategoryTransport, d.Category)
	assert.Equal(t, "打车", d.Note)
	assert.Equal(t, "2024-05-17", d.Date.String())

	var req map[string]any
	require.NoError(t, json.Unmarshal(model.lastBody.Load().([]byte), &req))
	assert.Equal(t, DefaultModel, req["model"])
	format := req["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	msgs := req["messages"].([]any)
	assert.Contains(t, msgs[0].(map[string]any)["content"], "打车 25 元")
}

func TestClient_ParseImageSendsDataURL(t *testing.T) {
	model := &fakeModel{reply: `{}`}
	c := newTestClient(t, model)

	_, err := c.ParseImage(context.Background(), []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)

	body := string(model.lastBody.Load().([]byte))
	assert.Contains(t, body, "data:image/jpeg;base64,")
	assert.Contains(t, body, `"image_url"`)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	model := &fakeModel{
		statuses: []int{http.StatusServiceUnavailable, http.StatusTooManyRequests},
		reply:    `{"amount": 1}`,
	}
	c := newTestClient(t, model)

	d, err := c.ParseText(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "1.00", d.Amount.String())
	assert.Equal(t, int32(3), model.calls.Load())
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	model := &fakeModel{statuses: []int{http.StatusBadRequest}}
	c := newTestClient(t, model)

	_, err := c.ParseText(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(1), model.calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	model := &fakeModel{statuses: []int{500, 500, 500, 500}}
	c := newTestClient(t, model)

	_, err := c.ParseText(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(3), model.calls.Load())
}

func TestClient_MalformedReply(t *testing.T) {
	model := &fakeModel{reply: "sorry, I cannot help"}
	c := newTestClient(t, model)

	_, err := c.ParseText(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestPrepareImage(t *testing.T) {
	small := encodePNG(t, 40, 20)
	out, mime := PrepareImage(small)
	assert.Equal(t, small, out)
	assert.Equal(t, "image/png", mime)

	large := encodePNG(t, MaxImageSide*2, MaxImageSide)
	out, mime = PrepareImage(large)
	assert.Equal(t, MimeJPEG, mime)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, MaxImageSide, cfg.Width)
	assert.Equal(t, MaxImageSide/2, cfg.Height)
}

func TestDetection(t *testing.T) {
	assert.True(t, IsImage(encodePNG(t, 2, 2)))
	assert.False(t, IsPDF(encodePNG(t, 2, 2)))
	assert.True(t, IsPDF([]byte("%PDF-1.4\n%âãÏÓ\n")))

	_, err := ExtractPDFText([]byte("%PDF-1.4 truncated"))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	assert.True(t, strings.HasPrefix(DetectMIME([]byte("plain words")), "text/plain"))
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
