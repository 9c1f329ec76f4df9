package server

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/yolodet/internal/pipeline"
	"github.com/MeKo-Tech/yolodet/internal/testutil"
	"github.com/stretchr/testify/require"
)

// newTestServer wires a server to a pipeline backed by fake.
func newTestServer(t *testing.T, fake *testutil.FakeEngine, mutate func(*Config)) *Server {
	t.Helper()
	p, err := pipeline.NewBuilder().WithModelsDir(t.TempDir()).WithEngine(fake).Build()
	require.NoError(t, err)

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg, p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a POST /detect upload with optional extra fields.
func multipartRequest(t *testing.T, data []byte, filename string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if data != nil {
		part, err := writer.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/detect", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func personOutputs() *testutil.FakeEngine {
	return &testutil.FakeEngine{Outputs: testutil.MakeOutputs(80,
		testutil.FakeDetection{Class: 0, Score: 0.88, Box: [4]float32{52, 0, 364, 416}},
	)}
}
