// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package executor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anclora/orchestrator/internal/config"
	"github.com/anclora/orchestrator/internal/netstate"
	"github.com/anclora/orchestrator/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type captured struct {
	path        string
	contentType string
	auth        string
	body        []byte
}

func newCaptureServer(t *testing.T, status int, contentType, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*got = captured{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			auth:        r.Header.Get("Authorization"),
			body:        body,
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllama_Generate(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "application/json", `{"response":"hola","done":true}`, &got)
	c := NewOllamaClient(srv.URL+"/", nil)

	out, err := c.Generate(context.Background(), "llama3", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hola", out)
	assert.Equal(t, "/api/generate", got.path)
	assert.Equal(t, "llama3.2:latest", gjson.GetBytes(got.body, "model").String())
	assert.Equal(t, "hi", gjson.GetBytes(got.body, "prompt").String())
	assert.False(t, gjson.GetBytes(got.body, "stream").Bool())
	assert.InDelta(t, 0.4, gjson.GetBytes(got.body, "temperature").Float(), 1e-9)

	temp := 0.9
	_, err = c.Generate(context.Background(), "mistral", "hi", &temp)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, gjson.GetBytes(got.body, "temperature").Float(), 1e-9)
}

func TestOllama_RawBodyWithoutResponseField(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "application/json", `{"message":"odd"}`, &got)
	out, err := NewOllamaClient(srv.URL, nil).Generate(context.Background(), "m", "p", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"message":"odd"}`, out)
}

func TestOllama_Errors(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusNotFound, "text/plain", "model not found", &got)
	_, err := NewOllamaClient(srv.URL, nil).Generate(context.Background(), "m", "p", nil)
	require.Error(t, err)
	assert.Equal(t, "model not found", err.Error())

	empty := newCaptureServer(t, http.StatusBadGateway, "", "", &got)
	_, err = NewOllamaClient(empty.URL, nil).Generate(context.Background(), "m", "p", nil)
	require.Error(t, err)
	assert.Equal(t, "Error Ollama (502)", err.Error())

	html := newCaptureServer(t, http.StatusServiceUnavailable, "text/html", "<html><title>Service Unavailable</title></html>", &got)
	_, err = NewOllamaClient(html.URL, nil).Generate(context.Background(), "m", "p", nil)
	require.Error(t, err)
	assert.Equal(t, "Service Unavailable", err.Error())
}

func TestOllama_ListModels(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "application/json",
		`{"models":[{"name":"llama3.2:latest"},{"name":"mistral:latest"},{"name":" "}]}`, &got)
	names, err := NewOllamaClient(srv.URL, nil).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "mistral:latest"}, names)
	assert.Equal(t, "/api/tags", got.path)
}

func TestOllama_Providers(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "application/json", `{"response":"ok"}`, &got)
	c := NewOllamaClient(srv.URL, nil)

	_, err := c.RequestedProvider().Invoke(context.Background(), provider.TextRequest{Prompt: "p"})
	assert.Error(t, err, "requested provider needs a model id")

	_, err = c.DefaultProvider("qwen2.5:7b").Invoke(context.Background(), provider.TextRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", gjson.GetBytes(got.body, "model").String())
}

func TestConditionEvaluator(t *testing.T) {
	e := NewConditionEvaluator()
	tests := []struct {
		name      string
		condition string
		env       ConditionEnv
		want      bool
		wantErr   bool
	}{
		{"empty", "", ConditionEnv{}, true, false},
		{"online", "online", ConditionEnv{Online: true}, true, false},
		{"offline", "online", ConditionEnv{}, false, false},
		{"hours", "hour >= 8 && hour < 20", ConditionEnv{Hour: 21}, false, false},
		{"weekday", `weekday in ["saturday", "sunday"]`, ConditionEnv{Weekday: "sunday"}, true, false},
		{"model", `model startsWith "llama"`, ConditionEnv{Model: "llama-3.1-8b"}, true, false},
		{"not bool", "hour + 1", ConditionEnv{}, false, true},
		{"unknown var", "gpu > 1", ConditionEnv{}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.condition, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCloudText_Availability(t *testing.T) {
	policy := NewPolicy(config.PoliciesConfig{AllowCloudText: true})
	network := netstate.NewManual(true)
	cfg := config.CloudProviderConfig{
		ID: "groq", BaseURL: "https://example.invalid/v1", APIKey: "k", Model: "m",
		Tier: "cloud-basic", AvailableWhen: "online",
	}
	c, err := NewCloudText(cfg, nil, policy, network, nil)
	require.NoError(t, err)

	ok, err := c.Available(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	network.Set(false)
	ok, _ = c.Available(context.Background())
	assert.False(t, ok, "expression gates availability")

	network.Set(true)
	policy.Update(config.PoliciesConfig{AllowCloudText: false})
	ok, _ = c.Available(context.Background())
	assert.False(t, ok, "policy gates availability")

	policy.Update(config.PoliciesConfig{AllowCloudText: true})
	noKey := cfg
	noKey.APIKey = ""
	c2, err := NewCloudText(noKey, nil, policy, network, nil)
	require.NoError(t, err)
	ok, _ = c2.Available(context.Background())
	assert.False(t, ok, "missing key")

	bad := cfg
	bad.AvailableWhen = "online &&"
	_, err = NewCloudText(bad, nil, policy, network, nil)
	assert.Error(t, err)
}

func TestCloudText_Invoke(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "application/json",
		`{"choices":[{"message":{"role":"assistant","content":"cloud says hi"}}]}`, &got)
	c, err := NewCloudText(config.CloudProviderConfig{
		ID: "groq", BaseURL: srv.URL + "/v1/", APIKey: "secret", Model: "llama-3.1-8b-instant", Tier: "cloud-premium",
	}, nil, NewPolicy(config.PoliciesConfig{AllowCloudText: true}), nil, nil)
	require.NoError(t, err)

	out, err := c.Invoke(context.Background(), provider.TextRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "cloud says hi", out)
	assert.Equal(t, "/v1/chat/completions", got.path)
	assert.Equal(t, "Bearer secret", got.auth)
	assert.Equal(t, "llama-3.1-8b-instant", gjson.GetBytes(got.body, "model").String())
	assert.Equal(t, "user", gjson.GetBytes(got.body, "messages.0.role").String())
	assert.Equal(t, "hello", gjson.GetBytes(got.body, "messages.0.content").String())

	p, err := c.Provider()
	require.NoError(t, err)
	assert.Equal(t, provider.TierCloudPremium, p.Tier)
	assert.Equal(t, provider.ID("groq"), p.ID)
}

func TestBackend_ImageClampsToLimits(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "image/png", "PNGDATA", &got)
	b := NewBackend(srv.URL, nil, config.LimitsConfig{ImageMaxWidth: 768, ImageMaxHeight: 1536, ImageMaxSteps: 8})

	res, err := b.GenerateImage(context.Background(), provider.ImageRequest{Prompt: "a cat", Steps: 30})
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), res.Data)
	assert.Equal(t, "image/png", res.MIME)
	assert.Equal(t, "/api/image", got.path)
	assert.Equal(t, int64(768), gjson.GetBytes(got.body, "width").Int())
	assert.Equal(t, int64(1024), gjson.GetBytes(got.body, "height").Int())
	assert.Equal(t, int64(8), gjson.GetBytes(got.body, "num_inference_steps").Int())
	assert.False(t, gjson.GetBytes(got.body, "model").Exists())
	assert.False(t, gjson.GetBytes(got.body, "image").Exists())

	_, err = b.GenerateImage(context.Background(), provider.ImageRequest{Prompt: "edit", Model: "sdxl", SourceImageBase64: "aGk="})
	require.NoError(t, err)
	assert.Equal(t, "sdxl", gjson.GetBytes(got.body, "model").String())
	assert.Equal(t, "aGk=", gjson.GetBytes(got.body, "image").String())
	assert.Equal(t, int64(4), gjson.GetBytes(got.body, "num_inference_steps").Int())
}

func TestBackend_TTS(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "audio/wav; charset=binary", "RIFF", &got)
	b := NewBackend(srv.URL, nil, config.LimitsConfig{TTSMaxChars: 5})

	res, err := b.Synthesize(context.Background(), provider.TTSRequest{Text: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", res.MIME)
	assert.Equal(t, "kokoro", gjson.GetBytes(got.body, "model").String())
	assert.Equal(t, "hola", gjson.GetBytes(got.body, "inputs").String())
	assert.Equal(t, "es", gjson.GetBytes(got.body, "language").String())

	got = captured{}
	_, err = b.Synthesize(context.Background(), provider.TTSRequest{Text: "demasiado"})
	var vErr *provider.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, got.path, "no request is sent")
}

func TestBackend_STT(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "application/json",
		`{"transcript":"  hola mundo ","detected_language":"ES","confidence":0.87}`, &got)
	b := NewBackend(srv.URL, nil, config.LimitsConfig{})

	res, err := b.Transcribe(context.Background(), provider.STTRequest{Audio: []byte("RIFF"), MIME: "audio/webm"})
	require.NoError(t, err)
	assert.Equal(t, "hola mundo", res.Text)
	assert.Equal(t, "es", res.Language)
	assert.InDelta(t, 0.87, res.Confidence, 1e-9)
	assert.Equal(t, "audio/webm", got.contentType)
	assert.Equal(t, []byte("RIFF"), got.body)
}

func TestBuildDefaultRegistry(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, http.StatusOK, "application/json", `{"response":"from ollama"}`, &got)

	cfg := config.Default()
	cfg.Endpoints.OllamaBaseURL = srv.URL
	cfg.Endpoints.APIBaseURL = srv.URL
	cfg.TextModelID = "mistral"
	cfg.CloudText = []config.CloudProviderConfig{
		{ID: "groq", Tier: "cloud-basic", BaseURL: "https://example.invalid/v1", APIKey: "k", Model: "m"},
	}

	reg, err := BuildDefaultRegistry(cfg, WithNetwork(netstate.NewManual(true)))
	require.NoError(t, err)

	text := reg.Providers(provider.KindText)
	require.Len(t, text, 3)
	assert.Equal(t, OllamaRequestedID, text[0].ID)
	assert.Equal(t, OllamaDefaultID, text[1].ID)
	assert.Equal(t, provider.ID("groq"), text[2].ID)
	assert.Len(t, reg.Providers(provider.KindImage), 1)
	assert.Len(t, reg.Providers(provider.KindTTS), 1)
	assert.Len(t, reg.Providers(provider.KindSTT), 1)

	// Without a model id the requested provider fails and the default takes over.
	out, err := reg.ExecuteText(context.Background(), provider.TextRequest{Prompt: "hi"}, provider.DefaultExecuteOptions())
	require.NoError(t, err)
	assert.Equal(t, "from ollama", out)
	assert.Equal(t, "mistral:latest", gjson.GetBytes(got.body, "model").String())

	telemetry := reg.Telemetry()
	require.Len(t, telemetry, 2)
	assert.False(t, telemetry[0].Success)
	assert.True(t, telemetry[1].Success)
}

func TestBuildDefaultRegistry_InvalidCloudExpression(t *testing.T) {
	cfg := config.Default()
	cfg.CloudText = []config.CloudProviderConfig{
		{ID: "groq", Tier: "cloud-basic", BaseURL: "https://example.invalid", APIKey: "k", AvailableWhen: "(("},
	}
	_, err := BuildDefaultRegistry(cfg)
	assert.Error(t, err)
}

func TestRegistryOptions(t *testing.T) {
	cfg := config.Default()
	cfg.CircuitBreaker.FailureThreshold = 5
	cfg.CircuitBreaker.CooldownMs = 2000
	opts := RegistryOptions(cfg)
	assert.Equal(t, 5, opts.Circuit.FailureThreshold)
	assert.Equal(t, 2*time.Second, opts.Circuit.Cooldown)
	assert.Equal(t, cfg.DefaultTimeout(), opts.CallTimeout)
}
