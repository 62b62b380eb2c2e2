package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsforge/agentcore/pkg/config"
	"github.com/opsforge/agentcore/pkg/sandbox"
)

type fakeSandbox struct {
	execResult sandbox.ExecResult
	execErr    error
	files      map[string][]byte
}

func newFakeSandbox() *fakeSandbox { return &fakeSandbox{files: map[string][]byte{}} }

func (f *fakeSandbox) Ensure(context.Context) error { return nil }
func (f *fakeSandbox) Exec(context.Context, string, time.Duration) (sandbox.ExecResult, error) {
	return f.execResult, f.execErr
}
func (f *fakeSandbox) WriteFile(_ context.Context, path string, content []byte) error {
	f.files[path] = content
	return nil
}
func (f *fakeSandbox) ReadFile(_ context.Context, path string) ([]byte, error) {
	return f.files[path], nil
}
func (f *fakeSandbox) Address() string                { return "sandbox:1234" }
func (f *fakeSandbox) ID() string                      { return "sbx-1" }
func (f *fakeSandbox) Destroy(context.Context) error   { return nil }

type fakeBrowser struct {
	navigated []string
	navErr    error
}

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return f.navErr
}
func (f *fakeBrowser) Screenshot(context.Context) ([]byte, error) { return nil, nil }
func (f *fakeBrowser) Close() error                                { return nil }

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	sbx := newFakeSandbox()
	reg.Register(NewShellTool(sbx))
	reg.Register(NewMessageTool())

	tl, ok := reg.Get("shell")
	require.True(t, ok)
	assert.Equal(t, "shell", tl.Name())

	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)

	names := reg.List()
	require.Len(t, names, 2)
	assert.Equal(t, "message_ask_user", names[0].Name())
}

func TestShellTool_Success(t *testing.T) {
	sbx := newFakeSandbox()
	sbx.execResult = sandbox.ExecResult{Stdout: "hi\n", ExitCode: 0}
	tl := NewShellTool(sbx)

	result, err := tl.Invoke(context.Background(), `{"command":"echo hi"}`)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "hi")
}

func TestShellTool_NonZeroExit(t *testing.T) {
	sbx := newFakeSandbox()
	sbx.execResult = sandbox.ExecResult{Stderr: "boom", ExitCode: 1}
	tl := NewShellTool(sbx)

	result, err := tl.Invoke(context.Background(), `{"command":"false"}`)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestShellTool_MissingCommand(t *testing.T) {
	tl := NewShellTool(newFakeSandbox())
	result, err := tl.Invoke(context.Background(), `{}`)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestFileTool_WriteThenRead(t *testing.T) {
	sbx := newFakeSandbox()
	tl := NewFileTool(sbx)
	content := base64.StdEncoding.EncodeToString([]byte("hello"))

	writeResult, err := tl.Invoke(context.Background(), `{"action":"write","path":"/tmp/a.txt","content":"`+content+`"}`)
	require.NoError(t, err)
	assert.True(t, writeResult.Success)

	readResult, err := tl.Invoke(context.Background(), `{"action":"read","path":"/tmp/a.txt"}`)
	require.NoError(t, err)
	assert.True(t, readResult.Success)
	data := readResult.Data.(map[string]any)
	assert.Equal(t, content, data["content"])
}

func TestFileTool_UnknownAction(t *testing.T) {
	tl := NewFileTool(newFakeSandbox())
	result, err := tl.Invoke(context.Background(), `{"action":"delete","path":"/x"}`)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestBrowserTool_Navigate(t *testing.T) {
	br := &fakeBrowser{}
	tl := NewBrowserTool(br)
	result, err := tl.Invoke(context.Background(), `{"url":"https://example.com"}`)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"https://example.com"}, br.navigated)
}

func TestMessageTool_EchoesQuestion(t *testing.T) {
	tl := NewMessageTool()
	result, err := tl.Invoke(context.Background(), `{"question":"continue?"}`)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "continue?", result.Message)
}

func TestSearchTool_GoogleProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{{"title": "t1", "link": "https://a", "snippet": "s1"}},
		})
	}))
	defer srv.Close()

	cfg := config.SearchConfig{Provider: config.SearchProviderGoogle, GoogleSearchAPIKey: "k", GoogleSearchEngine: "e"}
	tl := NewSearchTool(cfg, srv.Client())
	tl.provider.(*googleProvider).endpoint = srv.URL

	results, err := tl.provider.Search(context.Background(), "golang")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t1", results[0].Title)
}

func TestSearchTool_MissingQuery(t *testing.T) {
	tl := NewSearchTool(config.SearchConfig{Provider: config.SearchProviderBaidu}, nil)
	result, err := tl.Invoke(context.Background(), `{}`)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestSearchTool_GoogleMissingCredentials(t *testing.T) {
	tl := NewSearchTool(config.SearchConfig{Provider: config.SearchProviderGoogle}, nil)
	result, err := tl.Invoke(context.Background(), `{"query":"golang"}`)
	require.NoError(t, err)
	assert.False(t, result.Success)
}
