package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const (
	testStory         = "The robot woke up. It found a flower! Was it happy?"
	testAdminPassword = "letmein"
)

type cliTestEnv struct {
	configPath  string
	baseDir     string
	exportDir   string
	storyCalls  atomic.Int32
	imageCalls  atomic.Int32
	genaiServer *httptest.Server
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_TTS_API_KEY", "TINYTALES_ADMIN_PASSWORD", "TINYTALES_API_TOKEN", "TINYTALES_NTFY_TOPIC", adminPasswordEnv} {
		t.Setenv(key, "")
	}

	env := &cliTestEnv{baseDir: base, exportDir: filepath.Join(base, "exports")}
	env.genaiServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "image-model"):
			env.imageCalls.Add(1)
			_ = json.NewEncoder(w).Encode(imageResponse(t))
		case strings.Contains(r.URL.Path, "story-model:generateContent"):
			env.storyCalls.Add(1)
			payload, _ := json.Marshal(map[string]string{"story": testStory})
			_ = json.NewEncoder(w).Encode(textResponse(string(payload)))
		default:
			_, _ = w.Write([]byte(`{"name":"models/story-model"}`))
		}
	}))
	t.Cleanup(env.genaiServer.Close)

	env.configPath = filepath.Join(homeDir, ".config", "tinytales", "config.toml")
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, env.configPath, env)
	return env
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
}

func imageResponse(t *testing.T) map[string]any {
	img := image.NewRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Errorf("encode png: %v", err)
	}
	return map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{
			map[string]any{"inlineData": map[string]any{
				"mimeType": "image/png",
				"data":     base64.StdEncoding.EncodeToString(buf.Bytes()),
			}},
		}}}},
	}
}

func writeTestConfig(t *testing.T, path string, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
export_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"

[genai]
api_key = "test"
base_url = %q
story_model = "story-model"
image_model = "image-model"
transport_retries = 0

[library]
seed_blog = false

[admin]
password = %q
`,
		filepath.Join(env.baseDir, "data"),
		env.exportDir,
		filepath.Join(env.baseDir, "logs"),
		env.genaiServer.URL,
		testAdminPassword,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// generateStory runs generate without illustrations and returns the story id.
func generateStory(t *testing.T, env *cliTestEnv) string {
	t.Helper()
	out, _, err := runCLI(t, []string{"generate", "a", "brave", "robot", "--no-illustrate", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var result sessionOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode generate output: %v\n%s", err, out)
	}
	if result.StoryID == "" {
		t.Fatalf("generate returned no story id: %s", out)
	}
	return result.StoryID
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
