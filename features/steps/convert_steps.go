//go:build integration

package steps

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/levelbgm/previewd/internal/api"
	"github.com/levelbgm/previewd/internal/pipeline"
	"github.com/levelbgm/previewd/internal/preview"
	"github.com/levelbgm/previewd/internal/storage"
)

// memStore is an in-memory object store.
type memStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	puts         int
}

func (m *memStore) Download(ctx context.Context, key string, dst io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("get %s: %w", key, storage.ErrNotFound)
	}
	_, err := dst.Write(data)
	return err
}

func (m *memStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.contentTypes[key] = contentType
	m.puts++
	return nil
}

// mockFFmpeg writes a deterministic clip derived from its arguments.
type mockFFmpeg struct {
	calls    [][]string
	exitCode int
}

func (m *mockFFmpeg) Invoke(ctx context.Context, args ...string) (int, error) {
	m.calls = append(m.calls, args)
	if m.exitCode != 0 {
		return m.exitCode, nil
	}
	out := args[len(args)-1]
	clip := "ID3" + strings.Join(args[2:len(args)-1], " ")
	if err := os.WriteFile(out, []byte(clip), 0o644); err != nil {
		return -1, err
	}
	return 0, nil
}

type convertContext struct {
	store      *memStore
	ffmpeg     *mockFFmpeg
	scratchDir string
	router     http.Handler

	responses []*httptest.ResponseRecorder
}

func (c *convertContext) last() (*httptest.ResponseRecorder, error) {
	if len(c.responses) == 0 {
		return nil, fmt.Errorf("no request has been made")
	}
	return c.responses[len(c.responses)-1], nil
}

// SharedConvertContext holds per-scenario state.
var SharedConvertContext *convertContext

func InitializeConvertScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := os.MkdirTemp("", "previewd-features-*")
		if err != nil {
			return c, err
		}
		store := &memStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
		ffmpeg := &mockFFmpeg{}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		transcoder := pipeline.NewTranscoder(pipeline.TranscoderConfig{
			Tool:          ffmpeg,
			ScratchDir:    dir,
			Timeout:       time.Minute,
			MaxConcurrent: 1,
			Logger:        logger,
		})
		svc := preview.NewService(preview.NewFetcher(store, dir), transcoder, preview.NewPublisher(store), logger)

		SharedConvertContext = &convertContext{
			store:      store,
			ffmpeg:     ffmpeg,
			scratchDir: dir,
			router: api.NewRouter(api.ServerConfig{
				Converter:   svc,
				Tool:        api.ToolStatus{Path: "ffmpeg", Available: true},
				StoreDriver: "s3",
				Logger:      logger,
				StartTime:   time.Now(),
				Version:     "test",
			}),
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedConvertContext != nil {
			os.RemoveAll(SharedConvertContext.scratchDir)
		}
		SharedConvertContext = nil
		return c, nil
	})

	ctx.Step(`^the object store holds a source track "([^"]*)"$`, theObjectStoreHoldsASourceTrack)
	ctx.Step(`^ffmpeg will exit with code (-?\d+)$`, ffmpegWillExitWithCode)
	ctx.Step(`^I GET "([^"]*)"$`, iGET)
	ctx.Step(`^I POST to "([^"]*)" with body:$`, iPOSTToWithBody)
	ctx.Step(`^the response status should be (\d+)$`, theResponseStatusShouldBe)
	ctx.Step(`^the response body should be:$`, theResponseBodyShouldBe)
	ctx.Step(`^the response message should be "([^"]*)"$`, theResponseMessageShouldBe)
	ctx.Step(`^the response should contain the published clip hash$`, theResponseShouldContainThePublishedClipHash)
	ctx.Step(`^the clip should be stored under its hash with content type "([^"]*)"$`, theClipShouldBeStoredUnderItsHash)
	ctx.Step(`^ffmpeg should have been called with arguments:$`, ffmpegShouldHaveBeenCalledWithArguments)
	ctx.Step(`^ffmpeg should not have been called$`, ffmpegShouldNotHaveBeenCalled)
	ctx.Step(`^nothing should have been published$`, nothingShouldHaveBeenPublished)
	ctx.Step(`^no scratch files should remain$`, noScratchFilesShouldRemain)
	ctx.Step(`^both responses should carry the same hash$`, bothResponsesShouldCarryTheSameHash)
}

func theObjectStoreHoldsASourceTrack(hash string) error {
	SharedConvertContext.store.objects[storage.SourceKey(hash)] = []byte("RIFF source audio for " + hash)
	return nil
}

func ffmpegWillExitWithCode(code int) error {
	SharedConvertContext.ffmpeg.exitCode = code
	return nil
}

func iGET(path string) error {
	return serve(httptest.NewRequest(http.MethodGet, path, nil))
}

func iPOSTToWithBody(path string, body *godog.DocString) error {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body.Content))
	req.Header.Set("Content-Type", "application/json")
	return serve(req)
}

func serve(req *http.Request) error {
	rr := httptest.NewRecorder()
	SharedConvertContext.router.ServeHTTP(rr, req)
	SharedConvertContext.responses = append(SharedConvertContext.responses, rr)
	return nil
}

func theResponseStatusShouldBe(code int) error {
	rr, err := SharedConvertContext.last()
	if err != nil {
		return err
	}
	if rr.Code != code {
		return fmt.Errorf("status = %d, want %d (body %s)", rr.Code, code, rr.Body.String())
	}
	return nil
}

func theResponseBodyShouldBe(want *godog.DocString) error {
	rr, err := SharedConvertContext.last()
	if err != nil {
		return err
	}
	got := strings.TrimSpace(rr.Body.String())
	if got != strings.TrimSpace(want.Content) {
		return fmt.Errorf("body = %s, want %s", got, want.Content)
	}
	return nil
}

func decodeLast() (map[string]interface{}, error) {
	rr, err := SharedConvertContext.last()
	if err != nil {
		return nil, err
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("decode body %q: %w", rr.Body.String(), err)
	}
	return body, nil
}

func theResponseMessageShouldBe(want string) error {
	body, err := decodeLast()
	if err != nil {
		return err
	}
	if body["message"] != want {
		return fmt.Errorf("message = %v, want %q", body["message"], want)
	}
	return nil
}

func lastHash() (string, error) {
	body, err := decodeLast()
	if err != nil {
		return "", err
	}
	hash, ok := body["hash"].(string)
	if !ok || hash == "" {
		return "", fmt.Errorf("response has no hash: %v", body)
	}
	return hash, nil
}

func theResponseShouldContainThePublishedClipHash() error {
	hash, err := lastHash()
	if err != nil {
		return err
	}
	clip, ok := SharedConvertContext.store.objects[storage.PreviewKey(hash)]
	if !ok {
		return fmt.Errorf("no object at %s", storage.PreviewKey(hash))
	}
	sum := sha1.Sum(clip)
	if got := hex.EncodeToString(sum[:]); got != hash {
		return fmt.Errorf("hash %s is not the sha1 of the stored clip (%s)", hash, got)
	}
	return nil
}

func theClipShouldBeStoredUnderItsHash(contentType string) error {
	hash, err := lastHash()
	if err != nil {
		return err
	}
	key := storage.PreviewKey(hash)
	if got := SharedConvertContext.store.contentTypes[key]; got != contentType {
		return fmt.Errorf("content type of %s = %q, want %q", key, got, contentType)
	}
	return nil
}

// ffmpegShouldHaveBeenCalledWithArguments compares everything between the
// input and output paths, which are scratch-file names.
func ffmpegShouldHaveBeenCalledWithArguments(want *godog.DocString) error {
	calls := SharedConvertContext.ffmpeg.calls
	if len(calls) != 1 {
		return fmt.Errorf("ffmpeg called %d times, want 1", len(calls))
	}
	args := calls[0]
	if len(args) < 3 || args[0] != "-i" {
		return fmt.Errorf("unexpected arguments %q", args)
	}
	got := strings.Join(args[2:len(args)-1], " ")
	if got != strings.TrimSpace(want.Content) {
		return fmt.Errorf("arguments:\n got  %s\n want %s", got, strings.TrimSpace(want.Content))
	}
	if !strings.HasSuffix(args[len(args)-1], ".mp3") {
		return fmt.Errorf("output path %q is not an mp3 file", args[len(args)-1])
	}
	return nil
}

func ffmpegShouldNotHaveBeenCalled() error {
	if n := len(SharedConvertContext.ffmpeg.calls); n != 0 {
		return fmt.Errorf("ffmpeg called %d times", n)
	}
	return nil
}

func nothingShouldHaveBeenPublished() error {
	if n := SharedConvertContext.store.puts; n != 0 {
		return fmt.Errorf("%d objects published", n)
	}
	return nil
}

func noScratchFilesShouldRemain() error {
	entries, err := os.ReadDir(SharedConvertContext.scratchDir)
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		var names bytes.Buffer
		for _, e := range entries {
			names.WriteString(e.Name() + " ")
		}
		return fmt.Errorf("scratch files left behind: %s", names.String())
	}
	return nil
}

func bothResponsesShouldCarryTheSameHash() error {
	rs := SharedConvertContext.responses
	if len(rs) != 2 {
		return fmt.Errorf("made %d requests, want 2", len(rs))
	}
	var hashes [2]string
	for i, rr := range rs {
		var body struct {
			Hash string `json:"hash"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			return err
		}
		hashes[i] = body.Hash
	}
	if hashes[0] == "" || hashes[0] != hashes[1] {
		return fmt.Errorf("hashes %q and %q differ", hashes[0], hashes[1])
	}
	if n := SharedConvertContext.store.puts; n != 2 {
		return fmt.Errorf("puts = %d, want 2 writes to the same key", n)
	}
	return nil
}
