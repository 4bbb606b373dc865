package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/levelbgm/previewd/internal/config"
	"github.com/levelbgm/previewd/internal/ledger"
	"github.com/levelbgm/previewd/internal/preview"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		config.EnvConfigFile, config.EnvBucket, config.EnvStoreDriver, config.EnvLedgerPath,
		config.EnvMaxTranscodes, config.EnvTranscodeTimeout, config.EnvS3Endpoint,
	} {
		t.Setenv(k, "")
	}
	t.Setenv(config.EnvLogLevel, "error")
}

func TestVersionCommand_SkipsConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvStoreDriver, "bogus")

	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "previewd "+config.Version) {
		t.Errorf("output = %q", out)
	}
}

func TestInvalidConfigFailsCommands(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvStoreDriver, "bogus")

	_, err := runCLI(t, "history")
	if err == nil || !strings.Contains(err.Error(), config.EnvStoreDriver) {
		t.Errorf("history error = %v, want config error naming %s", err, config.EnvStoreDriver)
	}
}

func TestConvertCommand_RequiresHash(t *testing.T) {
	isolateEnv(t)

	_, err := runCLI(t, "convert", "--start", "1000")
	if err == nil || !strings.Contains(err.Error(), "--hash") {
		t.Errorf("error = %v, want --hash required", err)
	}
}

func TestConvertCommand_RequiresBucket(t *testing.T) {
	isolateEnv(t)

	_, err := runCLI(t, "convert", "--hash", "abc")
	if err == nil || !strings.Contains(err.Error(), config.EnvBucket) {
		t.Errorf("error = %v, want missing %s", err, config.EnvBucket)
	}
}

func TestOutcomeError(t *testing.T) {
	tests := []struct {
		name    string
		out     preview.Outcome
		wantErr string
	}{
		{"success", preview.Outcome{Kind: preview.KindSuccess, Hash: "abc"}, ""},
		{"not found", preview.Outcome{Kind: preview.KindNotFound}, ""},
		{"ffmpeg failed", preview.Outcome{Kind: preview.KindTranscodeFailed, ExitCode: 1}, "code 1"},
		{"invalid", preview.Outcome{Kind: preview.KindInvalid, Message: "bad"}, "invalid"},
		{"tool missing", preview.Outcome{Kind: preview.KindToolUnavailable}, "tool_unavailable"},
		{"store down", preview.Outcome{Kind: preview.KindStorageUnavailable}, "storage_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := outcomeError(tt.out)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("outcomeError() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("outcomeError() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHistoryCommand_Disabled(t *testing.T) {
	isolateEnv(t)

	_, err := runCLI(t, "history")
	if err == nil || !strings.Contains(err.Error(), config.EnvLedgerPath) {
		t.Errorf("error = %v, want hint about %s", err, config.EnvLedgerPath)
	}
}

func TestHistoryCommand_Empty(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvLedgerPath, filepath.Join(t.TempDir(), "ledger.db"))

	out, err := runCLI(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No conversions recorded") {
		t.Errorf("output = %q", out)
	}
}

func TestHistoryCommand_RendersTable(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv(config.EnvLedgerPath, dbPath)

	repo, err := ledger.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	for _, e := range []*ledger.Entry{
		{SourceHash: "track-one", WindowStart: 5, WindowEnd: 20, ClipHash: "aaaa1111", ClipBytes: 240000},
		{SourceHash: "track-two", WindowStart: 0, WindowEnd: 30, ClipHash: "bbbb2222", ClipBytes: 480000},
	} {
		if err := repo.Record(context.Background(), e); err != nil {
			t.Fatalf("Record: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	repo.Close()

	out, err := runCLI(t, "history", "--limit", "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "track-two") || !strings.Contains(out, "bbbb2222") {
		t.Errorf("newest entry missing from output:\n%s", out)
	}
	if strings.Contains(out, "track-one") {
		t.Errorf("limit not applied:\n%s", out)
	}
	if !strings.Contains(out, "0s-30s") || !strings.Contains(out, "480 kB") {
		t.Errorf("window or size not rendered:\n%s", out)
	}
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(got, "╭") || !strings.Contains(got, "A") || !strings.Contains(got, "3") {
		t.Errorf("unexpected table:\n%s", got)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}

func TestFormatWindow(t *testing.T) {
	if got := formatWindow(12.5, 27.25); got != "12.5s-27.25s" {
		t.Errorf("formatWindow = %q", got)
	}
}
