package ytdlp

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"tubescan/internal/services"
	"tubescan/internal/testsupport"
)

type recordedCall struct {
	name string
	args []string
}

func newTestClient(t *testing.T, output string, runErr error) (*Client, *[]recordedCall) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	client := NewFromConfig(cfg, nil)
	var calls []recordedCall
	client.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, recordedCall{name: name, args: append([]string(nil), args...)})
		return []byte(output), runErr
	})
	return client, &calls
}

func TestIsPlaylist(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://www.youtube.com/playlist?list=PL123", true},
		{"https://www.youtube.com/@chesschannel", true},
		{"https://www.youtube.com/channel/UC123", true},
		{"https://www.youtube.com/c/legacy", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"https://youtu.be/abc", false},
	}
	for _, tt := range tests {
		if got := IsPlaylist(tt.ref); got != tt.want {
			t.Fatalf("IsPlaylist(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestListVideosPlaylist(t *testing.T) {
	payload := `{"_type":"playlist","title":"Channel","entries":[
		{"id":"aaa","title":"First","duration":125},
		{"id":"bbb","title":"","duration":0},
		{"id":"","title":"broken"}
	]}`
	client, calls := newTestClient(t, payload, nil)

	videos, err := client.ListVideos(context.Background(), "https://www.youtube.com/@chess")
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}
	if videos[0].VideoRef != "https://www.youtube.com/watch?v=aaa" || videos[0].DisplayDuration() != "02:05" {
		t.Fatalf("unexpected first video %+v", videos[0])
	}
	if videos[1].Title != TitleUnavailable || videos[1].DisplayDuration() != "N/A" {
		t.Fatalf("unexpected fallback video %+v", videos[1])
	}

	args := (*calls)[0].args
	if (*calls)[0].name != "yt-dlp" {
		t.Fatalf("unexpected binary %q", (*calls)[0].name)
	}
	for _, want := range []string{"-J", "--flat-playlist", "--no-check-certificates"} {
		if !slices.Contains(args, want) {
			t.Fatalf("expected %s in args %v", want, args)
		}
	}
	if args[len(args)-1] != "https://www.youtube.com/@chess" {
		t.Fatalf("reference must be the last argument: %v", args)
	}
}

func TestListVideosSingle(t *testing.T) {
	client, calls := newTestClient(t, `{"_type":"video","id":"xyz","title":"Solo","duration":3725.4,"webpage_url":"https://www.youtube.com/watch?v=xyz"}`, nil)

	videos, err := client.ListVideos(context.Background(), "https://youtu.be/xyz")
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 1 || videos[0].VideoRef != "https://www.youtube.com/watch?v=xyz" {
		t.Fatalf("unexpected videos %+v", videos)
	}
	if got := videos[0].DisplayDuration(); got != "1:02:05" {
		t.Fatalf("duration = %q", got)
	}
	if slices.Contains((*calls)[0].args, "--flat-playlist") {
		t.Fatal("single videos must not use --flat-playlist")
	}
}

func TestListVideosFailureIsRetrievalError(t *testing.T) {
	client, _ := newTestClient(t, "", errors.New("exit status 1: ERROR: Video unavailable"))

	_, err := client.ListVideos(context.Background(), "https://www.youtube.com/watch?v=gone")
	if !errors.Is(err, services.ErrRetrieval) {
		t.Fatalf("expected retrieval error, got %v", err)
	}

	client, _ = newTestClient(t, "not json", nil)
	if _, err := client.ListVideos(context.Background(), "https://www.youtube.com/watch?v=x"); !errors.Is(err, services.ErrRetrieval) {
		t.Fatalf("expected retrieval error for bad json, got %v", err)
	}
}

func TestTitleFallsBack(t *testing.T) {
	client, _ := newTestClient(t, "", errors.New("boom"))
	if got := client.Title(context.Background(), "https://www.youtube.com/watch?v=x"); got != TitleUnavailable {
		t.Fatalf("Title = %q", got)
	}

	client, _ = newTestClient(t, `{"title":"  Real title "}`, nil)
	if got := client.Title(context.Background(), "https://www.youtube.com/watch?v=x"); got != "Real title" {
		t.Fatalf("Title = %q", got)
	}
}

func TestCheckCertificatesDropsFlag(t *testing.T) {
	client, calls := newTestClient(t, `{"duration":60}`, nil)
	client.checkCertificates = true

	d, err := client.Duration(context.Background(), "https://www.youtube.com/watch?v=x")
	if err != nil || d != time.Minute {
		t.Fatalf("Duration = %v, %v", d, err)
	}
	if slices.Contains((*calls)[0].args, "--no-check-certificates") {
		t.Fatalf("unexpected --no-check-certificates in %v", (*calls)[0].args)
	}
}

func TestMetadataTimeout(t *testing.T) {
	client, _ := newTestClient(t, "", nil)
	client.metadataTimeout = 20 * time.Millisecond
	client.WithCommandRunner(func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := client.Duration(context.Background(), "https://www.youtube.com/watch?v=x")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestDownloadAudioArgs(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "audio.mp3")
	client, calls := newTestClient(t, "", nil)
	client.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		*calls = append(*calls, recordedCall{name: name, args: args})
		return nil, os.WriteFile(dest, []byte("mp3"), 0o644)
	})

	if err := client.DownloadAudio(context.Background(), "https://www.youtube.com/watch?v=x", dest); err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	got := strings.Join((*calls)[0].args, " ")
	want := "--quiet --no-warnings -x --audio-format mp3 --audio-quality 0 -o " + dest + " --no-check-certificates https://www.youtube.com/watch?v=x"
	if got != want {
		t.Fatalf("args = %q\nwant   %q", got, want)
	}
}

func TestDownloadAudioMissingFile(t *testing.T) {
	client, _ := newTestClient(t, "", nil)
	err := client.DownloadAudio(context.Background(), "https://www.youtube.com/watch?v=x", filepath.Join(t.TempDir(), "missing.mp3"))
	if !errors.Is(err, services.ErrRetrieval) {
		t.Fatalf("expected retrieval error, got %v", err)
	}
}

func TestExecRunnerWithStubBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bin := filepath.Join(testsupport.BaseDir(cfg), "bin", "yt-dlp")
	testsupport.WriteExecutable(t, bin, `echo '{"_type":"video","title":"Stubbed","duration":42,"webpage_url":"https://www.youtube.com/watch?v=stub"}'`+"\n")
	cfg.Transcriber.YtDlpBinary = bin

	videos, err := NewFromConfig(cfg, nil).ListVideos(context.Background(), "https://www.youtube.com/watch?v=stub")
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(videos) != 1 || videos[0].Title != "Stubbed" || videos[0].Duration != 42*time.Second {
		t.Fatalf("unexpected videos %+v", videos)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcriber.YtDlpBinary = "tubescan-definitely-missing-yt-dlp"
	_, err := NewFromConfig(cfg, nil).Duration(context.Background(), "https://www.youtube.com/watch?v=x")
	if !errors.Is(err, exec.ErrNotFound) || !errors.Is(err, services.ErrRetrieval) {
		t.Fatalf("expected not-found retrieval error, got %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                    "N/A",
		59 * time.Second:     "00:59",
		10*time.Minute + 5e9: "10:05",
		2*time.Hour + 3e9:    "2:00:03",
	}
	for in, want := range tests {
		if got := FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}
