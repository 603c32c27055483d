package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithAttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithUserID(context.Background(), "S001")
	ctx = WithSessID(ctx, "main")
	ctx = WithJobID(ctx, "J1")

	With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"user_id":"S001"`, `"session_id":"main"`, `"job_id":"J1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %s", want, out)
		}
	}
}

func TestWithSkipsAbsentFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithSessID(context.Background(), "scratch")
	With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"session_id":"scratch"`) {
		t.Fatalf("session_id missing: %s", out)
	}
	if strings.Contains(out, "user_id") || strings.Contains(out, "job_id") {
		t.Fatalf("unset fields leaked into log line: %s", out)
	}
}

func TestTraceDurationLogsStartAndFinish(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf).Level(zerolog.TraceLevel)

	done := TraceDuration(&base, "SubmitUC.Submit")
	done()

	out := buf.String()
	if !strings.Contains(out, `"method":"SubmitUC.Submit"`) {
		t.Fatalf("method field missing: %s", out)
	}
	if !strings.Contains(out, `"message":"start"`) || !strings.Contains(out, `"message":"finish"`) {
		t.Fatalf("expected start and finish lines, got: %s", out)
	}
	if !strings.Contains(out, `"duration"`) {
		t.Fatalf("finish line missing duration: %s", out)
	}
}
