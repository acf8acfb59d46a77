package extract

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grabbot/pkg/config"
	"grabbot/pkg/errors"
	"grabbot/pkg/logger"
	"grabbot/pkg/staging"
)

func testYTDLP(kind Kind) *YTDLPStrategy {
	cfg := config.DefaultConfig()
	return NewYTDLPStrategy(&cfg.Download, kind, nil, logger.NewNopLogger())
}

func TestClassifyFailureUnavailable(t *testing.T) {
	y := testYTDLP(KindVideo)

	stderrs := []string{
		"ERROR: [youtube] abc: Private video. Sign in if you've been granted access",
		"ERROR: [youtube] abc: Video unavailable",
		"ERROR: This video has been removed by the uploader",
		"ERROR: Join this channel to get access to members-only content",
		"ERROR: The uploader who has blocked it in your country",
	}

	for _, stderr := range stderrs {
		err := y.classifyFailure(context.Background(), assertableExitError(), stderr)
		assert.True(t, errors.IsUnavailable(err), "stderr %q must classify as unavailable", stderr)
	}
}

func TestClassifyFailureTransport(t *testing.T) {
	y := testYTDLP(KindVideo)

	err := y.classifyFailure(context.Background(), assertableExitError(), "ERROR: unable to download webpage: timed out")
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
	assert.True(t, errors.IsRetryable(errors.TypeOf(err)))
}

func TestClassifyFailureTimeout(t *testing.T) {
	y := testYTDLP(KindVideo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// classifyFailure only reports a timeout for DeadlineExceeded
	err := y.classifyFailure(ctx, assertableExitError(), "")
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
}

func TestClassifyFailureLaunchFailure(t *testing.T) {
	y := testYTDLP(KindVideo)

	launchErr := &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}
	err := y.classifyFailure(context.Background(), launchErr, "")
	assert.Equal(t, errors.ErrorTypeSubprocess, errors.TypeOf(err))
	assert.False(t, errors.IsRetryable(errors.TypeOf(err)))
}

// assertableExitError stands in for the *exec.ExitError a failed run yields
func assertableExitError() error {
	// Running a command that exits non-zero is the simplest portable way
	// to obtain a real ExitError.
	cmd := exec.Command("false")
	return cmd.Run()
}

func TestStderrTail(t *testing.T) {
	assert.Equal(t, "no diagnostic output", stderrTail("   "))
	assert.Equal(t, "short error", stderrTail("short error"))

	long := strings.Repeat("x", 300) + "END"
	tail := stderrTail(long)
	assert.Len(t, tail, 200)
	assert.True(t, strings.HasSuffix(tail, "END"))
}

func TestFindOutput(t *testing.T) {
	y := testYTDLP(KindVideo)

	scope, err := staging.NewScope(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, err)
	defer scope.Cleanup()

	// Nothing staged yet
	path, err := y.findOutput(scope)
	require.NoError(t, err)
	assert.Empty(t, path)

	_, _, err = scope.Save("media.mp4", strings.NewReader("video"))
	require.NoError(t, err)

	path, err = y.findOutput(scope)
	require.NoError(t, err)
	assert.Equal(t, "media.mp4", strings.TrimPrefix(path, scope.Dir()+"/"))
}

func TestStrategyName(t *testing.T) {
	assert.Equal(t, "ytdlp_video", testYTDLP(KindVideo).Name())
	assert.Equal(t, "ytdlp_audio", testYTDLP(KindAudio).Name())
}
