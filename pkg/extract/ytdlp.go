package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"grabbot/pkg/config"
	"grabbot/pkg/errors"
	"grabbot/pkg/logger"
	"grabbot/pkg/retry"
	"grabbot/pkg/staging"
)

// outputStem is the fixed artifact name the downloader writes inside a
// scope; the extension is whatever yt-dlp produced.
const outputStem = "media"

// unavailableMarkers in yt-dlp stderr mean the source itself refused the
// content. These are terminal outcomes, not transport faults to retry.
var unavailableMarkers = []string{
	"private video",
	"video unavailable",
	"this video is unavailable",
	"content isn't available",
	"is not available",
	"has been removed",
	"members-only",
	"sign in to confirm",
	"account associated with this video has been terminated",
	"who has blocked it in your country",
}

// CookieSource supplies an optional cookies file for authenticated
// downloads. An empty path means no credential, which is never an error.
type CookieSource func() string

// YTDLPStrategy shells out to yt-dlp, the generic last-resort downloader
// that understands most media hosts
type YTDLPStrategy struct {
	cfg     *config.DownloadConfig
	kind    Kind
	cookies CookieSource
	logger  logger.Logger
}

// NewYTDLPStrategy creates a downloader strategy for the given media kind
func NewYTDLPStrategy(cfg *config.DownloadConfig, kind Kind, cookies CookieSource, log logger.Logger) *YTDLPStrategy {
	if log == nil {
		log = logger.GetLogger()
	}
	if cookies == nil {
		cookies = func() string { return "" }
	}
	return &YTDLPStrategy{cfg: cfg, kind: kind, cookies: cookies, logger: log}
}

func (y *YTDLPStrategy) Name() string { return "ytdlp_" + y.kind.String() }

// Attempt invokes yt-dlp with the whole invocation wrapped in bounded
// retries; only transport-class failures are retried
func (y *YTDLPStrategy) Attempt(ctx context.Context, url string, scope *staging.Scope) (*Result, error) {
	var result *Result

	err := retry.Do(func() error {
		var runErr error
		result, runErr = y.run(ctx, url, scope)
		return runErr
	}, &retry.Config{
		MaxAttempts: y.cfg.RetryAttempts,
		Backoff:     retry.DefaultExponentialBackoff(),
		RetryIf:     retry.DefaultRetryIf,
		Context:     ctx,
		Logger:      y.logger,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (y *YTDLPStrategy) run(ctx context.Context, url string, scope *staging.Scope) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, y.cfg.DownloadTimeout)
	defer cancel()

	args := []string{
		"--no-playlist",
		"--socket-timeout", strconv.Itoa(int(y.cfg.SocketTimeout.Seconds())),
		"--retries", strconv.Itoa(y.cfg.RetryAttempts),
		"--no-simulate",
		"--print", "after_move:title",
		"-o", filepath.Join(scope.Dir(), outputStem+".%(ext)s"),
	}

	if y.kind == KindAudio {
		args = append(args, "-x", "--audio-format", y.cfg.AudioFormat)
	} else {
		args = append(args, "-f", "best[ext=mp4]/best")
	}

	if cookiesFile := y.cookies(); cookiesFile != "" {
		args = append(args, "--cookies", cookiesFile)
	}

	args = append(args, url)

	cmd := exec.CommandContext(ctx, y.cfg.YTDLPPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	y.logger.DebugWithFields("invoking yt-dlp", map[string]interface{}{
		"url":  url,
		"kind": y.kind.String(),
	})

	if err := cmd.Run(); err != nil {
		return nil, y.classifyFailure(ctx, err, stderr.String())
	}

	path, err := y.findOutput(scope)
	if err != nil {
		return nil, err
	}
	if path == "" {
		// yt-dlp exited cleanly but wrote nothing; nothing to deliver.
		return nil, nil
	}

	title := strings.TrimSpace(strings.SplitN(stdout.String(), "\n", 2)[0])

	return &Result{
		Files:   []string{path},
		Caption: title,
		Kind:    y.kind,
	}, nil
}

// classifyFailure maps a yt-dlp failure onto the error taxonomy: sources
// that refused the content vs. transport faults worth retrying
func (y *YTDLPStrategy) classifyFailure(ctx context.Context, runErr error, stderr string) error {
	if execErr, ok := runErr.(*exec.Error); ok {
		return errors.New(errors.ErrorTypeSubprocess, fmt.Sprintf("failed to launch downloader: %v", execErr))
	}

	lowered := strings.ToLower(stderr)
	for _, marker := range unavailableMarkers {
		if strings.Contains(lowered, marker) {
			return errors.New(errors.ErrorTypeUnavailable, "source is private, removed, or blocked")
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return errors.New(errors.ErrorTypeNetwork, "download timed out")
	}

	return errors.New(errors.ErrorTypeNetwork, fmt.Sprintf("downloader failed: %s", stderrTail(stderr)))
}

// findOutput locates the file yt-dlp produced inside the scope
func (y *YTDLPStrategy) findOutput(scope *staging.Scope) (string, error) {
	files, err := scope.Files()
	if err != nil {
		return "", errors.New(errors.ErrorTypeFilesystem, fmt.Sprintf("failed to scan staging scope: %v", err))
	}

	for _, f := range files {
		base := filepath.Base(f.Path)
		if strings.HasPrefix(base, outputStem+".") {
			return f.Path, nil
		}
	}
	return "", nil
}

// stderrTail keeps user-facing and logged detail bounded
func stderrTail(stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > 200 {
		stderr = stderr[len(stderr)-200:]
	}
	if stderr == "" {
		return "no diagnostic output"
	}
	return stderr
}
