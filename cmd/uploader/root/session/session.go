// Package session wires the configured services used by upload commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/uploadkit/uploader/cmd/uploader/root/version"
	"github.com/uploadkit/uploader/internal/auth"
	"github.com/uploadkit/uploader/internal/cliutil"
	"github.com/uploadkit/uploader/internal/hassapi"
	"github.com/uploadkit/uploader/internal/httplayers"
	"github.com/uploadkit/uploader/internal/observability"
	"github.com/uploadkit/uploader/internal/retryableclient"
	"github.com/uploadkit/uploader/internal/sentry_ext"
	"github.com/uploadkit/uploader/internal/transferstats"
	"github.com/uploadkit/uploader/internal/transport"
	"github.com/uploadkit/uploader/internal/upload"
)

// Session holds the services for one command invocation.
type Session struct {
	Client *hassapi.Client
	Logger *observability.CoreLogger
	Stats  transferstats.TransferStats

	registry    *prometheus.Registry
	sentry      *sentry_ext.Client
	pushgateway string
	timeout     time.Duration
	progress    io.Writer
}

// New configures a session from the command's flags and the config file.
func New(cmd *cobra.Command) (*Session, error) {
	serverURL := cliutil.GetString(cmd, "url")
	if serverURL == "" {
		return nil, errors.New("server URL is required. Set via --url flag or in config")
	}
	parsedURL, err := url.Parse(serverURL)
	if err != nil || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", serverURL)
	}

	timeout, err := parseTimeout(cliutil.GetString(cmd, "timeout"))
	if err != nil {
		return nil, err
	}

	logLevel := cliutil.GetString(cmd, "log-level")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	charmLogger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "uploader",
	})

	sentry := sentry_ext.New(sentry_ext.Params{
		DSN:              cliutil.GetString(cmd, "sentry-dsn"),
		AttachStacktrace: true,
		Release:          version.Version,
		Commit:           version.GitCommit,
	})
	logger := observability.NewCoreLogger(
		slog.New(charmLogger),
		&observability.CoreLoggerParams{
			Sentry: sentry,
			Tags:   observability.Tags{"server": parsedURL.Host},
		},
	)

	registry := prometheus.NewRegistry()
	stats, err := transferstats.New(registry)
	if err != nil {
		return nil, err
	}

	// Only requests to the configured server are identified.
	serverOnly := httplayers.LimitTo(
		parsedURL,
		httplayers.ExtraHeaders(http.Header{
			"User-Agent": {"uploader/" + version.Version},
		}),
	)

	clientID := cliutil.GetString(cmd, "client-id")
	if clientID == "" {
		clientID = strings.TrimSuffix(serverURL, "/") + "/"
	}
	refresher := auth.NewHTTPRefresher(
		retryableclient.NewRetryClient(
			retryableclient.WithRetryClientLogger(logger),
			retryableclient.WithRetryClientHTTPWrapper(serverOnly),
			retryableclient.WithRetryClientHttpTimeout(30*time.Second),
		),
		serverURL,
		clientID,
	)
	tokens := auth.NewTokenSource(
		auth.Token{
			AccessToken:  cliutil.GetString(cmd, "access-token"),
			RefreshToken: cliutil.GetString(cmd, "refresh-token"),
		},
		refresher,
	)

	uploadTransport := transport.NewHTTPTransport(
		retryableclient.NewUploadClient(
			retryableclient.WithRetryClientLogger(logger),
			retryableclient.WithRetryClientHTTPWrapper(serverOnly),
		),
		logger,
	)

	return &Session{
		Client: hassapi.NewClient(
			serverURL,
			tokens,
			hassapi.WithTransport(uploadTransport),
			hassapi.WithLogger(logger),
			hassapi.WithObserver(stats),
		),
		Logger:      logger,
		Stats:       stats,
		registry:    registry,
		sentry:      sentry,
		pushgateway: cliutil.GetString(cmd, "pushgateway"),
		timeout:     timeout,
		progress:    cmd.ErrOrStderr(),
	}, nil
}

func parseTimeout(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("invalid timeout: %v is negative", timeout)
	}
	return timeout, nil
}

// Context bounds an upload by the configured timeout.
//
// Uploads waited on with the returned context are aborted when it ends.
func (s *Session) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ShowProgress prints the upload's progress until the returned function is
// called.
func (s *Session) ShowProgress(u *upload.Upload) (stop func()) {
	var mu sync.Mutex
	printed := false

	u.SetListener(func(sent, total int64) {
		mu.Lock()
		defer mu.Unlock()
		printed = true
		fmt.Fprintf(s.progress, "\r%s", FormatProgress(sent, total))
	})

	return func() {
		u.SetListener(nil)

		mu.Lock()
		defer mu.Unlock()
		if printed {
			fmt.Fprintln(s.progress)
		}
	}
}

// FormatProgress describes how much of an upload was sent.
func FormatProgress(sent, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("Uploaded %s", humanize.Bytes(uint64(max(sent, 0))))
	}
	return fmt.Sprintf(
		"Uploaded %s of %s (%d%%)",
		humanize.Bytes(uint64(sent)),
		humanize.Bytes(uint64(total)),
		sent*100/total,
	)
}

// Explain turns an upload error into a message for the user.
func Explain(err error) error {
	switch {
	case errors.Is(err, upload.ErrAborted):
		return errors.New("upload aborted")
	case errors.Is(err, upload.ErrTransport):
		return fmt.Errorf("upload failed, check the connection to the server: %w", err)
	default:
		return err
	}
}

// Close pushes the session's metrics and flushes error reports.
func (s *Session) Close(ctx context.Context) {
	// Metrics are still pushed after an interrupt.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if s.pushgateway != "" {
		err := transferstats.Push(ctx, s.pushgateway, "uploader", s.registry)
		if err != nil {
			s.Logger.Warn("session: failed to push metrics", "error", err)
		}
	}

	outcomes := s.Stats.GetOutcomes()
	s.Logger.Debug(
		"session: done",
		"succeeded", outcomes.Succeeded,
		"aborted", outcomes.Aborted,
		"failed", outcomes.Failed,
	)

	if s.sentry != nil {
		s.sentry.Flush(sentry_ext.FlushTimeout)
	}
}
