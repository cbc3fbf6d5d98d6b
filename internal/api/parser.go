package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"demo-ingest/internal/config"
	"demo-ingest/internal/constants"
	"demo-ingest/internal/metrics"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/valyala/fasthttp"
)

// ServiceUnavailableError means the parser could not be reached or reported itself unhealthy.
type ServiceUnavailableError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ServiceUnavailableError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("parser service unavailable at %s: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("parser service unavailable at %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("parser service unavailable at %s", e.URL)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// UploadFailedError means the parser did not accept a demo upload.
type UploadFailedError struct {
	JobID      string
	StatusCode int
	Body       string
	Err        error
}

func (e *UploadFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("demo upload for job %s failed: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("demo upload for job %s failed: status %d: %s", e.JobID, e.StatusCode, e.Body)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }

// ParserClient talks to the external demo parsing worker.
type ParserClient struct {
	baseURL         string
	apiKey          string
	callbackBaseURL string
	client          *fasthttp.Client
	breaker         *gobreaker.CircuitBreaker[int]
	logger          zerolog.Logger
}

func NewParserClient(cfg *config.Config, logger zerolog.Logger) (*ParserClient, error) {
	if cfg.ParserBaseURL == "" || cfg.ParserAPIKey == "" {
		return nil, errors.New("parser client: PARSER_BASE_URL and PARSER_API_KEY are required")
	}
	if cfg.CallbackBaseURL == "" {
		return nil, errors.New("parser client: CALLBACK_BASE_URL is required")
	}

	logger = logger.With().Str("component", "parser_client").Logger()
	c := &ParserClient{
		baseURL:         cfg.ParserBaseURL,
		apiKey:          cfg.ParserAPIKey,
		callbackBaseURL: cfg.CallbackBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         constants.UploadTimeout,
			WriteTimeout:        constants.UploadTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "parser",
		MaxRequests: 1,
		Timeout:     constants.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.BreakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("parser circuit breaker state changed")
			if to == gobreaker.StateOpen {
				metrics.ParserBreakerState.Set(1)
			} else {
				metrics.ParserBreakerState.Set(0)
			}
		},
	})
	return c, nil
}

// ProgressCallbackURL is where the parser reports job progress.
func (c *ParserClient) ProgressCallbackURL() string {
	return c.callbackBaseURL + "/job/callback/progress"
}

// CompletionCallbackURL is where the parser reports the job outcome.
func (c *ParserClient) CompletionCallbackURL() string {
	return c.callbackBaseURL + "/job/callback/completion"
}

// CheckHealth returns nil when the parser answers its health endpoint with a 2xx.
func (c *ParserClient) CheckHealth(ctx context.Context) error {
	url := c.baseURL + "/health"

	_, err := c.breaker.Execute(func() (int, error) {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("X-API-Key", c.apiKey)

		if err := c.do(ctx, req, resp, constants.HealthCheckTimeout); err != nil {
			return 0, &ServiceUnavailableError{URL: url, Err: err}
		}
		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			return status, &ServiceUnavailableError{URL: url, StatusCode: status}
		}
		return status, nil
	})
	if err != nil {
		err = c.breakerError(url, err)
		metrics.ParserRequests.WithLabelValues("health", "error").Inc()
		c.logger.Error().Err(err).Str("url", url).Msg("parser health check failed")
		return err
	}

	metrics.ParserRequests.WithLabelValues("health", "ok").Inc()
	c.logger.Debug().Str("url", url).Msg("parser healthy")
	return nil
}

// UploadDemo streams the demo file to the parser together with the callback URLs for jobID.
func (c *ParserClient) UploadDemo(ctx context.Context, filePath, jobID string) error {
	url := c.baseURL + "/parse-demo"
	logger := c.logger.With().Str("url", url).Str("file", filePath).Str("job_id", jobID).Logger()

	file, err := os.Open(filePath)
	if err != nil {
		uerr := &UploadFailedError{JobID: jobID, Err: fmt.Errorf("failed to open demo: %w", err)}
		logger.Error().Err(uerr).Msg("demo upload failed")
		return uerr
	}
	defer file.Close()

	_, err = c.breaker.Execute(func() (int, error) {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(c.writeForm(mw, file, jobID))
		}()
		defer pr.Close()

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.SetContentType(mw.FormDataContentType())
		req.SetBodyStream(pr, -1)

		if err := c.do(ctx, req, resp, constants.UploadTimeout); err != nil {
			return 0, &UploadFailedError{JobID: jobID, Err: err}
		}
		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			return status, &UploadFailedError{JobID: jobID, StatusCode: status, Body: string(resp.Body())}
		}
		return status, nil
	})
	if err != nil {
		err = c.breakerError(url, err)
		metrics.ParserRequests.WithLabelValues("upload", "error").Inc()

		event := logger.Error().Err(err)
		var uerr *UploadFailedError
		if errors.As(err, &uerr) {
			event = event.Int("status", uerr.StatusCode).Str("body", uerr.Body)
		}
		event.Msg("demo upload failed")
		return err
	}

	metrics.ParserRequests.WithLabelValues("upload", "ok").Inc()
	logger.Info().Msg("demo handed to parser")
	return nil
}

func (c *ParserClient) writeForm(mw *multipart.Writer, file *os.File, jobID string) error {
	part, err := mw.CreateFormFile("file", filepath.Base(file.Name()))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to stream demo: %w", err)
	}
	fields := [][2]string{
		{"job_id", jobID},
		{"progress_callback_url", c.ProgressCallbackURL()},
		{"completion_callback_url", c.CompletionCallbackURL()},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	return mw.Close()
}

// do sends the request, honouring whichever of ctx's deadline and timeout is sooner.
func (c *ParserClient) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.client.DoDeadline(req, resp, deadline)
}

// breakerError reports an open breaker as the parser being unavailable.
func (c *ParserClient) breakerError(url string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &ServiceUnavailableError{URL: url, Err: err}
	}
	return err
}
