package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/simple-apps-suite/simple-notes/pkg/client"
	"github.com/simple-apps-suite/simple-notes/pkg/logging"
	"github.com/simple-apps-suite/simple-notes/pkg/pagination"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr           string
	RequestTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve merged results over HTTP",
		Long: `Serve merged results over HTTP.

Endpoints:
  GET /health        liveness
  GET /metrics       Prometheus metrics
  GET /fetch/{api}   merged pages of api; query parameters become call options,
                     max_pages limits the page count, a bearer token is
                     forwarded as the session's access token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&opts.RequestTimeout, "request-timeout", time.Minute, "timeout per fetch request")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return err
	}

	stack, err := newClientStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	logger := logging.NewLogger("server")

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           newServeMux(cfg, stack, opts.RequestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", opts.Addr).Str("base_url", cfg.BaseURL).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newServeMux(cfg Config, stack *clientStack, timeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /fetch/{api}", fetchHandler(cfg, stack, timeout))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func fetchHandler(cfg Config, stack *clientStack, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api := r.PathValue("api")

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		maxPages := cfg.Pagination.MaxPages
		opts := pagination.Options{}
		for key, values := range r.URL.Query() {
			if len(values) == 0 {
				continue
			}
			if key == "max_pages" {
				n, err := strconv.Atoi(values[0])
				if err != nil || n < 0 {
					writeError(w, http.StatusBadRequest, "max_pages must be a non-negative integer")
					return
				}
				maxPages = n
				continue
			}
			opts[key] = parseValue(values[0])
		}

		c := stack.Client()
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			c = stack.WithAccessToken(token)
		}

		result, err := collect(ctx, cfg, c, api, opts, maxPages)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Pages", strconv.Itoa(result.Pages))
		w.Header().Set("X-Has-More", strconv.FormatBool(result.HasMore))
		json.NewEncoder(w).Encode(result.Response)
	}
}

// statusFor maps a fetch error to the status reported to the caller.
func statusFor(err error) int {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrUnknownAPI):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
