package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/lewtec/imagesprite/internal/domain"
	"github.com/lewtec/imagesprite/internal/sprite"
)

type SpriteApp struct {
	Store domain.ImageReader
	// Metadata serves the classification log routes. They answer 503 when
	// it is nil.
	Metadata domain.MetadataRepository
	Config   *Config
	Logger   *slog.Logger
}

func (a *SpriteApp) init() {
	if a.Config == nil {
		a.Config = DefaultConfig()
	}
	if a.Logger == nil {
		a.Logger = slog.New(slog.DiscardHandler)
	}
}

func stringOr(str, or string) string {
	if str != "" {
		return str
	} else {
		return or
	}
}

// parseImageIDs reads a comma separated id list. Repeated parameters are
// concatenated in order.
func parseImageIDs(values []string) ([]domain.ImageID, error) {
	var ids []domain.ImageID
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("while parsing image id %q: %w", part, domain.ErrMalformedKey)
			}
			if id < 0 {
				return nil, fmt.Errorf("image id %d: %w", id, domain.ErrOutOfRange)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrEmptyRequest
	}
	return ids, nil
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, fallback int) (int, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("while parsing %s=%q: %w", name, raw, domain.ErrMalformedKey)
	}
	return value, true, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyRequest),
		errors.Is(err, domain.ErrOutOfRange),
		errors.Is(err, domain.ErrMalformedKey):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *SpriteApp) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.Logger.ErrorContext(r.Context(), "http: request failed", "path", r.URL.Path, "error", err, "request_id", GetRequestID(r.Context()))
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (a *SpriteApp) writeJSON(w http.ResponseWriter, r *http.Request, value any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		a.Logger.WarnContext(r.Context(), "http: while writing response", "error", err)
	}
}

func (a *SpriteApp) spriteHandler(compositor *sprite.Compositor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids, err := parseImageIDs(r.URL.Query()["imageIds"])
		if err != nil {
			a.fail(w, r, err)
			return
		}
		body, err := compositor.Render(r.Context(), ids)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		etag := ETag(body)
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := w.Write(body); err != nil {
			a.Logger.WarnContext(r.Context(), "http: while writing sprite", "error", err)
		}
	})
}

func (a *SpriteApp) confusionCellHandler(w http.ResponseWriter, r *http.Request) {
	if a.Metadata == nil {
		http.Error(w, "metadata database not configured", http.StatusServiceUnavailable)
		return
	}
	var filter domain.ImageFilter
	var hasRun bool
	var err error
	if filter.RunID, hasRun, err = intParam(r, "runId", 0); err != nil {
		a.fail(w, r, err)
		return
	}
	filter.AnyRun = !hasRun
	if filter.EpochID, _, err = intParam(r, "epochId", 0); err != nil {
		a.fail(w, r, err)
		return
	}
	if filter.GroundTruth, _, err = intParam(r, "groundTruthId", 0); err != nil {
		a.fail(w, r, err)
		return
	}
	if filter.Predicted, _, err = intParam(r, "predictedId", 0); err != nil {
		a.fail(w, r, err)
		return
	}
	if filter.Limit, _, err = intParam(r, "numCount", domain.DefaultImageLimit); err != nil {
		a.fail(w, r, err)
		return
	}
	if filter.Limit < 1 {
		a.fail(w, r, fmt.Errorf("numCount must be positive, got %d: %w", filter.Limit, domain.ErrOutOfRange))
		return
	}
	ids, err := a.Metadata.ImageIDs(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []domain.ImageID{}
	}
	a.writeJSON(w, r, ids)
}

func (a *SpriteApp) epochRatioHandler(w http.ResponseWriter, r *http.Request) {
	if a.Metadata == nil {
		http.Error(w, "metadata database not configured", http.StatusServiceUnavailable)
		return
	}
	runID, _, err := intParam(r, "runId", 0)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	epochID, _, err := intParam(r, "epochId", 0)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ratio, err := a.Metadata.AccuracyRatio(r.Context(), runID, epochID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeJSON(w, r, ratio)
}

func (a *SpriteApp) GetHTTPHandler() http.Handler {
	a.init()
	compositor := sprite.NewCompositor(a.Store,
		sprite.WithFetchers(a.Config.HTTP.Fetchers),
		sprite.WithLogger(a.Logger),
	)
	var limiter *rate.Limiter
	if a.Config.HTTP.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.Config.HTTP.RateLimit), a.Config.HTTP.Burst)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /images/imageSprite", rateLimited(limiter, a.spriteHandler(compositor)))
	mux.HandleFunc("GET /confmat/cell/imageIds", a.confusionCellHandler)
	mux.HandleFunc("GET /epoch/ratio", a.epochRatioHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		title := stringOr(a.Config.HTTP.Title, "imagesprite")
		if err := RenderPage(w, "index", TemplateContent{Title: title, Content: indexMarkdown()}); err != nil {
			a.Logger.ErrorContext(r.Context(), "http: while rendering index", "error", err)
		}
	})
	return requestIDMiddleware(HTTPLogger(a.Logger, mux))
}
