package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math"
	"net/http"
	"time"

	"tdisplay-ng/internal/aw9364"
)

// MaxFadeMillis bounds fade_ms in brightness requests; the controller
// clamps further.
const MaxFadeMillis = 60_000

type BrightnessRequest struct {
	Step   *int `json:"step,omitempty"`
	Pct    *int `json:"pct,omitempty"`
	FadeMs int  `json:"fade_ms,omitempty"`
}

type BrightnessResponse struct {
	Step   uint8 `json:"step"`
	Pct    uint8 `json:"pct"`
	Fading bool  `json:"fading"`
}

func Handler(status *Status, p Panel, logs *LogBuffer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, status.Snapshot(time.Now().UTC(), p))
	})

	mux.HandleFunc("/api/brightness", func(w http.ResponseWriter, r *http.Request) {
		if p == nil {
			http.Error(w, "backlight unavailable", http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			if err := applyBrightness(w, r, p); err != nil {
				code := http.StatusBadRequest
				if errors.Is(err, aw9364.ErrHardwareWrite) {
					code = http.StatusBadGateway
				}
				http.Error(w, err.Error(), code)
				return
			}
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sn := p.Snapshot()
		writeJSON(w, http.StatusOK, BrightnessResponse{Step: sn.Step, Pct: sn.BrightnessPct, Fading: sn.Fading})
	})

	if logs != nil {
		mux.Handle("/api/logs", logs.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC(), p)
		v := snap.View
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><meta http-equiv=\"refresh\" content=\"1\"><title>tdisplay-ng</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>tdisplay-ng</h1>")
		_, _ = fmt.Fprintf(w, "<pre>%s %s\n%s\n%s\n%s\nbrightness step=%d pct=%d</pre>",
			html.EscapeString(v.Icon), html.EscapeString(v.PowerMode),
			html.EscapeString(v.Battery), html.EscapeString(v.Voltage),
			html.EscapeString(v.Button1+" "+v.Button2),
			snap.Panel.Step, snap.Panel.BrightnessPct,
		)
		_, _ = fmt.Fprintf(w, "<p>API: <a href=\"/api/status\">/api/status</a> <a href=\"/api/brightness\">/api/brightness</a> <a href=\"/api/logs?format=text\">/api/logs</a></p>")
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

// applyBrightness passes any step or pct that fits a uint8 through to the
// panel, which clamps to the backlight range.
func applyBrightness(w http.ResponseWriter, r *http.Request, p Panel) error {
	var req BrightnessRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if req.FadeMs < 0 || req.FadeMs > MaxFadeMillis {
		return fmt.Errorf("fade_ms must be in [0,%d]", MaxFadeMillis)
	}
	fade := time.Duration(req.FadeMs) * time.Millisecond
	switch {
	case req.Step != nil && req.Pct != nil:
		return errors.New("set either step or pct, not both")
	case req.Step != nil:
		if *req.Step < 0 || *req.Step > math.MaxUint8 {
			return fmt.Errorf("step must be in [0,%d]", math.MaxUint8)
		}
		return p.SetStep(uint8(*req.Step), fade)
	case req.Pct != nil:
		if *req.Pct < 0 || *req.Pct > math.MaxUint8 {
			return fmt.Errorf("pct must be in [0,%d]", math.MaxUint8)
		}
		return p.SetPct(uint8(*req.Pct), fade)
	default:
		return errors.New("step or pct is required")
	}
}

func Serve(ctx context.Context, listenAddr string, status *Status, p Panel, logs *LogBuffer) error {
	if status == nil {
		status = NewStatus()
	}

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(status, p, logs),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
