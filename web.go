package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func writeText(cfg *Config, w http.ResponseWriter, status int, body string) (int, error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return io.WriteString(w, body)
}

func writeJSON(cfg *Config, w http.ResponseWriter, v any) (int, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", "application/json")
	securityHeaders(cfg, w)
	w.WriteHeader(http.StatusOK)

	return w.Write(append(body, '\n'))
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		written, err := writeText(cfg, w, http.StatusOK, "partyclient v"+releaseVersion+"\n")
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if _, err := writeText(cfg, w, http.StatusOK, "Ok\n"); err != nil {
			errs <- err
		}
	}
}

// serveJSON answers with whatever snapshot returns at request time.
func serveJSON(cfg *Config, name string, snapshot func() any, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		written, err := writeJSON(cfg, w, snapshot())
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: %s (%s) to %s in %s",
			name,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func joinLink(cfg *Config, room string) (string, error) {
	u, err := url.Parse(cfg.joinURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func serveQRCode(cfg *Config, c *Client, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		room := c.store.Snapshot().RoomCode
		if room == "" {
			if _, err := writeText(cfg, w, http.StatusConflict, "no room yet\n"); err != nil {
				errs <- err
			}

			return
		}

		link, err := joinLink(cfg, room)
		if err != nil {
			http.Error(w, "invalid join url", http.StatusInternalServerError)

			return
		}

		png, err := qrcode.Encode(link, qrcode.Medium, 320)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: QR code for room %s (%s) to %s in %s",
			room,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveTrafficToggle(cfg *Config, c *Client, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		on, err := strconv.ParseBool(r.URL.Query().Get("enabled"))
		if err != nil {
			if _, err := writeText(cfg, w, http.StatusBadRequest, "enabled must be a boolean\n"); err != nil {
				errs <- err
			}

			return
		}

		c.bus.SetTraffic(on)

		if _, err := writeText(cfg, w, http.StatusOK, strconv.FormatBool(on)+"\n"); err != nil {
			errs <- err
		}

		logf(cfg, "SERVE: Traffic logging set to %t by %s", on, realIP(r))
	}
}

func serveAction(cfg *Config, c *Client, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		action := p.ByName("action")

		var req actionRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				if _, err := writeText(cfg, w, http.StatusBadRequest, "invalid request body\n"); err != nil {
					errs <- err
				}

				return
			}
		}

		status, body := http.StatusAccepted, "ok\n"

		switch err := c.Do(action, req); {
		case errors.Is(err, ErrUnknownAction):
			status, body = http.StatusNotFound, err.Error()+"\n"
		case err != nil:
			status, body = http.StatusUnprocessableEntity, err.Error()+"\n"
		}

		if _, err := writeText(cfg, w, status, body); err != nil {
			errs <- err
		}

		logf(cfg, "SERVE: Action %q from %s (%d)", action, realIP(r), status)
	}
}

func newRouter(cfg *Config, c *Client, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		writeText(cfg, w, http.StatusInternalServerError, "An error has occurred. Please try again.\n")
	}

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	mux.GET(cfg.prefix+"/state", serveJSON(cfg, "State", func() any { return c.store.Snapshot() }, errs))

	mux.GET(cfg.prefix+"/frame", serveJSON(cfg, "Frame", func() any { return c.frames.Latest() }, errs))

	mux.GET(cfg.prefix+"/levels", serveJSON(cfg, "Levels", func() any { return c.Levels() }, errs))

	mux.GET(cfg.prefix+"/qr", serveQRCode(cfg, c, errs))

	mux.PUT(cfg.prefix+"/debug/traffic", serveTrafficToggle(cfg, c, errs))

	mux.POST(cfg.prefix+"/actions/:action", serveAction(cfg, c, errs))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	return mux
}

// serveDebug runs the debug server until ctx is done. Listen failures
// are logged and do not end the session.
func serveDebug(ctx context.Context, cfg *Config, c *Client) error {
	errs := make(chan error, 64)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, c, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	go func() {
		var err error
		logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorf("%v", err)
		}
	}()

	for {
		select {
		case err := <-errs:
			logf(cfg, "SERVE: %v", err)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)

			return nil
		}
	}
}
