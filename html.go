/*
Copyright © 2025 Jay Patel
*/

package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

// The portal home page: one live game and the rest of the catalog as
// coming-soon tiles.
func homePage(cfg *Config) string {
	var page strings.Builder

	page.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	page.WriteString(getFavicon())
	page.WriteString(`<title>Game Website</title>`)
	page.WriteString(`<style>body{font-family:system-ui,sans-serif;margin:2rem;}` +
		`.tile{display:inline-block;width:12rem;margin:0.5rem;padding:1rem;border:1px solid #ddd;border-radius:0.5rem;text-align:center;}` +
		`.soon{color:#999;}a{text-decoration:none;color:inherit;}</style></head><body>`)
	page.WriteString(`<h1>Game Website</h1>`)
	page.WriteString(`<a class="tile" href="` + cfg.prefix + `/chess">♟ Chess<br>Play online</a>`)
	page.WriteString(`<span class="tile soon">🎲 Ludo<br>Coming soon</span>`)
	page.WriteString(`<span class="tile soon">🐦 Angry Birds<br>Coming soon</span>`)
	page.WriteString(`</body></html>`)

	return page.String()
}

func serveHomePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(homePage(cfg)))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
