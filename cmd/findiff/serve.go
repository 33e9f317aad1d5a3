package main

import (
	"fmt"
	"net/http"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/ugorji/go/codec"

	"github.com/njchilds90/findiff"
	"github.com/njchilds90/findiff/internal/config"
)

const maxBodyBytes = 1 << 20 // 1 MiB

var jsonHandle = func() *codec.JsonHandle {
	h := &codec.JsonHandle{PreferFloat: true}
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return h
}()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = codec.NewEncoder(w, jsonHandle).Encode(v)
}

// newMux routes:
//
//	POST /tool   — execute a tool call
//	GET  /schema — tool schema for agent registration
//	GET  /health — liveness check
func newMux(tb findiff.Toolbox, log log15.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/tool", func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic in /tool", "panic", rec, "stack", string(debug.Stack()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		defer r.Body.Close()

		var req findiff.ToolRequest
		if err := codec.NewDecoder(r.Body, jsonHandle).Decode(&req); err != nil {
			log.Debug("bad request body", "err", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		start := time.Now()
		resp := tb.Handle(req)
		log.Info("tool call", "tool", req.Tool, "evaluations", resp.Evaluations,
			"error", resp.Error, "took", time.Since(start))
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/schema", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, findiff.ToolSpec())
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	return mux
}

func serve(cfg config.Config) error {
	log := cfg.Logger("module", "findiff", "component", "server")
	log.Info("listening", "addr", cfg.Listen, "step", cfg.Step, "max_order", cfg.MaxOrder)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newMux(cfg.Toolbox(), log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Crit("server stopped", "err", err)
		return err
	}
	return nil
}
