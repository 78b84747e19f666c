package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"hakubun/internal/decks"
	"hakubun/internal/devtools"
	"hakubun/internal/queue"
	"hakubun/internal/review"
	"hakubun/internal/ui"
)

func (a *App) setDevState(state, demo string) {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	a.devState.State = state
	a.devState.Demo = demo
	a.devState.Rendered = true
	a.devState.Pending = false
	a.devState.Error = ""
	a.devState.RenderSeq++
}

func (a *App) setDevPending(state, demo string) {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	a.devState.State = state
	a.devState.Demo = demo
	a.devState.Rendered = false
	a.devState.Pending = true
	a.devState.Error = ""
	a.devState.RenderSeq++
}

func (a *App) setDevError(state, demo, errText string) {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	a.devState.State = state
	a.devState.Demo = demo
	a.devState.Rendered = false
	a.devState.Pending = false
	a.devState.Error = errText
	a.devState.RenderSeq++
}

func (a *App) getDevState() map[string]any {
	a.devMu.Lock()
	defer a.devMu.Unlock()
	return map[string]any{
		"ok":         true,
		"state":      a.devState.State,
		"demo":       a.devState.Demo,
		"render_seq": a.devState.RenderSeq,
		"rendered":   a.devState.Rendered,
		"pending":    a.devState.Pending,
		"error":      a.devState.Error,
	}
}

func (a *App) runDemoScenario(ctx context.Context, requested string) (string, error) {
	resolved := a.demo.Resolve(requested).Name
	a.logger.Info("dev.demo.apply.begin", map[string]any{"requested": requested, "resolved": resolved})
	a.setDevPending(resolved, requested)

	a.demoMu.Lock()
	defer a.demoMu.Unlock()

	if err := a.applyDemoScenario(ctx, requested); err != nil {
		a.logger.Error("dev.demo.apply_failed", map[string]any{"requested": requested, "resolved": resolved, "error": err.Error()})
		a.setDevError(resolved, requested, err.Error())
		_ = a.demo.SetState(ctx, a.cacheDir, resolved, false)
		return resolved, err
	}
	a.view.RequestDraw()
	a.logger.Info("dev.demo.apply.done", map[string]any{"requested": requested, "resolved": resolved})
	a.setDevState(resolved, resolved)
	if err := a.demo.SetState(ctx, a.cacheDir, resolved, true); err != nil {
		a.logger.Error("dev_state.write_failed", map[string]any{"state": resolved, "error": err.Error()})
	}
	return resolved, nil
}

// applyDemoScenario drives the view into a scenario. Review scenarios run on
// a session without a store so nothing they do is recorded.
func (a *App) applyDemoScenario(ctx context.Context, requested string) error {
	sc := a.demo.Resolve(requested)
	switch sc.Screen {
	case devtools.ScreenHome:
		a.refreshDashboard(ctx)
		a.view.SetLoading(false)
		a.view.SetScreen(ui.ScreenHome)
		return nil
	case devtools.ScreenSummary:
		a.view.ShowSummary(a.demoStats())
		return nil
	}

	items := a.demoItems(sc.ReviewType)
	if len(items) == 0 {
		return fmt.Errorf("no %s items in the loaded decks", sc.ReviewType)
	}
	session := queue.NewSession(items, queue.Config{Logger: a.logger, Now: a.now, Order: queue.OrderLevel})
	if err := session.Start(context.Background()); err != nil {
		return err
	}
	a.view.StartReview(session)
	a.view.ApplyDemo(ui.DemoState{
		HintOpen: sc.HintOpen,
		Draft:    sc.DraftFor(items[0]),
		Action:   string(sc.Action),
	})
	return nil
}

// demoItems puts the first subject reviewed for rt at the head, followed by
// up to four more items.
func (a *App) demoItems(rt review.ReviewType) []review.Item {
	a.mu.Lock()
	subjects := append([]decks.Subject(nil), a.subjects...)
	a.mu.Unlock()

	var head *review.Item
	var rest []review.Item
	for _, s := range subjects {
		for _, t := range s.ReviewTypes() {
			item := s.Item(t, 1)
			if head == nil && t == rt {
				head = &item
				continue
			}
			if len(rest) < 4 {
				rest = append(rest, item)
			}
		}
	}
	if head == nil {
		return nil
	}
	return append([]review.Item{*head}, rest...)
}

func (a *App) demoStats() queue.Stats {
	items := a.demoItems(review.ReviewMeaning)
	now := a.now()
	stats := queue.Stats{
		Answered:  12,
		Correct:   10,
		Incorrect: 2,
		Completed: 5,
		StartTS:   now.Add(-4*time.Minute - 12*time.Second),
		FinishTS:  now,
	}
	if len(items) > 1 {
		stats.Missed = items[1:2]
	}
	return stats
}

func (a *App) devRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/__dev/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.getDevState())
	})
	r.Post("/__dev/demo", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Demo string `json:"demo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json"})
			return
		}
		req.Demo = strings.TrimSpace(req.Demo)
		if req.Demo == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "demo is required"})
			return
		}
		a.logger.Info("dev.demo.request", map[string]any{"demo": req.Demo})

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		resolved, err := a.runDemoScenario(ctx, req.Demo)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error(), "state": resolved})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": resolved, "requested": req.Demo})
	})
	r.Get("/__dev/demos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "demos": a.demo.Names()})
	})
	return r
}

func (a *App) startDevHTTP() error {
	ln, err := net.Listen("tcp", a.cfg.DevHTTP)
	if err != nil {
		return fmt.Errorf("dev http listen %s: %w", a.cfg.DevHTTP, err)
	}
	srv := &http.Server{Handler: a.devRouter(), ReadHeaderTimeout: 5 * time.Second}
	a.devMu.Lock()
	a.devServer = srv
	a.devMu.Unlock()
	a.setDevState("home", a.cfg.DemoScenario)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("dev_http.serve_failed", map[string]any{"error": err.Error(), "addr": a.cfg.DevHTTP})
		}
	}()
	a.logger.Info("dev_http.listening", map[string]any{"addr": ln.Addr().String()})
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
