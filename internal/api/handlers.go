package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"RankRadar/internal/recorder"
	"RankRadar/internal/watchlist"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) dashboard(r *http.Request) (any, error) {
	q := r.URL.Query()
	window, err := s.windowParam(r)
	if err != nil {
		return nil, err
	}
	f := recorder.DashboardFilter{WindowDays: window, SortBy: recorder.SortByScore}

	if f.MinRank, err = intParam(q.Get("minRank")); err != nil {
		return nil, badRequest("minRank must be an integer")
	}
	if f.MaxRank, err = intParam(q.Get("maxRank")); err != nil {
		return nil, badRequest("maxRank must be an integer")
	}
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		return nil, badRequest("limit must be an integer")
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		return nil, badRequest("offset must be an integer")
	}
	if v := q.Get("minScore"); v != "" {
		if f.MinScore, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, badRequest("minScore must be a number")
		}
	}
	switch v := q.Get("sortBy"); v {
	case "", recorder.SortByScore:
	case recorder.SortByVelocity:
		f.SortBy = v
	default:
		return nil, badRequest("sortBy must be score or velocity")
	}
	if f.MinRank > 0 && f.MaxRank > 0 && f.MinRank > f.MaxRank {
		return nil, badRequest("minRank exceeds maxRank")
	}

	rows, err := s.query.Dashboard(r.Context(), f)
	if err != nil {
		return nil, err
	}
	data := make([]CoinData, len(rows))
	for i, row := range rows {
		data[i] = coinData(row)
	}

	resp := DashboardResponse{
		Success: true,
		Data:    data,
		Count:   len(data),
		Filters: Filters{
			Window:   f.WindowDays,
			MinRank:  f.MinRank,
			MaxRank:  f.MaxRank,
			MinScore: f.MinScore,
			Limit:    f.Limit,
			Offset:   f.Offset,
			SortBy:   f.SortBy,
		},
		Timestamp: stamp(s.now()),
	}

	mc, err := s.query.LatestMarketContext(r.Context())
	switch {
	case errors.Is(err, recorder.ErrNotFound):
	case err != nil:
		log.Warn().Err(err).Msg("dashboard market context unavailable")
	default:
		resp.MarketContext = marketContextView(mc)
	}
	return resp, nil
}

func (s *Server) coin(r *http.Request) (any, error) {
	window, err := s.windowParam(r)
	if err != nil {
		return nil, err
	}
	d, err := s.query.CoinDetails(r.Context(), mux.Vars(r)["id"], window)
	if err != nil {
		return nil, err
	}
	return coinDetails(d, s.now()), nil
}

func (s *Server) watchList(r *http.Request) (any, error) {
	entries, err := s.query.WatchList(r.Context())
	if err != nil {
		return nil, err
	}
	return WatchListResponse{Success: true, Data: entries, Count: len(entries), Timestamp: stamp(s.now())}, nil
}

func (s *Server) trophies(r *http.Request) (any, error) {
	entries, err := s.query.WatchList(r.Context())
	if err != nil {
		return nil, err
	}
	t := watchlist.Trophies(entries, s.watch)
	return WatchListResponse{Success: true, Data: t, Count: len(t), Timestamp: stamp(s.now())}, nil
}

// health reports 503 when the database ping fails.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Success: true, Status: "ok", Database: "ok", Cache: "disabled", Timestamp: stamp(s.now())}
	status := http.StatusOK

	if err := s.query.Ping(r.Context()); err != nil {
		resp.Success, resp.Status, resp.Database = false, "degraded", err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.cache != nil {
		resp.Cache = "ok"
		if p, ok := s.cache.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				resp.Cache = err.Error()
			}
		}
	}

	run, err := s.query.LatestRun(r.Context())
	switch {
	case errors.Is(err, recorder.ErrNotFound):
	case err != nil:
		log.Warn().Err(err).Msg("health: latest run unavailable")
	default:
		resp.LastRun = run
	}
	writeJSON(w, status, resp)
}

func (s *Server) windowParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("window")
	if v == "" {
		return s.window, nil
	}
	w, err := strconv.Atoi(v)
	if err != nil || !s.windows[w] {
		return 0, badRequest(fmt.Sprintf("window %q is not configured", v))
	}
	return w, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
