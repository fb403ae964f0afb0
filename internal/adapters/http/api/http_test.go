package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/http/api"
	"github.com/jules-maulard/clash-royale-analytics/internal/adapters/repository"
	"github.com/jules-maulard/clash-royale-analytics/internal/domain/model"
	"github.com/jules-maulard/clash-royale-analytics/pkg/logger"
	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} { return m.stats }

type mockPairs struct {
	latest    string
	recs      []model.PredictionRecord
	gotRun    string
	gotOrder  string
	gotLimit  int
	latestErr error
}

func (m *mockPairs) LatestRun(context.Context) (string, error) { return m.latest, m.latestErr }

func (m *mockPairs) TopPairs(_ context.Context, runID, order string, limit int) ([]model.PredictionRecord, error) {
	m.gotRun, m.gotOrder, m.gotLimit = runID, order, limit
	if order == "bogus" {
		return nil, repository.ErrUnknownOrder
	}
	return m.recs, nil
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a server with stats and pairs", t, func() {
		stats := &mockStatsProvider{stats: map[string]interface{}{"running": "graph", "workerCount": 4}}
		pairs := &mockPairs{latest: "run-1"}
		h := api.NewServer(api.WithStats(stats), api.WithPairs(pairs, 100)).Handler()

		Convey("Then health answers ok", func() {
			w := serve(h, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then metrics are exposed in text format", func() {
			metrics.RecordRead(metrics.StageClean, 1)
			w := serve(h, http.MethodGet, "/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
			body, _ := io.ReadAll(w.Body)
			So(string(body), ShouldContainSubstring, "clash_pipeline_records_read_total")
		})

		Convey("Then stats are encoded as JSON", func() {
			w := serve(h, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			var got map[string]interface{}
			So(json.NewDecoder(w.Body).Decode(&got), ShouldBeNil)
			So(got["running"], ShouldEqual, "graph")
			So(got["workerCount"], ShouldEqual, 4.0)
		})

		Convey("Then non-GET requests are not found", func() {
			So(serve(h, http.MethodPost, "/stats").Code, ShouldEqual, http.StatusNotFound)
			So(serve(h, http.MethodDelete, "/healthz").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then unknown paths are not found", func() {
			So(serve(h, http.MethodGet, "/matches").Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a server without optional routes", t, func() {
		h := api.NewServer().Handler()

		Convey("Then only health and metrics are served", func() {
			So(serve(h, http.MethodGet, "/healthz").Code, ShouldEqual, http.StatusOK)
			So(serve(h, http.MethodGet, "/stats").Code, ShouldEqual, http.StatusNotFound)
			So(serve(h, http.MethodGet, "/pairs").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPairsHandler(t *testing.T) {
	Convey("Given a pairs handler over one run", t, func() {
		src := &mockPairs{
			latest: "run-1",
			recs: []model.PredictionRecord{
				{A: "0a0b", B: "0c0d", ObservedCount: 3, ObservedWinA: 2, CountA: 20, CountB: 15, ExpectedScore: 0.3},
			},
		}
		h := api.NewPairsHandler(src, 50)

		Convey("When no parameter is given", func() {
			w := httptest.NewRecorder()
			h.HandleGetPairs(w, httptest.NewRequest(http.MethodGet, "/pairs", nil))

			Convey("Then the latest run is ranked by observed count", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp api.PairsResponse
				So(json.NewDecoder(w.Body).Decode(&resp), ShouldBeNil)
				So(resp.RunID, ShouldEqual, "run-1")
				So(resp.Order, ShouldEqual, repository.OrderObserved)
				So(resp.Pairs, ShouldHaveLength, 1)
				So(resp.Pairs[0].Ratio, ShouldAlmostEqual, 10.0, 1e-9)
				So(src.gotLimit, ShouldEqual, 20)
			})
		})

		Convey("When run, order and limit are given", func() {
			w := httptest.NewRecorder()
			h.HandleGetPairs(w, httptest.NewRequest(http.MethodGet, "/pairs?run=run-0&order=ratio&limit=5", nil))

			Convey("Then they are passed through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(src.gotRun, ShouldEqual, "run-0")
				So(src.gotOrder, ShouldEqual, repository.OrderRatio)
				So(src.gotLimit, ShouldEqual, 5)
			})
		})

		Convey("When the request is invalid", func() {
			for _, target := range []string{"/pairs?limit=0", "/pairs?limit=x", "/pairs?limit=51", "/pairs?order=bogus"} {
				w := httptest.NewRecorder()
				h.HandleGetPairs(w, httptest.NewRequest(http.MethodGet, target, nil))
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the report has no run", func() {
			src.latest = ""
			w := httptest.NewRecorder()
			h.HandleGetPairs(w, httptest.NewRequest(http.MethodGet, "/pairs", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the report fails", func() {
			src.latestErr = errors.New("disk gone")
			w := httptest.NewRecorder()
			h.HandleGetPairs(w, httptest.NewRequest(http.MethodGet, "/pairs", nil))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestListenAndServe(t *testing.T) {
	Convey("Given a server on a bad address", t, func() {
		err := api.NewServer().ListenAndServe(context.Background(), "256.0.0.1:bad", nopLogger())
		So(errors.Is(err, api.ErrServe), ShouldBeTrue)
	})

	Convey("Given a server whose context is already done", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := api.NewServer().ListenAndServe(ctx, "127.0.0.1:0", nopLogger())
		So(err, ShouldBeNil)
	})
}

func nopLogger() logger.Logger { return logger.Nop() }
