package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 1}),
				WithRefreshInterval(time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.recordsRead.WithLabelValues(StageClean).Add(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_records_read_total"], ShouldBeTrue)
				So(testutil.ToFloat64(manager.recordsRead.WithLabelValues(StageClean)), ShouldEqual, 3)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording pipeline counters", func() {
			before := testutil.ToFloat64(mgr().dedupSuppressed)
			RecordDedupGroup(2)
			RecordDedupGroup(0)

			Convey("Then suppressed duplicates accumulate", func() {
				So(testutil.ToFloat64(mgr().dedupSuppressed)-before, ShouldEqual, 2)
			})
		})

		Convey("When recording rejections and drops", func() {
			before := testutil.ToFloat64(mgr().recordsRejected.WithLabelValues(StageClean, "malformed"))
			RecordRejected(StageClean, "malformed")
			RecordEdgeDropped("low_support")

			Convey("Then they are labelled by reason", func() {
				So(testutil.ToFloat64(mgr().recordsRejected.WithLabelValues(StageClean, "malformed"))-before, ShouldEqual, 1)
			})
		})

		Convey("When updating gauges", func() {
			UpdateTableRows("nodes", 12)
			UpdateQueueDepth("graph", 4)
			AddWorkersActive("graph", 3)
			AddWorkersActive("graph", -3)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(mgr().tableRows.WithLabelValues("nodes")), ShouldEqual, 12)
				So(testutil.ToFloat64(mgr().queueDepth.WithLabelValues("graph")), ShouldEqual, 4)
				So(testutil.ToFloat64(mgr().workersActive.WithLabelValues("graph")), ShouldEqual, 0)
			})
		})

		Convey("When recording the rest of the helpers", func() {
			So(func() {
				RecordRead(StageGraph, 10)
				RecordEmitted(StageGraph, 5)
				RecordObservations("node", 4)
				RecordCombinerPartials(2)
				RecordEdgeScored()
				RecordStageDuration(StageStats, 150*time.Millisecond)
				RecordWorkerError("stats")
				RecordHTTPRequest("/metrics", "GET", "200")
			}, ShouldNotPanic)
		})
	})
}

func TestSampleRuntime(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("When sampling runtime gauges", func() {
			SampleRuntime(ctx)

			Convey("Then one sample is taken before returning", func() {
				So(testutil.ToFloat64(mgr().systemGoroutineCount), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestValidateStage(t *testing.T) {
	Convey("Given stage labels", t, func() {
		So(ValidateStage(StageClean), ShouldBeNil)
		So(ValidateStage(StageGraph), ShouldBeNil)
		So(ValidateStage(StageStats), ShouldBeNil)
		So(errors.Is(ValidateStage("bogus"), ErrUnknownStage), ShouldBeTrue)
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordRead(StageClean, 1)
		families, err := GetRegistry().Gather()

		Convey("Then it exposes pipeline metrics", func() {
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given a manager configured with a namespace and constant labels", t, func() {
		before := GetRegistry()
		Configure(
			WithNamespace("clashtest"),
			WithConstLabels(map[string]string{"deployment": "ci"}),
			WithRefreshInterval(time.Second),
		)
		defer Configure()

		RecordRead(StageGraph, 3)
		families, err := GetRegistry().Gather()
		So(err, ShouldBeNil)

		Convey("Then the helpers record on a fresh registry", func() {
			So(GetRegistry() != before, ShouldBeTrue)
			So(mgr().refreshInterval, ShouldEqual, time.Second)
		})

		Convey("Then every sample carries the labels under the new namespace", func() {
			found := false
			for _, f := range families {
				if f.GetName() != "clashtest_pipeline_records_read_total" {
					continue
				}
				found = true
				m := f.GetMetric()[0]
				labels := map[string]string{}
				for _, l := range m.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				So(labels["deployment"], ShouldEqual, "ci")
				So(labels["stage"], ShouldEqual, StageGraph)
				So(m.GetCounter().GetValue(), ShouldEqual, 3)
			}
			So(found, ShouldBeTrue)
		})
	})
}
