package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/teamlens/teamlens/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func completionServer(t *testing.T, payloads map[string]string) *httptest.Server {
	t.Helper()

	calls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var content string
		switch calls {
		case 1:
			content = payloads["code"]
		case 2:
			content = payloads["review"]
		default:
			content = payloads["insights"]
		}
		body := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a model that answers all three calls", t, func() {
		srv := completionServer(t, map[string]string{
			"code":     `{"quality_score": 7.5, "maintainability_score": 8, "summary": "solid"}`,
			"review":   `{"thoroughness_score": 6, "helpfulness_score": 8, "summary": "helpful"}`,
			"insights": `{"strengths": ["tests"], "improvements": ["docs"], "overall_summary": "good quarter"}`,
		})
		defer srv.Close()

		a := New("key", WithBaseURL("key", srv.URL+"/v1"))
		res := a.Analyze(ctx, "jdoe", []string{"diff"}, []string{"review"}, "10 commits")

		convey.Convey("the result carries all three shapes", func() {
			convey.So(res.Available, convey.ShouldBeTrue)
			convey.So(res.Code.QualityScore, convey.ShouldEqual, 7.5)
			convey.So(res.Review.HelpfulnessScore, convey.ShouldEqual, 8.0)
			convey.So(res.ReviewAvg(), convey.ShouldEqual, 7.0)
			convey.So(res.Insights.OverallSummary, convey.ShouldEqual, "good quarter")
		})
	})

	convey.Convey("Given an unreachable model", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": {"message": "quota"}}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		a := New("key", WithBaseURL("key", srv.URL+"/v1"))
		res := a.Analyze(ctx, "jdoe", nil, nil, "")

		convey.Convey("the neutral fallback comes back", func() {
			convey.So(res.Available, convey.ShouldBeFalse)
			convey.So(res.Code.QualityScore, convey.ShouldEqual, 0.0)
			convey.So(res.Code.Summary, convey.ShouldEqual, "Analysis unavailable")
		})
	})
}

func TestTruncate(t *testing.T) {
	convey.Convey("Given oversized prompt payloads", t, func() {
		long := ""
		for i := 0; i < 100; i++ {
			long += fmt.Sprintf("line %d\n", i)
		}

		convey.Convey("truncation marks the cut", func() {
			out := truncate(long, 50)
			convey.So(len(out), convey.ShouldBeLessThan, len(long))
			convey.So(out, convey.ShouldEndWith, "... (truncated)")
		})

		convey.Convey("short payloads pass through", func() {
			convey.So(truncate("short", 50), convey.ShouldEqual, "short")
		})
	})
}
