package handler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"veritas.app/relay/core/config"
	"veritas.app/relay/internal/app"
	"veritas.app/relay/internal/http/handler"
	"veritas.app/relay/internal/retrieval"
)

var _ = Describe("QueryHandler", func() {
	var router *gin.Engine

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()

		// An App with no backends wired: hybrid search degrades to an
		// empty result set and the pipeline still runs end to end.
		pipeline := &app.App{
			Cfg:    config.Config{Scheduler: config.SchedulerConfig{MaxWorkers: 2}},
			Engine: retrieval.New(nil, nil, nil, nil, slog.Default()),
			Log:    slog.Default(),
		}

		h := handler.NewQueryHandler(pipeline)
		router.POST("/api/v1/query", h.Execute)
		router.GET("/api/v1/hypothesis/stats", h.HypothesisStats)
	})

	It("executes a fact query and returns the aggregated result", func() {
		body, _ := json.Marshal(map[string]any{
			"query":  "Was ist der Hauptsitz von Daimler?",
			"intent": "fact",
		})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["success"]).To(BeTrue())
		Expect(resp["results"]).To(HaveLen(2))
		Expect(resp["final_results"]).To(HaveLen(1))
	})

	It("returns 400 on a body without a query", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBufferString(`{"intent":"fact"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("streams progress events before the result when stream is requested", func() {
		body, _ := json.Marshal(map[string]any{
			"query":  "Bauantrag für Einfamilienhaus in Stuttgart",
			"intent": "procedure",
			"stream": true,
		})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("text/event-stream"))
		Expect(w.Body.String()).To(ContainSubstring("event:progress"))
		Expect(w.Body.String()).To(ContainSubstring("plan_started"))
		Expect(w.Body.String()).To(ContainSubstring("event:result"))
	})

	It("returns 404 for hypothesis stats when the service is disabled", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hypothesis/stats", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})
})
