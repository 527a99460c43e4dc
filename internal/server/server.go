package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/notify"
	"github.com/UrbanUnderflow/QuickLifts-Web-sub010/internal/scanner"
)

// Server exposes the invocation triggers and the admin test-send entry point.
// The external timer and the admin console are its only clients.
type Server struct {
	registry *scanner.Registry
	runner   *scanner.Runner
	sender   *notify.Sender
	log      *zap.Logger
}

func New(registry *scanner.Registry, runner *scanner.Runner, sender *notify.Sender, log *zap.Logger) *Server {
	return &Server{registry: registry, runner: runner, sender: sender, log: log}
}

// Routes builds the gin engine. CORS is open because the admin console is a
// browser app on another origin.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/sequences", s.listSequences)
	api.POST("/sequences/:id/run", s.runSequence)
	api.POST("/test-send", s.testSend)
	return r
}

func (s *Server) listSequences(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sequences": s.registry.IDs()})
}

// runSequence executes one scan and returns the aggregate summary. Only a
// query-stage failure produces a non-2xx response.
func (s *Server) runSequence(c *gin.Context) {
	id := c.Param("id")
	seq, ok := s.registry.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown sequence: " + id})
		return
	}

	sum, err := s.runner.Run(c.Request.Context(), seq)
	if err != nil {
		s.log.Error("sequence run failed", zap.String("sequence", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"scanned": sum.Scanned,
		"sent":    sum.Sent,
		"skipped": sum.Skipped,
		"failed":  sum.Failed,
	})
}

type testSendRequest struct {
	ToEmail         string `json:"toEmail" binding:"required,email"`
	FirstName       string `json:"firstName"`
	SequenceID      string `json:"sequenceId"`
	SubjectOverride string `json:"subjectOverride"`
	HTMLOverride    string `json:"htmlOverride"`
}

// testSend runs the regular delivery path for the admin template editor.
// isTest semantics: the "test" tag is attached and no idempotency markers are
// written, since no record owns this dispatch.
func (s *Server) testSend(c *gin.Context) {
	var req testSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.SequenceID == "" {
		req.SequenceID = "test"
	}

	res, err := s.sender.Send(c.Request.Context(), notify.Request{
		ToEmail:         req.ToEmail,
		FirstName:       req.FirstName,
		SequenceID:      req.SequenceID,
		FallbackSubject: "Test send: " + req.SequenceID,
		FallbackHTML:    "<p>This is a test send from the template editor.</p>",
		SubjectOverride: req.SubjectOverride,
		HTMLOverride:    req.HTMLOverride,
		IsTest:          true,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}
