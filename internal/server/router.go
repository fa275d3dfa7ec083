package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/access"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/accounts"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/directory"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// DefaultRoute is where the management endpoint is mounted when none is configured.
	DefaultRoute = "/manage-auth-users"

	accessContextKey = "dormdesk_access"
)

var (
	errMissingGate      = errors.New("access gate dependency required")
	errMissingDirectory = errors.New("account directory dependency required")
	errMissingDeleter   = errors.New("bulk deleter dependency required")
)

// AccessGate admits or denies a request from its Authorization header.
type AccessGate interface {
	Authorize(ctx context.Context, authorizationHeader string) (access.Context, error)
}

// AccountLister lists provider accounts.
type AccountLister interface {
	List(ctx context.Context, pageSize int) ([]directory.Account, error)
}

// BulkDeleter removes a batch of accounts.
type BulkDeleter interface {
	DeleteMany(ctx context.Context, request accounts.Request) (accounts.Result, error)
}

// Dependencies wires the management endpoint.
type Dependencies struct {
	Gate      AccessGate
	Directory AccountLister
	Deleter   BulkDeleter
	Logger    *zap.Logger
	Route     string
	PageSize  int
}

// NewHTTPHandler builds the gin engine serving the management endpoint.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Gate == nil {
		return nil, errMissingGate
	}
	if deps.Directory == nil {
		return nil, errMissingDirectory
	}
	if deps.Deleter == nil {
		return nil, errMissingDeleter
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	route := strings.TrimSpace(deps.Route)
	if route == "" {
		route = DefaultRoute
	}
	pageSize := deps.PageSize
	if pageSize <= 0 || pageSize > directory.MaxPageSize {
		pageSize = directory.MaxPageSize
	}

	handler := &httpHandler{
		gate:      deps.Gate,
		directory: deps.Directory,
		deleter:   deps.Deleter,
		logger:    logger,
		pageSize:  pageSize,
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(gin.CustomRecoveryWithWriter(io.Discard, handler.recoverFault))

	router.OPTIONS(route, handler.handlePreflight)
	router.GET(route, handler.authorizeRequest, handler.handleListUsers)
	router.DELETE(route, handler.authorizeRequest, handler.handleDeleteUsers)
	router.NoMethod(handler.handleMethodNotAllowed)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return router, nil
}

type httpHandler struct {
	gate      AccessGate
	directory AccountLister
	deleter   BulkDeleter
	logger    *zap.Logger
	pageSize  int
}

func (h *httpHandler) handlePreflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method_not_allowed"})
}

// recoverFault turns a panic into a 500 carrying the raw fault text. The
// endpoint is an internal admin tool, so the message is surfaced as-is.
func (h *httpHandler) recoverFault(c *gin.Context, recovered any) {
	message := fmt.Sprint(recovered)
	h.requestLogger(c).Error("unhandled fault", zap.String("fault", message))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": message})
}

func (h *httpHandler) requestLogger(c *gin.Context) *zap.Logger {
	return h.logger.With(
		zap.String("request_id", requestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
	)
}

func accessFromContext(c *gin.Context) (access.Context, bool) {
	value, ok := c.Get(accessContextKey)
	if !ok {
		return access.Context{}, false
	}
	admitted, ok := value.(access.Context)
	return admitted, ok && admitted.CallerID != ""
}
