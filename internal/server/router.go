package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/notehub/internal/auth"
	"github.com/MarcoPoloResearchLab/notehub/internal/chat"
	"github.com/MarcoPoloResearchLab/notehub/internal/logging"
	"github.com/MarcoPoloResearchLab/notehub/internal/media"
	"github.com/MarcoPoloResearchLab/notehub/internal/notes"
	"github.com/MarcoPoloResearchLab/notehub/internal/organizations"
	"github.com/MarcoPoloResearchLab/notehub/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	claimsContextKey         = "notehub_session_claims"
	defaultHeartbeatInterval = 25 * time.Second
	defaultMaxUploadBytes    = 25 << 20
	formOverheadBytes        = 1 << 20
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingNotesService     = errors.New("notes service dependency required")
	errMissingOrganizations    = errors.New("organization service dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
	errMissingChatService      = errors.New("chat service dependency required")
)

// SessionValidator authenticates incoming requests.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// NotesService is the note surface consumed by the HTTP layer.
type NotesService interface {
	List(ctx context.Context, filter notes.Filter, request notes.PageRequest) (notes.Page, error)
	ListByUploader(ctx context.Context, email string, filter notes.Filter, request notes.PageRequest) (notes.Page, error)
	Get(ctx context.Context, rawID string) (notes.Note, error)
	Create(ctx context.Context, input notes.CreateInput, attachment *media.Object) (notes.Note, error)
	Update(ctx context.Context, rawID string, input notes.Input, attachment *media.Object) error
	Delete(ctx context.Context, rawIDs []string) (int64, error)
}

// OrganizationService is the organization surface consumed by the HTTP layer.
type OrganizationService interface {
	Create(ctx context.Context, input organizations.CreateInput) (organizations.Organization, error)
	List(ctx context.Context) ([]organizations.Organization, error)
}

// UsersService is the account surface consumed by the HTTP layer.
type UsersService interface {
	Signup(ctx context.Context, input users.SignupInput) (users.User, error)
	Login(ctx context.Context, input users.LoginInput) (users.Session, error)
	ListByOrganization(ctx context.Context, rawOrganization string) ([]users.Member, error)
}

// ChatService is the chat surface consumed by the HTTP layer.
type ChatService interface {
	SendGroup(ctx context.Context, viewer chat.Viewer, requestedOrganization, content string) (chat.GroupMessage, error)
	ListGroup(ctx context.Context, viewer chat.Viewer, requestedOrganization string) ([]chat.GroupMessage, error)
	SubscribeGroup(ctx context.Context, viewer chat.Viewer, requestedOrganization string) (<-chan chat.Event, func(), error)
	SendDirect(ctx context.Context, viewer chat.Viewer, peerID, text string) (chat.DirectMessage, error)
	ListDirect(ctx context.Context, viewer chat.Viewer, peerID string) ([]chat.DirectMessage, error)
	SubscribeDirect(ctx context.Context, viewer chat.Viewer, peerID string) (<-chan chat.Event, func(), error)
	Contacts(ctx context.Context, viewer chat.Viewer, requestedOrganization string) ([]users.Member, error)
}

// Dependencies wires the HTTP handler.
type Dependencies struct {
	Sessions          SessionValidator
	Notes             NotesService
	Organizations     OrganizationService
	Users             UsersService
	Chat              ChatService
	Logger            *zap.Logger
	AllowedOrigins    []string
	MaxUploadBytes    int64
	HeartbeatInterval time.Duration
}

// NewHTTPHandler builds the gin engine serving the public API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Notes == nil {
		return nil, errMissingNotesService
	}
	if deps.Organizations == nil {
		return nil, errMissingOrganizations
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Chat == nil {
		return nil, errMissingChatService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	router := gin.New()
	router.MaxMultipartMemory = maxUpload
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:      deps.Sessions,
		notes:         deps.Notes,
		organizations: deps.Organizations,
		users:         deps.Users,
		chat:          deps.Chat,
		logger:        logger,
		heartbeat:     heartbeat,
		maxUpload:     maxUpload,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/login", handler.handleLogin)
	router.POST("/signup", handler.handleSignup)
	router.GET("/organizations", handler.handleListOrganizations)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/session", handler.handleSession)

	protected.GET("/notes", handler.handleListNotes)
	protected.POST("/notes", handler.limitBody(opCreateNote), handler.handleCreateNote)
	protected.DELETE("/notes", handler.handleDeleteNotes)
	protected.GET("/notes/user", handler.handleListUserNotes)
	protected.GET("/notes/:id", handler.handleGetNote)
	protected.PUT("/notes/:id", handler.limitBody(opUpdateNote), handler.handleUpdateNote)
	protected.DELETE("/notes/:id", handler.handleDeleteNotes)

	protected.GET("/users", handler.handleListUsers)
	protected.POST("/organizations", handler.requireAdmin, handler.handleCreateOrganization)

	chatRoutes := protected.Group("/chat")
	chatRoutes.GET("/group/messages", handler.handleListGroupMessages)
	chatRoutes.POST("/group/messages", handler.handleSendGroupMessage)
	chatRoutes.GET("/group/stream", handler.handleGroupStream)
	chatRoutes.GET("/direct/contacts", handler.handleListContacts)
	chatRoutes.GET("/direct/:peerId/messages", handler.handleListDirectMessages)
	chatRoutes.POST("/direct/:peerId/messages", handler.handleSendDirectMessage)
	chatRoutes.GET("/direct/:peerId/stream", handler.handleDirectStream)

	return router, nil
}

type httpHandler struct {
	sessions      SessionValidator
	notes         NotesService
	organizations OrganizationService
	users         UsersService
	chat          ChatService
	logger        *zap.Logger
	heartbeat     time.Duration
	maxUpload     int64
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", logging.RequestIDHeader},
		ExposeHeaders:    []string{logging.RequestIDHeader},
		MaxAge:           12 * time.Hour,
	}
	// Cookie sessions are only honoured for listed origins.
	if len(allowedOrigins) == 0 || containsWildcard(allowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
