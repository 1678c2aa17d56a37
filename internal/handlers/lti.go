package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
	apperrors "github.com/aulagpt/aulagpt-backend/internal/pkg/errors"
	"github.com/aulagpt/aulagpt-backend/internal/repos"
	"github.com/aulagpt/aulagpt-backend/internal/services"
	"github.com/aulagpt/aulagpt-backend/internal/types"
)

const (
	stateCookie = "lti_state"
	nonceCookie = "lti_nonce"

	// Login and launch are a single short redirect round trip.
	oidcCookieMaxAge = 300
)

type LTIHandler struct {
	log        *logger.Logger
	verifier   services.LaunchVerifier
	auth       services.AuthService
	userRepo   repos.UserRepo
	courseRepo repos.CourseRepo

	authorizeURL string
	clientID     string
	redirectURI  string
}

func NewLTIHandler(
	log *logger.Logger,
	verifier services.LaunchVerifier,
	auth services.AuthService,
	userRepo repos.UserRepo,
	courseRepo repos.CourseRepo,
) *LTIHandler {
	authorizeURL := strings.TrimSpace(os.Getenv("LTI_AUTH_URL"))
	if authorizeURL == "" {
		authorizeURL = "https://sso.canvaslms.com/api/lti/authorize_redirect"
	}
	return &LTIHandler{
		log:          log.With("handler", "LTIHandler"),
		verifier:     verifier,
		auth:         auth,
		userRepo:     userRepo,
		courseRepo:   courseRepo,
		authorizeURL: authorizeURL,
		clientID:     strings.TrimSpace(os.Getenv("LTI_CLIENT_ID")),
		redirectURI:  strings.TrimSpace(os.Getenv("LTI_REDIRECT_URI")),
	}
}

// Login handles the OIDC third-party initiation. It answers with a redirect
// to the platform's authorize endpoint carrying fresh state and nonce values
// that Launch will check against cookies.
func (h *LTIHandler) Login(c *gin.Context) {
	loginHint := c.DefaultQuery("login_hint", c.PostForm("login_hint"))
	messageHint := c.DefaultQuery("lti_message_hint", c.PostForm("lti_message_hint"))
	if loginHint == "" {
		RespondError(c, http.StatusBadRequest, "BAD_REQUEST", errors.New("missing login_hint"))
		return
	}

	state := uuid.NewString()
	nonce := uuid.NewString()
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(stateCookie, state, oidcCookieMaxAge, "/", "", true, true)
	c.SetCookie(nonceCookie, nonce, oidcCookieMaxAge, "/", "", true, true)

	params := url.Values{}
	params.Set("response_type", "id_token")
	params.Set("response_mode", "form_post")
	params.Set("scope", "openid")
	params.Set("prompt", "none")
	params.Set("client_id", h.clientID)
	params.Set("redirect_uri", h.redirectURI)
	params.Set("login_hint", loginHint)
	params.Set("state", state)
	params.Set("nonce", nonce)
	if messageHint != "" {
		params.Set("lti_message_hint", messageHint)
	}

	c.Redirect(http.StatusFound, h.authorizeURL+"?"+params.Encode())
}

type launchResponse struct {
	SessionToken string `json:"session_token"`
	CourseID     string `json:"course_id"`
	CourseName   string `json:"course_name"`
	UserName     string `json:"user_name"`
	Role         string `json:"role"`
}

// Launch verifies the platform's form_post assertion, provisions the user
// and hands back a session token scoped to the launched course.
func (h *LTIHandler) Launch(c *gin.Context) {
	state := c.PostForm("state")
	expectedState, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != expectedState {
		RespondError(c, http.StatusUnauthorized, "INVALID_LAUNCH", errors.New("state mismatch"))
		return
	}
	expectedNonce, _ := c.Cookie(nonceCookie)

	identity, err := h.verifier.Verify(c.Request.Context(), c.PostForm("id_token"), expectedNonce)
	if err != nil {
		h.log.Warn("Launch verification failed", "error", err)
		RespondError(c, http.StatusUnauthorized, "INVALID_LAUNCH", apperrors.ErrInvalidAssertion)
		return
	}

	course, err := h.courseRepo.GetByDeploymentID(c.Request.Context(), nil, identity.DeploymentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			RespondError(c, http.StatusUnprocessableEntity, "COURSE_NOT_CONFIGURED",
				errors.New("deployment is not registered"))
			return
		}
		h.log.Error("Course lookup failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
		return
	}

	user := &types.User{
		ID:    identity.Sub,
		Name:  identity.Name,
		Email: identity.Email,
		Role:  identity.Role,
	}
	if _, err := h.userRepo.Upsert(c.Request.Context(), nil, user); err != nil {
		h.log.Error("User upsert failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
		return
	}

	token, err := h.auth.IssueSessionToken(services.Session{
		UserID:   user.ID,
		CourseID: course.ID,
		Name:     user.Name,
		Role:     user.Role,
	})
	if err != nil {
		h.log.Error("Session token issue failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "INTERNAL", errors.New("internal error"))
		return
	}

	RespondOK(c, launchResponse{
		SessionToken: token,
		CourseID:     course.ID,
		CourseName:   course.Name,
		UserName:     user.Name,
		Role:         user.Role,
	})
}
