package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"Lunara_V0.1/internal/aiservice"
	"Lunara_V0.1/internal/assistant"
	"Lunara_V0.1/internal/database"
	"Lunara_V0.1/internal/utility"
	"github.com/labstack/echo/v4"
)

/* =================================================================================
							DTOs (Data Transfer Objects)
=================================================================================*/

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// MealPlannerRequest is the body of both meal-planner endpoints.
// The answers are only read by the submit endpoint.
type MealPlannerRequest struct {
	UserID string `json:"user_id"`
	assistant.MealPlanAnswers
}

type onboardingPage struct {
	Phases []database.CyclePhase
	Error  string
	Form   assistant.OnboardingForm
}

type chatPage struct {
	Name   string
	UserID string
}

/*=================================================================================
									PAGES
=================================================================================*/

func (s *Server) renderHomeHandler(c echo.Context) error {
	return c.Render(http.StatusOK, "home.html", nil)
}

// startSessionHandler issues a new identity and sends the user to onboarding.
func (s *Server) startSessionHandler(c echo.Context) error {
	logger := utility.LoggerFromContext(c)

	sess, _ := s.sessions.Get(c.Request(), sessionName)
	identity := utility.NewIdentity()
	sess.Values[sessionIdentityKey] = identity
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		logger.Error().Err(err).Msg("startSessionHandler: failed to save session")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not start session"})
	}

	logger.Info().Str("identity", identity).Msg("new session started")
	return c.Redirect(http.StatusSeeOther, "/onboarding")
}

func (s *Server) renderOnboardingHandler(c echo.Context) error {
	if _, err := utility.GetIdentityFromContext(c); err != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return c.Render(http.StatusOK, "onboarding.html", onboardingPage{Phases: database.CyclePhases})
}

func (s *Server) onboardingHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.LoggerFromContext(c)

	identity, err := utility.GetIdentityFromContext(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	form := assistant.OnboardingForm{
		Name:       c.FormValue("name"),
		CyclePhase: c.FormValue("cycle_phase"),
		Cravings:   c.FormValue("cravings"),
	}
	age, err := strconv.Atoi(strings.TrimSpace(c.FormValue("age")))
	if err != nil {
		return c.Render(http.StatusBadRequest, "onboarding.html", onboardingPage{
			Phases: database.CyclePhases,
			Error:  "Please enter your age as a number.",
			Form:   form,
		})
	}
	form.Age = age

	if _, err := s.assistant.Onboard(ctx, identity, form); err != nil {
		if errors.Is(err, assistant.ErrInvalidProfile) {
			return c.Render(http.StatusBadRequest, "onboarding.html", onboardingPage{
				Phases: database.CyclePhases,
				Error:  err.Error(),
				Form:   form,
			})
		}
		logger.Error().Err(err).Msg("onboardingHandler: failed to save profile")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not save your profile"})
	}

	logger.Info().Str("identity", identity).Msg("profile created")
	return c.Redirect(http.StatusSeeOther, "/chat")
}

func (s *Server) renderChatHandler(c echo.Context) error {
	ctx := c.Request().Context()

	identity, err := utility.GetIdentityFromContext(c)
	if err != nil {
		return c.Redirect(http.StatusSeeOther, "/")
	}

	profile, err := s.assistant.Profile(ctx, identity)
	if errors.Is(err, database.ErrProfileNotFound) {
		return c.Redirect(http.StatusSeeOther, "/onboarding")
	}
	if err != nil {
		utility.LoggerFromContext(c).Error().Err(err).Msg("renderChatHandler: failed to load profile")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Could not load your profile"})
	}

	return c.Render(http.StatusOK, "chat.html", chatPage{Name: profile.Name, UserID: identity})
}

/*=================================================================================
									JSON API
=================================================================================*/

func (s *Server) chatHandler(c echo.Context) error {
	ctx := c.Request().Context()
	logger := utility.LoggerFromContext(c)

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn().Err(err).Msg("chatHandler: failed to bind request body")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	identity := s.requestIdentity(c, req.UserID)
	if identity == "" || strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "User ID and message are required"})
	}

	logger.Info().
		Str("identity", identity).
		Str("message_preview", req.Message[:utility.Min(len(req.Message), 80)]).
		Msg("Processing chat request")

	reply, err := s.assistant.Ask(ctx, identity, req.Message)
	if err != nil {
		return s.apiError(c, err, "User not registered")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"response": reply.Text,
		"user_id":  identity,
		"status":   "success",
	})
}

func (s *Server) startMealPlannerHandler(c echo.Context) error {
	var req MealPlannerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if s.requestIdentity(c, req.UserID) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "User ID required"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"questions": s.assistant.StartMealPlan(),
	})
}

func (s *Server) submitMealPlannerHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req MealPlannerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	identity := s.requestIdentity(c, req.UserID)
	if identity == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "User ID required"})
	}

	plan, err := s.assistant.SubmitMealPlan(ctx, identity, req.MealPlanAnswers)
	if err != nil {
		return s.apiError(c, err, "User not found")
	}

	return c.JSON(http.StatusOK, map[string]string{"meal_plan": plan})
}

func (s *Server) quizHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"questions": s.assistant.Quiz(),
	})
}

// requestIdentity prefers the identity in the body and falls back to the session.
func (s *Server) requestIdentity(c echo.Context, fromBody string) string {
	if id := strings.TrimSpace(fromBody); id != "" {
		return id
	}
	id, _ := utility.GetIdentityFromContext(c)
	return id
}

// apiError maps service errors to status codes. Provider error text is logged, never returned.
func (s *Server) apiError(c echo.Context, err error, notFoundMsg string) error {
	logger := utility.LoggerFromContext(c)

	switch {
	case errors.Is(err, assistant.ErrMissingIdentity):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "User ID and message are required"})
	case errors.Is(err, database.ErrProfileNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": notFoundMsg})
	case errors.Is(err, aiservice.ErrNoProviderAnswer):
		logger.Error().Err(err).Msg("no provider answered")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "The assistant is unavailable right now, please try again later"})
	case errors.Is(err, database.ErrStoreIO):
		logger.Error().Err(err).Msg("profile store failure")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Profile storage is unavailable"})
	default:
		logger.Error().Err(err).Msg("unexpected error")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
