package handlers

import (
	"authsimple/internal/middleware"
	"authsimple/internal/models"
	"authsimple/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// UserHandler handles HTTP requests for user records.
type UserHandler struct {
	userService  *services.UserService
	emailService *services.EmailService
	validate     *validator.Validate
}

// NewUserHandler creates a new UserHandler. emailService may be nil, in
// which case no verification email is sent.
func NewUserHandler(userService *services.UserService, emailService *services.EmailService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		emailService: emailService,
		validate:     newValidator(),
	}
}

// RegisterRoutes registers the user routes. Registration is public; the
// rest go through authRequired.
func (h *UserHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	userRoutes := router.Group("/users")
	userRoutes.Post("/", h.HandleCreateUser)
	userRoutes.Get("/", authRequired, h.HandleGetUsers)
	userRoutes.Get("/:id", authRequired, h.HandleGetUserByID)
	userRoutes.Patch("/:id", authRequired, h.HandleUpdateUser)
	userRoutes.Delete("/:id", authRequired, h.HandleDeleteUser)
}

// HandleCreateUser registers a user and sends the verification email in
// the background.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidation(c, err)
	}

	user, err := h.userService.AddUser(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	if h.emailService != nil {
		h.emailService.SendVerificationAsync(*user)
	}
	return c.JSON(user)
}

// HandleGetUsers lists every user. Admins only.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	if err := services.RequireAdmin(middleware.CurrentUser(c)); err != nil {
		return respondError(c, err)
	}
	users, err := h.userService.GetAllUsers(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// HandleGetUserByID returns one user to that user or an admin.
func (h *UserHandler) HandleGetUserByID(c *fiber.Ctx) error {
	userID, err := h.authorizedTarget(c)
	if err != nil {
		return respondError(c, err)
	}
	user, err := h.userService.GetUserByField(c.UserContext(), "id", userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// HandleUpdateUser applies a partial update. Only admins may change role
// or disabled.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	userID, err := h.authorizedTarget(c)
	if err != nil {
		return respondError(c, err)
	}

	var upd models.UserUpdate
	if err := c.BodyParser(&upd); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(upd); err != nil {
		return respondValidation(c, err)
	}
	if upd.TouchesPrivileges() {
		if err := services.RequireAdmin(middleware.CurrentUser(c)); err != nil {
			return respondError(c, err)
		}
	}

	user, err := h.userService.UpdateUser(c.UserContext(), map[string]interface{}{"id": userID}, upd)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// HandleDeleteUser deletes a user and returns the deleted record.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	userID, err := h.authorizedTarget(c)
	if err != nil {
		return respondError(c, err)
	}
	user, err := h.userService.DeleteUserByID(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// authorizedTarget parses the :id parameter and applies the access policy
// for the current caller.
func (h *UserHandler) authorizedTarget(c *fiber.Ctx) (string, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "Invalid user id")
	}
	if err := services.Authorize(middleware.CurrentUser(c), id.String()); err != nil {
		return "", err
	}
	return id.String(), nil
}
