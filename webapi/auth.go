package webapi

import (
	"encoding/json"

	"github.com/amirasaad/ledger/pkg/dto"
	authsvc "github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/amirasaad/ledger/pkg/service/bank"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(app *fiber.App, bankSvc *bank.Service, authSvc *authsvc.Service) {
	app.Post("/auth/register", Register(bankSvc))
	app.Post("/auth/login", Login(authSvc))
}

// Register creates a user from a username and client-derived credential.
func Register(bankSvc *bank.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[dto.Credentials](c)
		if input == nil {
			return err // Error already written by BindAndValidate
		}
		payload, err := json.Marshal(input)
		if err != nil {
			return ProblemFromError(c, err)
		}
		user, err := bankSvc.Handle(c.UserContext(), "", dto.Request{Operation: bank.OpRegister, Payload: payload})
		if err != nil {
			return ProblemFromError(c, err)
		}
		return SuccessResponseJSON(c, fiber.StatusCreated, "User registered", user)
	}
}

// Login authenticates a user and returns a JWT token.
func Login(authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		input, err := BindAndValidate[dto.Credentials](c)
		if input == nil {
			return err
		}
		token, user, err := authSvc.Login(c.UserContext(), input.Username, input.Credential)
		if err != nil {
			return ProblemFromError(c, err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, "Success login", fiber.Map{"token": token, "user": user})
	}
}
