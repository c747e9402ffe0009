package webapi

import (
	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/amirasaad/ledger/pkg/middleware"
	authsvc "github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/amirasaad/ledger/pkg/service/bank"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// RPC hands one decoded request to the bank service on behalf of the
// token's user.
func RPC(bankSvc *bank.Service, authSvc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, _ := c.Locals(middleware.UserKey).(*jwt.Token)
		caller, err := authSvc.CurrentUser(token)
		if err != nil {
			return ProblemFromError(c, err)
		}
		input, err := BindAndValidate[dto.Request](c)
		if input == nil {
			return err
		}
		result, err := bankSvc.Handle(c.UserContext(), caller, *input)
		if err != nil {
			return ProblemFromError(c, err)
		}
		return SuccessResponseJSON(c, fiber.StatusOK, input.Operation, result)
	}
}
