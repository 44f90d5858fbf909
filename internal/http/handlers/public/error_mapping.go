package public

import (
	"errors"

	"github.com/eoshub-next/internal/http/response"
	"github.com/eoshub-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var createOrderErrorRules = []mappedHandlerError{
	{target: service.ErrAccountNameInvalid, code: response.CodeBadRequest, msg: "account name must be 12 chars of a-z and 1-5"},
	{target: service.ErrPublicKeyInvalid, code: response.CodeBadRequest, msg: "public key format invalid"},
	{target: service.ErrOrderInvalid, code: response.CodeBadRequest, msg: "order parameters invalid"},
	{target: service.ErrDuplicateAccount, code: response.CodeConflict, msg: "account name already taken"},
	{target: service.ErrProductNotFound, code: response.CodeNotFound, msg: "product not found"},
	{target: service.ErrProductDeactivated, code: response.CodeBadRequest, msg: "product is deactivated"},
	{target: service.ErrAccountNodeUnreachable, code: response.CodeUpstream, msg: "account node unavailable, please retry later"},
	{target: service.ErrPaymentServerUnavailable, code: response.CodeUpstream, msg: "payment gateway unavailable, please retry later"},
	{target: service.ErrPaymentRejected, code: response.CodeUpstream, msg: "payment gateway rejected the request"},
}
