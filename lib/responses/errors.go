package responses

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var UnsupportedCurrencyError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "unsupported currency",
	HttpStatusCode: 400,
}

var InvalidAmountError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "amount must be greater than zero",
	HttpStatusCode: 400,
}

var InvoiceNotFoundError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "invoice not found",
	HttpStatusCode: 404,
}

var NotReadyError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "invoice is not paid yet",
	HttpStatusCode: 409,
}

var NoFundsToSweepError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "no funds to sweep. Invoice left for manual review",
	HttpStatusCode: 409,
}

var ProviderUnavailableError = ErrorResponse{
	Error:          true,
	Code:           5,
	Message:        "payment backend temporarily unavailable. Please try again later",
	HttpStatusCode: 503,
}

var ProviderRejectedError = ErrorResponse{
	Error:          true,
	Code:           5,
	Message:        "payment backend rejected the request",
	HttpStatusCode: 502,
}

// isErrAllowedForSentry filters out expected client-side failures so they do
// not pollute exception tracking.
func isErrAllowedForSentry(err error) bool {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return true
	}
	return he.Code >= http.StatusInternalServerError
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("RequestID", c.Response().Header().Get(echo.HeaderXRequestID))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
	} else {
		c.JSON(http.StatusInternalServerError, GeneralServerError)
	}
}
