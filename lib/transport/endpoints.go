package transport

import (
	"github.com/labstack/echo/v4"

	"github.com/getchainhub/chainhub/controllers"
	"github.com/getchainhub/chainhub/lib/service"
)

func RegisterEndpoints(svc *service.ChainhubService, e *echo.Echo, strictRateLimitMiddleware echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	invoiceCtrl := controllers.NewInvoiceController(svc)
	forwardCtrl := controllers.NewForwardController(svc)

	e.GET("/info", controllers.NewGetInfoController(svc).GetInfo)

	// address issuance hits external backends, so it gets the strict limit
	e.POST("/invoices", invoiceCtrl.CreateInvoice, strictRateLimitMiddleware, logMw)
	e.GET("/invoices/:invoice_id", invoiceCtrl.GetInvoice, logMw)
	e.GET("/invoices/:invoice_id/status", invoiceCtrl.GetStatus, logMw)
	e.POST("/invoices/:invoice_id/forward", forwardCtrl.RequestForward, strictRateLimitMiddleware, logMw)
}
